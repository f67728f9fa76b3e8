package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/internal/invoice/domain"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/bus"
	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/outbox"
)

type recorder struct {
	got []domain.UpdateInvoiceSnapshotRequest
	err error
}

func (r *recorder) UpdateSnapshot(_ context.Context, req domain.UpdateInvoiceSnapshotRequest) error {
	r.got = append(r.got, req)
	return r.err
}

func message(eventType, body string) kafka.Message {
	return kafka.Message{
		Value:   []byte(body),
		Headers: []kafka.Header{{Key: outbox.EventTypeHeader, Value: []byte(eventType)}},
	}
}

func newConsumer(r *recorder) *Consumer {
	return NewConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), r)
}

func TestHandleSnapshot(t *testing.T) {
	r := &recorder{}
	invoiceID, reservationID, productID := uuid.New(), uuid.New(), uuid.New()
	body := `{"invoiceId":"` + invoiceID.String() + `","reservationId":"` + reservationID.String() +
		`","items":[{"productId":"` + productID.String() + `","productCode":"P1","productDescription":"Bolt"}]}`

	if err := newConsumer(r).Handle(context.Background(), message(domain.EventSnapshotUpdate, body)); err != nil {
		t.Fatal(err)
	}
	if len(r.got) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(r.got))
	}
	got := r.got[0]
	if got.InvoiceID != invoiceID || got.ReservationID != reservationID || got.Items[0].ProductCode != "P1" {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestHandleSnapshotMalformed(t *testing.T) {
	r := &recorder{}
	c := newConsumer(r)

	for _, body := range []string{"not json", `{"invoiceId":"` + uuid.NewString() + `"}`} {
		if err := c.Handle(context.Background(), message(domain.EventSnapshotUpdate, body)); !errors.Is(err, bus.ErrMalformed) {
			t.Errorf("%q: expected ErrMalformed, got %v", body, err)
		}
	}
	if len(r.got) != 0 {
		t.Error("handler must not be called")
	}
}

func TestHandleSnapshotSkipsOtherEvents(t *testing.T) {
	r := &recorder{}
	if err := newConsumer(r).Handle(context.Background(), message(domain.EventInvoiceCancelled, "{")); err != nil {
		t.Fatal(err)
	}
	if len(r.got) != 0 {
		t.Error("foreign event was handled")
	}
}
