package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

type SagaState string

const (
	StateStarted        SagaState = "started"
	StateInvoiceCreated SagaState = "invoice_created"
	StateReserved       SagaState = "reserved"
	StateCompensating   SagaState = "compensating"
	StateCompensated    SagaState = "compensated"
	StateFailed         SagaState = "failed"
	StateCompleted      SagaState = "completed"
)

var transitions = map[SagaState][]SagaState{
	StateStarted:        {StateInvoiceCreated, StateFailed},
	StateInvoiceCreated: {StateReserved, StateCompensating},
	StateReserved:       {StateCompleted},
	StateCompensating:   {StateCompensated, StateFailed},
}

// Saga tracks one invoice-with-reservation run. It lives only for the
// duration of the call; durable effects are owned by the services it calls.
type Saga struct {
	ID            uuid.UUID
	InvoiceID     uuid.UUID
	ReservationID uuid.UUID
	State         SagaState
	StartedAt     time.Time
}

func NewSaga(now time.Time) *Saga {
	return &Saga{ID: uuid.New(), State: StateStarted, StartedAt: now}
}

func (s *Saga) Advance(to SagaState) error {
	for _, next := range transitions[s.State] {
		if next == to {
			s.State = to
			return nil
		}
	}
	return fmt.Errorf("saga %s: illegal transition %s -> %s", s.ID, s.State, to)
}

func (s *Saga) Done() bool {
	_, more := transitions[s.State]
	return !more
}

type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// ValidateLines rejects a request naming the same product twice.
func ValidateLines(lines []Line) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if _, dup := seen[l.ProductID]; dup {
			return result.New(result.ValidationError, "product %s appears more than once", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}
