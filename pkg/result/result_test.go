package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", New(InsufficientStock, "not enough %s", "ABC"))

	if got := CodeOf(wrapped); got != InsufficientStock {
		t.Fatalf("expected %s, got %s", InsufficientStock, got)
	}
	if got := CodeOf(errors.New("boom")); got != InternalError {
		t.Fatalf("expected %s for plain error, got %s", InternalError, got)
	}
	if !IsCode(wrapped, InsufficientStock) {
		t.Error("IsCode should see through wrapping")
	}
	if IsCode(wrapped, NotFound) {
		t.Error("IsCode matched the wrong code")
	}
}

func TestFromErrorHidesInternalCauses(t *testing.T) {
	r := FromError[int](errors.New("pq: connection reset"), "could not create invoice")
	if r.IsSuccess || r.ErrorCode != InternalError {
		t.Fatalf("unexpected envelope %+v", r)
	}
	if r.ErrorMessage != "could not create invoice" {
		t.Errorf("internal cause leaked: %q", r.ErrorMessage)
	}

	r = FromError[int](New(AlreadyCancelled, "reservation is cancelled"), "generic")
	if r.ErrorCode != AlreadyCancelled || r.ErrorMessage != "reservation is cancelled" {
		t.Errorf("business failure not preserved: %+v", r)
	}

	r = FromError[int](Wrap(InternalError, "inventory service is unavailable", errors.New("dial tcp: refused")), "generic")
	if r.ErrorCode != InternalError || r.ErrorMessage != "inventory service is unavailable" {
		t.Errorf("explicit internal message lost: %+v", r)
	}
}

func TestEnvelopeJSONShape(t *testing.T) {
	raw, err := json.Marshal(Fail[Empty](NotFound, "invoice 1 not found"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["isSuccess"] != false || decoded["errorCode"] != "NOT_FOUND" {
		t.Errorf("unexpected envelope %s", raw)
	}

	var back Result[Empty]
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !IsCode(back.Err(), NotFound) {
		t.Errorf("expected NOT_FOUND after round trip, got %v", back.Err())
	}
	if Ok(3).Err() != nil {
		t.Error("successful envelope must not carry an error")
	}
}

func TestErrUnknownCodeBecomesInternal(t *testing.T) {
	r := Result[int]{ErrorCode: "SOMETHING_NEW", ErrorMessage: "x"}
	if !IsCode(r.Err(), InternalError) {
		t.Errorf("unknown code should degrade to INTERNAL_ERROR, got %v", r.Err())
	}
}

func TestCategory(t *testing.T) {
	cases := map[ErrorCode]Category{
		ValidationError:     CategoryBadInput,
		InsufficientStock:   CategoryBadInput,
		ReservationNotFound: CategoryNotFound,
		AlreadyConfirmed:    CategoryConflict,
		HasReservations:     CategoryConflict,
		InternalError:       CategoryServer,
	}
	for code, want := range cases {
		if got := code.Category(); got != want {
			t.Errorf("%s: expected %s, got %s", code, want, got)
		}
	}
}
