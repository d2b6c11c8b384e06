package order

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusShipped     Status = "shipped"
	StatusDelivered   Status = "delivered"
	StatusFinalized   Status = "finalized"
	StatusNotReceived Status = "not_received"
	StatusCancelled   Status = "cancelled"

	// Some historical documents carry the Spanish spelling. It is
	// accepted on read and normalized; it is never written.
	statusFinalizedLegacy Status = "finalizado"
)

// Actor identifies which side of the marketplace requests a transition.
type Actor string

const (
	ActorBuyer  Actor = "buyer"
	ActorVendor Actor = "vendor"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrWrongActor        = errors.New("actor is not allowed to perform this transition")
	ErrReasonRequired    = errors.New("a rejection reason is required")
	ErrStaleStatus       = errors.New("order status changed concurrently")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// transitions is the full forward path of the order lifecycle and the
// actor allowed to drive each edge. Anything not listed is rejected at
// the write boundary.
var transitions = map[Status]map[Status]Actor{
	StatusPending: {
		StatusAccepted:  ActorVendor,
		StatusRejected:  ActorVendor,
		StatusCancelled: ActorBuyer,
	},
	StatusAccepted: {
		StatusShipped: ActorVendor,
	},
	StatusShipped: {
		StatusDelivered: ActorVendor,
	},
	StatusDelivered: {
		StatusFinalized:   ActorBuyer,
		StatusNotReceived: ActorBuyer,
	},
}

// Normalize maps the legacy spelling onto the canonical status.
func Normalize(s Status) Status {
	if s == statusFinalizedLegacy {
		return StatusFinalized
	}
	return s
}

func (s Status) IsValid() bool {
	switch Normalize(s) {
	case StatusPending, StatusAccepted, StatusRejected, StatusShipped,
		StatusDelivered, StatusFinalized, StatusNotReceived, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s Status) IsTerminal() bool {
	_, ok := transitions[Normalize(s)]
	return !ok
}

// ValidateTransition checks the (from, to, actor) triple against the
// transition table.
func ValidateTransition(from, to Status, actor Actor) error {
	from = Normalize(from)
	to = Normalize(to)

	if !from.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}

	next, ok := transitions[from]
	if !ok {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	allowedActor, ok := next[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if actor != allowedActor {
		return fmt.Errorf("%w: %s -> %s requires %s", ErrWrongActor, from, to, allowedActor)
	}
	return nil
}
