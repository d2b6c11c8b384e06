package order

import (
	"context"
	"errors"
	"log"
	"strings"
)

// StatusEventsPublisher is implemented by the events package.
type StatusEventsPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, o *Order, from, to Status, reason string) error
}

// Service validates lifecycle transitions at the write boundary and
// publishes a status event after a successful write.
type Service struct {
	repo   Repository
	pub    StatusEventsPublisher
	logger *log.Logger
}

func NewService(repo Repository, pub StatusEventsPublisher, logger *log.Logger) *Service {
	return &Service{repo: repo, pub: pub, logger: logger}
}

var ErrOrderNotFound = errors.New("order not found")

// ChangeStatus applies a transition requested by the given actor.
// Rejections require a non-empty reason.
func (s *Service) ChangeStatus(ctx context.Context, orderID string, to Status, actor Actor, reason string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}

	to = Normalize(to)
	from := o.Status

	if err := ValidateTransition(from, to, actor); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if to == StatusRejected && reason == "" {
		return nil, ErrReasonRequired
	}
	if to != StatusRejected {
		reason = ""
	}

	// The stored status is pinned in the UPDATE; the raw (possibly
	// legacy-spelled) value must be used, not the normalized one.
	if err := s.repo.UpdateStatus(ctx, orderID, o.Status, to, reason); err != nil {
		return nil, err
	}

	o.Status = to
	o.RejectionReason = reason

	if s.pub != nil {
		if err := s.pub.PublishOrderStatusChanged(ctx, o, from, to, reason); err != nil {
			// The write already committed; losing the event is logged, not fatal.
			s.logger.Printf("publish order.status_changed for %s: %v", o.ID, err)
		}
	}

	return o, nil
}
