package notify

import (
	"context"
	"fmt"
)

// Gateway is the token-authenticated notification API.
type Gateway interface {
	GetToken() (string, error)
	Schedule(token string, n Notification) (string, error)
}

// Scheduler schedules notifications through a Gateway, handling authentication.
type Scheduler struct {
	gateway Gateway
}

// NewScheduler returns a Scheduler that sends through gateway.
func NewScheduler(gateway Gateway) *Scheduler {
	return &Scheduler{gateway: gateway}
}

// Schedule authenticates and schedules n, returning it with its gateway id set.
func (s *Scheduler) Schedule(ctx context.Context, n Notification) (Notification, error) {
	if err := ctx.Err(); err != nil {
		return n, err
	}

	token, err := s.gateway.GetToken()
	if err != nil {
		return n, fmt.Errorf("authenticate with notification gateway: %w", err)
	}

	id, err := s.gateway.Schedule(token, n)
	if err != nil {
		return n, fmt.Errorf("schedule %s for member %d: %w", n.Kind, n.MemberID, err)
	}
	n.ID = id
	return n, nil
}
