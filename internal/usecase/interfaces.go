package usecase

import (
	"context"
	"time"

	"campuslink/internal/domain/entity"
)

// Notifier pushes a live event to one user. Delivery is best effort: a user
// without an open socket simply misses it.
type Notifier interface {
	Notify(userID, event string, payload interface{})
}

// Limiter rate limits user actions. A nil Limiter disables limiting.
type Limiter interface {
	Allow(userID, action string) (bool, time.Duration)
}

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*entity.Identity, error)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string, interface{}) {}

// NoopNotifier drops every event.
var NoopNotifier Notifier = noopNotifier{}
