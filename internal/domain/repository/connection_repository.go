package repository

import (
	"context"
	"time"

	"campuslink/internal/domain/entity"
)

type ConnectionRepository interface {
	// Create inserts a pending connection. The pair lookup and the insert are
	// one atomic step; an existing record in either direction fails with
	// errors.DuplicateConnection.
	Create(ctx context.Context, connection *entity.Connection) error
	GetByID(ctx context.Context, id string) (*entity.Connection, error)

	// FindBetween returns the pair's record, or nil when there is none.
	FindBetween(ctx context.Context, userA, userB string) (*entity.Connection, error)

	// Respond moves a pending connection to status. Applying it to a terminal
	// record returns that record unchanged with changed=false.
	Respond(ctx context.Context, id string, status entity.ConnectionStatus, at time.Time) (connection *entity.Connection, changed bool, err error)

	ListPending(ctx context.Context, userID string, asRecipient bool) ([]*entity.Connection, error)
	ListAccepted(ctx context.Context, userID string) ([]*entity.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Connection, error)
}
