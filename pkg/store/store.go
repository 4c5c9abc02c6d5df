package store

import (
	"context"
	"time"

	"zapmenu/pkg/menu"
)

// Enrollment is the durable first-contact record for a user. It is created
// at most once and never mutated afterwards.
type Enrollment struct {
	UserID      string
	FirstSeenAt time.Time
}

// Repository is the durable store consumed by the engine: enrollment records
// plus read-only menu definitions. Menus are written only by the seeding
// path, never by the conversation flow.
type Repository interface {
	Ping(ctx context.Context) error
	FindUser(ctx context.Context, userID string) (*Enrollment, error)
	CreateUser(ctx context.Context, userID string) (*Enrollment, error)
	GetMenu(ctx context.Context, menuID string) (*menu.Menu, error)
	UpsertMenu(ctx context.Context, m *menu.Menu) error
	Close() error
}
