package storage

import (
	"context"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// EventRepository defines the interface for published event operations.
type EventRepository interface {
	CreateEvent(ctx context.Context, ev event.Event, source, sessionID string) (event.Record, error)
	GetEvent(ctx context.Context, id string) (event.Record, error)
	ListEvents(ctx context.Context, opts ListOptions) ([]event.Record, error)
	CountEvents(ctx context.Context) (int, error)
}

var _ EventRepository = (*DB)(nil)
