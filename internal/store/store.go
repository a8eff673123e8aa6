package store

import (
	"context"

	"github.com/me/memsched/pkg/model"
)

// Store defines the persistence layer for scheduling runs.
type Store interface {
	CreateRun(ctx context.Context, run *model.Run) error
	// GetRun returns nil, nil when no run with the given ID exists.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
