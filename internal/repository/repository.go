package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/disasterwatch/internal/config"
	"github.com/mr1hm/disasterwatch/internal/models"
)

// ErrNotFound is returned by writes that matched no row the caller owns.
var ErrNotFound = errors.New("not found")

type Filter struct {
	Limit      int
	Offset     int
	UserID     string // "" matches every owner
	Type       *models.DisasterType
	Severity   *models.Severity
	ActiveOnly bool
}

type DisasterRepository interface {
	AddDisaster(ctx context.Context, d *models.DisasterEvent) error
	GetDisaster(ctx context.Context, id int64, userID string) (*models.DisasterEvent, error)
	ListDisasters(ctx context.Context, opts Filter) ([]models.DisasterEvent, error)
	UpdateDisaster(ctx context.Context, d *models.DisasterEvent) error
	DeleteDisaster(ctx context.Context, id int64, userID string) error
}

type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userID string) (*models.AlertSubscription, error)
	UpsertSubscription(ctx context.Context, s *models.AlertSubscription) error
	DeleteSubscription(ctx context.Context, userID string) error
	// SubscriptionsByCategory returns subscriptions whose category list holds
	// the given type as a whole token, ordered by id.
	SubscriptionsByCategory(ctx context.Context, category models.DisasterType) ([]models.AlertSubscription, error)
}

// Store is what the server needs from a storage backend.
type Store interface {
	DisasterRepository
	SubscriptionRepository
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig, clock clockwork.Clock) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("error creating database directory: %w", err)
			}
		}
		return NewSQLiteDB(cfg.Path, clock)
	case "postgres":
		return NewPostgresDB(cfg.DSN, clock)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// categoryPattern builds the LIKE operand matched against ',' || categories || ','.
func categoryPattern(category models.DisasterType) string {
	return "%," + string(category) + ",%"
}

var (
	_ Store = (*SQLiteDB)(nil)
	_ Store = (*PostgresDB)(nil)
)
