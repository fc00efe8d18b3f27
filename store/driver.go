package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Card model related methods.
	CreateCard(ctx context.Context, create *Card) (*Card, error)
	ListCards(ctx context.Context, find *FindCard) ([]*Card, error)
	UpdateCard(ctx context.Context, update *UpdateCard) error
	DeleteCard(ctx context.Context, delete *DeleteCard) error

	// CardStats model related methods.
	UpsertCardStats(ctx context.Context, upsert *CardStats) (*CardStats, error)
	ListCardStats(ctx context.Context, find *FindCardStats) ([]*CardStats, error)
	DeleteCardStats(ctx context.Context, delete *DeleteCardStats) error

	// ReviewLog model related methods.
	CreateReviewLog(ctx context.Context, create *ReviewLog) (*ReviewLog, error)
	ListReviewLogs(ctx context.Context, find *FindReviewLog) ([]*ReviewLog, error)
	DeleteReviewLogs(ctx context.Context, delete *DeleteReviewLog) error

	// InstanceSetting model related methods.
	UpsertInstanceSetting(ctx context.Context, upsert *InstanceSetting) (*InstanceSetting, error)
	ListInstanceSettings(ctx context.Context, find *FindInstanceSetting) ([]*InstanceSetting, error)
	DeleteInstanceSetting(ctx context.Context, delete *DeleteInstanceSetting) error
}
