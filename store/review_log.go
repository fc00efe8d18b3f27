package store

import (
	"context"
)

// ReviewLog is one graded review, append-only.
type ReviewLog struct {
	ID         int32
	CardID     int32
	SessionUID string
	CreatedTs  int64

	Mode   string
	Pass   bool
	Due    bool
	Weight float64
}

// FindReviewLog is the find condition for review logs.
type FindReviewLog struct {
	CardID     *int32
	SessionUID *string

	// CreatedTsAfter selects logs created at or after the given moment.
	CreatedTsAfter *int64

	// Pagination
	Limit  *int
	Offset *int
}

// DeleteReviewLog is the delete request for review logs.
type DeleteReviewLog struct {
	CardID int32
}

// CreateReviewLog appends one review log row.
func (s *Store) CreateReviewLog(ctx context.Context, create *ReviewLog) (*ReviewLog, error) {
	return s.driver.CreateReviewLog(ctx, create)
}

// ListReviewLogs lists review logs with filter, newest first.
func (s *Store) ListReviewLogs(ctx context.Context, find *FindReviewLog) ([]*ReviewLog, error) {
	return s.driver.ListReviewLogs(ctx, find)
}

// DeleteReviewLogs deletes all logs for a card.
func (s *Store) DeleteReviewLogs(ctx context.Context, delete *DeleteReviewLog) error {
	return s.driver.DeleteReviewLogs(ctx, delete)
}
