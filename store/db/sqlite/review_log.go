package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/vocadrill/vocadrill/store"
)

func (d *DB) CreateReviewLog(ctx context.Context, create *store.ReviewLog) (*store.ReviewLog, error) {
	fields := []string{"card_id", "session_uid", "mode", "pass", "due", "weight"}
	placeholderValues := []any{
		create.CardID, create.SessionUID, create.Mode, create.Pass, create.Due, create.Weight,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}

	stmt := `INSERT INTO review_log (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create review log: %w", err)
	}

	return create, nil
}

func (d *DB) ListReviewLogs(ctx context.Context, find *store.FindReviewLog) ([]*store.ReviewLog, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.CardID; v != nil {
		where, args = append(where, "review_log.card_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.SessionUID; v != nil {
		where, args = append(where, "review_log.session_uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedTsAfter; v != nil {
		where, args = append(where, "review_log.created_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, card_id, session_uid, created_ts, mode, pass, due, weight
		FROM review_log
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY review_log.created_ts DESC, review_log.id DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ReviewLog, 0)
	for rows.Next() {
		var log store.ReviewLog
		if err := rows.Scan(
			&log.ID,
			&log.CardID,
			&log.SessionUID,
			&log.CreatedTs,
			&log.Mode,
			&log.Pass,
			&log.Due,
			&log.Weight,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log: %w", err)
		}
		list = append(list, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review logs: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteReviewLogs(ctx context.Context, delete *store.DeleteReviewLog) error {
	stmt := `DELETE FROM review_log WHERE card_id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, delete.CardID); err != nil {
		return fmt.Errorf("failed to delete review logs: %w", err)
	}
	return nil
}
