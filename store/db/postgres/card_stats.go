package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vocadrill/vocadrill/store"
)

func (d *DB) UpsertCardStats(ctx context.Context, upsert *store.CardStats) (*store.CardStats, error) {
	if upsert.UpdatedTs == 0 {
		upsert.UpdatedTs = time.Now().Unix()
	}

	stmt := `
		INSERT INTO card_stats (
			card_id, updated_ts, state, success_streak, interval_days,
			next_review_ts, mastered_at_ts, demotions,
			total_attempts, correct_attempts, consecutive_correct,
			last_reviewed_ts, last_wrong_ts, mode_stats
		)
		VALUES (` + placeholders(14) + `)
		ON CONFLICT (card_id) DO UPDATE SET
			updated_ts = EXCLUDED.updated_ts,
			state = EXCLUDED.state,
			success_streak = EXCLUDED.success_streak,
			interval_days = EXCLUDED.interval_days,
			next_review_ts = EXCLUDED.next_review_ts,
			mastered_at_ts = EXCLUDED.mastered_at_ts,
			demotions = EXCLUDED.demotions,
			total_attempts = EXCLUDED.total_attempts,
			correct_attempts = EXCLUDED.correct_attempts,
			consecutive_correct = EXCLUDED.consecutive_correct,
			last_reviewed_ts = EXCLUDED.last_reviewed_ts,
			last_wrong_ts = EXCLUDED.last_wrong_ts,
			mode_stats = EXCLUDED.mode_stats
		RETURNING card_id, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.CardID,
		upsert.UpdatedTs,
		upsert.State,
		upsert.SuccessStreak,
		upsert.IntervalDays,
		upsert.NextReviewTs,
		upsert.MasteredAtTs,
		upsert.Demotions,
		upsert.TotalAttempts,
		upsert.CorrectAttempts,
		upsert.ConsecutiveCorrect,
		upsert.LastReviewedTs,
		upsert.LastWrongTs,
		upsert.ModeStats,
	).Scan(&upsert.CardID, &upsert.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to upsert card stats: %w", err)
	}

	return upsert, nil
}

func (d *DB) ListCardStats(ctx context.Context, find *store.FindCardStats) ([]*store.CardStats, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.CardID; v != nil {
		where, args = append(where, "card_stats.card_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.CardIDs) > 0 {
		items := make([]string, 0, len(find.CardIDs))
		for _, id := range find.CardIDs {
			items = append(items, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "card_stats.card_id IN ("+strings.Join(items, ", ")+")")
	}
	if v := find.State; v != nil {
		where, args = append(where, "card_stats.state = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBeforeTs; v != nil {
		// Cards never reviewed carry NULL and count as due.
		where = append(where, "(card_stats.next_review_ts IS NULL OR card_stats.next_review_ts < "+placeholder(len(args)+1)+")")
		args = append(args, *v)
	}

	query := `
		SELECT
			card_id, updated_ts, state, success_streak, interval_days,
			next_review_ts, mastered_at_ts, demotions,
			total_attempts, correct_attempts, consecutive_correct,
			last_reviewed_ts, last_wrong_ts, mode_stats
		FROM card_stats
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY card_stats.next_review_ts ASC NULLS FIRST, card_stats.card_id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query card stats: %w", err)
	}
	defer rows.Close()

	list := make([]*store.CardStats, 0)
	for rows.Next() {
		stats, err := scanCardStats(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, stats)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card stats: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteCardStats(ctx context.Context, delete *store.DeleteCardStats) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM card_stats WHERE card_id = `+placeholder(1), delete.CardID); err != nil {
		return fmt.Errorf("failed to delete card stats: %w", err)
	}
	return nil
}

func scanCardStats(rows *sql.Rows) (*store.CardStats, error) {
	var stats store.CardStats
	var nextReviewTs, masteredAtTs, lastReviewedTs, lastWrongTs sql.NullInt64
	var demotions, modeStats sql.NullString

	if err := rows.Scan(
		&stats.CardID,
		&stats.UpdatedTs,
		&stats.State,
		&stats.SuccessStreak,
		&stats.IntervalDays,
		&nextReviewTs,
		&masteredAtTs,
		&demotions,
		&stats.TotalAttempts,
		&stats.CorrectAttempts,
		&stats.ConsecutiveCorrect,
		&lastReviewedTs,
		&lastWrongTs,
		&modeStats,
	); err != nil {
		return nil, fmt.Errorf("failed to scan card stats: %w", err)
	}

	if nextReviewTs.Valid {
		stats.NextReviewTs = &nextReviewTs.Int64
	}
	if masteredAtTs.Valid {
		stats.MasteredAtTs = &masteredAtTs.Int64
	}
	if lastReviewedTs.Valid {
		stats.LastReviewedTs = &lastReviewedTs.Int64
	}
	if lastWrongTs.Valid {
		stats.LastWrongTs = &lastWrongTs.Int64
	}
	if demotions.Valid {
		stats.Demotions = &demotions.String
	}
	if modeStats.Valid {
		stats.ModeStats = &modeStats.String
	}

	return &stats, nil
}
