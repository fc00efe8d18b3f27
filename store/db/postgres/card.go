package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vocadrill/vocadrill/store"
)

func (d *DB) CreateCard(ctx context.Context, create *store.Card) (*store.Card, error) {
	fields := []string{"uid", "word", "translation", "examples", "notes"}
	placeholderValues := []any{
		create.UID, create.Word, create.Translation, create.Examples, create.Notes,
	}

	// Add optional fields
	if create.RowStatus != "" {
		fields = append(fields, "row_status")
		placeholderValues = append(placeholderValues, create.RowStatus)
	}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields = append(fields, "updated_ts")
		placeholderValues = append(placeholderValues, create.UpdatedTs)
	}

	stmt := `INSERT INTO card (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts, updated_ts, row_status`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
		&create.RowStatus,
	); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	return create, nil
}

func (d *DB) ListCards(ctx context.Context, find *store.FindCard) ([]*store.Card, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "card.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDs) > 0 {
		items := make([]string, 0, len(find.IDs))
		for _, id := range find.IDs {
			items = append(items, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "card.id IN ("+strings.Join(items, ", ")+")")
	}
	if v := find.UID; v != nil {
		where, args = append(where, "card.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RowStatus; v != nil {
		where, args = append(where, "card.row_status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.WordLike; v != nil {
		pattern := "%" + *v + "%"
		where = append(where, "(card.word ILIKE "+placeholder(len(args)+1)+" OR card.translation ILIKE "+placeholder(len(args)+2)+")")
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT
			id, uid, row_status, created_ts, updated_ts,
			word, translation, examples, notes
		FROM card
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY card.created_ts DESC, card.id DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Card, 0)
	for rows.Next() {
		var card store.Card
		var examples sql.NullString

		if err := rows.Scan(
			&card.ID,
			&card.UID,
			&card.RowStatus,
			&card.CreatedTs,
			&card.UpdatedTs,
			&card.Word,
			&card.Translation,
			&examples,
			&card.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}

		if examples.Valid {
			card.Examples = &examples.String
		}
		list = append(list, &card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateCard(ctx context.Context, update *store.UpdateCard) error {
	set, args := []string{}, []any{}

	if v := update.UID; v != nil {
		set, args = append(set, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.RowStatus; v != nil {
		set, args = append(set, "row_status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Word; v != nil {
		set, args = append(set, "word = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Translation; v != nil {
		set, args = append(set, "translation = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Examples; v != nil {
		set, args = append(set, "examples = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Notes; v != nil {
		set, args = append(set, "notes = "+placeholder(len(args)+1)), append(args, *v)
	}

	// If no fields to update, return early
	if len(set) == 0 {
		return nil
	}

	args = append(args, update.ID)

	stmt := `UPDATE card SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}

	return nil
}

func (d *DB) DeleteCard(ctx context.Context, delete *store.DeleteCard) error {
	// Cascades cover dependents, but delete explicitly to stay symmetric
	// with the SQLite driver.
	if _, err := d.db.ExecContext(ctx, `DELETE FROM review_log WHERE card_id = `+placeholder(1), delete.ID); err != nil {
		return fmt.Errorf("failed to delete review logs: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM card_stats WHERE card_id = `+placeholder(1), delete.ID); err != nil {
		return fmt.Errorf("failed to delete card stats: %w", err)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM card WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("card not found")
	}

	return nil
}
