package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mnemo/internal/model"
)

const entryColumns = `id, raw, entry_type, routed_to, rule_matched, day, source, request_id, created_at`

// AppendEntry writes e to the ledger and returns the assigned id.
// e.ID is ignored. This is the only statement that writes to entries.
func (c conn) AppendEntry(ctx context.Context, e model.Entry) (int64, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO entries (raw, entry_type, routed_to, rule_matched, day, source, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Raw,
		string(e.EntryType),
		string(e.Category),
		nullString(e.RuleMatched),
		string(e.Day),
		string(e.Source),
		e.RequestID,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append entry: last insert id: %w", err)
	}
	return id, nil
}

// Entry retrieves a single ledger entry.
func (c conn) Entry(ctx context.Context, id int64) (model.Entry, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, model.NewNotFoundError("entry", id)
	}
	return e, err
}

// EntriesForDay returns the day's entries in append order.
func (c conn) EntriesForDay(ctx context.Context, day model.Day) ([]model.Entry, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE day = ?
		ORDER BY id ASC
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// CountEntries returns the number of ledger entries, across all days.
func (c conn) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func scanEntry(row scanner) (model.Entry, error) {
	var (
		e                             model.Entry
		entryType, routedTo, day, src string
		rule                          sql.NullString
		createdAt                     string
	)
	err := row.Scan(&e.ID, &e.Raw, &entryType, &routedTo, &rule, &day, &src, &e.RequestID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, err
	}
	if err != nil {
		return model.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.EntryType = model.EntryType(entryType)
	e.Category = model.Category(routedTo)
	e.RuleMatched = stringPtr(rule)
	e.Day = model.Day(day)
	e.Source = model.Source(src)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Entry{}, err
	}
	return e, nil
}
