package store

import (
	"context"
	"fmt"

	"github.com/roach88/mnemo/internal/model"
)

// InsertBehaviorEvent records a reaction.
// Uses ON CONFLICT(kind, day) DO NOTHING for idempotency: inserted is false
// and id is the existing row when the reaction already fired for that day.
func (c conn) InsertBehaviorEvent(ctx context.Context, ev model.BehaviorEvent) (id int64, inserted bool, err error) {
	result, err := c.q.ExecContext(ctx, `
		INSERT INTO behavior_events (kind, day, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, day) DO NOTHING
	`,
		string(ev.Kind),
		string(ev.Day),
		ev.Payload,
		formatTime(ev.CreatedAt),
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert behavior event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert behavior event: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("insert behavior event: last insert id: %w", err)
		}
		return id, true, nil
	}

	err = c.q.QueryRowContext(ctx, `
		SELECT id FROM behavior_events WHERE kind = ? AND day = ?
	`, string(ev.Kind), string(ev.Day)).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("insert behavior event: select existing: %w", err)
	}
	return id, false, nil
}

// HasBehaviorEvent checks whether kind already fired for day.
func (c conn) HasBehaviorEvent(ctx context.Context, kind model.BehaviorKind, day model.Day) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM behavior_events WHERE kind = ? AND day = ?
	`, string(kind), string(day)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check behavior event: %w", err)
	}
	return count > 0, nil
}

// EventFilter narrows ListBehaviorEvents. Zero values match everything.
type EventFilter struct {
	Since  model.Day
	Kind   model.BehaviorKind
	Limit  int
	Offset int
}

// ListBehaviorEvents returns a page of events, newest first, and the total
// number matching the filter.
func (c conn) ListBehaviorEvents(ctx context.Context, f EventFilter) ([]model.BehaviorEvent, int, error) {
	where := "WHERE 1 = 1"
	args := []any{}
	if f.Since != "" {
		where += " AND day >= ?"
		args = append(args, string(f.Since))
	}
	if f.Kind != "" {
		where += " AND kind = ?"
		args = append(args, string(f.Kind))
	}

	var total int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM behavior_events `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count behavior events: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, kind, day, payload, created_at
		FROM behavior_events `+where+`
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query behavior events: %w", err)
	}
	defer rows.Close()

	events := []model.BehaviorEvent{}
	for rows.Next() {
		var (
			ev                   model.BehaviorEvent
			kind, day, createdAt string
		)
		if err := rows.Scan(&ev.ID, &kind, &day, &ev.Payload, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scan behavior event: %w", err)
		}
		ev.Kind = model.BehaviorKind(kind)
		ev.Day = model.Day(day)
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate behavior events: %w", err)
	}
	return events, total, nil
}
