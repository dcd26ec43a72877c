package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mnemo/internal/model"
)

// UpsertClarityWindow caches a computed window keyed by its end day.
func (c conn) UpsertClarityWindow(ctx context.Context, w model.ClarityWindowSnapshot) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO clarity_windows (window_end, score, complete_days, total_days, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(window_end) DO UPDATE SET
			score         = excluded.score,
			complete_days = excluded.complete_days,
			total_days    = excluded.total_days,
			computed_at   = excluded.computed_at
	`,
		string(w.WindowEnd),
		w.Score,
		w.CompleteDays,
		w.TotalDays,
		formatTime(w.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert clarity window: %w", err)
	}
	return nil
}

// ClarityWindow returns the cached window ending at end.
func (c conn) ClarityWindow(ctx context.Context, end model.Day) (model.ClarityWindowSnapshot, bool, error) {
	var (
		w          model.ClarityWindowSnapshot
		computedAt string
	)
	w.WindowEnd = end
	err := c.q.QueryRowContext(ctx, `
		SELECT score, complete_days, total_days, computed_at
		FROM clarity_windows
		WHERE window_end = ?
	`, string(end)).Scan(&w.Score, &w.CompleteDays, &w.TotalDays, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ClarityWindowSnapshot{}, false, nil
	}
	if err != nil {
		return w, false, fmt.Errorf("read clarity window: %w", err)
	}
	if w.ComputedAt, err = parseTime(computedAt); err != nil {
		return w, false, err
	}
	return w, true, nil
}
