package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mnemo/internal/model"
)

// DayCounts computes the day's aggregate counts from the ledger and
// projections. It never reads daily_logs.
func (c conn) DayCounts(ctx context.Context, day model.Day) (model.DayCounts, error) {
	var counts model.DayCounts
	d := string(day)
	err := c.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entries      WHERE day = ?),
			(SELECT COUNT(*) FROM tasks        WHERE day = ?),
			(SELECT COUNT(*) FROM tasks        WHERE day = ? AND status = ?),
			(SELECT COUNT(*) FROM transactions WHERE day = ?),
			(SELECT COUNT(*) FROM facts        WHERE day = ?),
			(SELECT COUNT(*) FROM metrics      WHERE day = ?),
			(SELECT COUNT(*) FROM projects     WHERE day = ?)
	`, d, d, d, string(model.TaskDone), d, d, d, d).Scan(
		&counts.Entries,
		&counts.Tasks,
		&counts.TasksDone,
		&counts.Transactions,
		&counts.Facts,
		&counts.Metrics,
		&counts.Projects,
	)
	if err != nil {
		return counts, fmt.Errorf("day counts: %w", err)
	}
	return counts, nil
}

// DailyLog returns the day's log. A day that was never closed has no row;
// found is false and the zero log for day is returned.
func (c conn) DailyLog(ctx context.Context, day model.Day) (log model.DailyLog, found bool, err error) {
	var (
		closed   int
		closedAt sql.NullString
	)
	log.Day = day
	err = c.q.QueryRowContext(ctx, `
		SELECT entry_count, task_count, task_done_count, transaction_count, fact_count,
		       metric_count, project_count, summary, closed, closed_at
		FROM daily_logs
		WHERE day = ?
	`, string(day)).Scan(
		&log.EntryCount,
		&log.TaskCount,
		&log.TaskDoneCount,
		&log.TransactionCount,
		&log.FactCount,
		&log.MetricCount,
		&log.ProjectCount,
		&log.Summary,
		&closed,
		&closedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyLog{Day: day}, false, nil
	}
	if err != nil {
		return log, false, fmt.Errorf("read daily log: %w", err)
	}
	log.Closed = closed != 0
	if closedAt.Valid {
		t, err := parseTime(closedAt.String)
		if err != nil {
			return log, false, err
		}
		log.ClosedAt = &t
	}
	return log, true, nil
}

// OpenDay is a day with entries and no closed log.
type OpenDay struct {
	Day     model.Day `json:"day"`
	Entries int       `json:"entries"`
}

// OpenDays returns up to limit open days, newest first.
func (c conn) OpenDays(ctx context.Context, limit int) ([]OpenDay, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT e.day, COUNT(e.id)
		FROM entries e
		LEFT JOIN daily_logs l ON l.day = e.day
		WHERE l.closed IS NULL OR l.closed = 0
		GROUP BY e.day
		ORDER BY e.day DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query open days: %w", err)
	}
	defer rows.Close()

	days := []OpenDay{}
	for rows.Next() {
		var (
			d   string
			cnt int
		)
		if err := rows.Scan(&d, &cnt); err != nil {
			return nil, fmt.Errorf("scan open day: %w", err)
		}
		days = append(days, OpenDay{Day: model.Day(d), Entries: cnt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open days: %w", err)
	}
	return days, nil
}

// UpsertClosedDailyLog writes log as closed. The daily_logs_frozen trigger
// aborts the statement if the day was already closed, so callers check
// DailyLog first inside the same Tx.
func (tx *Tx) UpsertClosedDailyLog(ctx context.Context, log model.DailyLog) error {
	if log.ClosedAt == nil {
		return fmt.Errorf("upsert daily log %s: closed_at is required", log.Day)
	}
	_, err := tx.q.ExecContext(ctx, `
		INSERT INTO daily_logs
		(day, entry_count, task_count, task_done_count, transaction_count, fact_count,
		 metric_count, project_count, summary, closed, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(day) DO UPDATE SET
			entry_count       = excluded.entry_count,
			task_count        = excluded.task_count,
			task_done_count   = excluded.task_done_count,
			transaction_count = excluded.transaction_count,
			fact_count        = excluded.fact_count,
			metric_count      = excluded.metric_count,
			project_count     = excluded.project_count,
			summary           = excluded.summary,
			closed            = 1,
			closed_at         = excluded.closed_at
	`,
		string(log.Day),
		log.EntryCount,
		log.TaskCount,
		log.TaskDoneCount,
		log.TransactionCount,
		log.FactCount,
		log.MetricCount,
		log.ProjectCount,
		log.Summary,
		formatTime(*log.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert daily log %s: %w", log.Day, err)
	}
	return nil
}

// InsertMemorySnapshot writes the day-close snapshot and returns its id.
// A second snapshot for the same (day, kind) violates UNIQUE and fails.
func (tx *Tx) InsertMemorySnapshot(ctx context.Context, snap model.MemorySnapshot) (int64, error) {
	counts, err := marshalCounts(snap.Counts)
	if err != nil {
		return 0, fmt.Errorf("insert memory snapshot: %w", err)
	}
	res, err := tx.q.ExecContext(ctx, `
		INSERT INTO memory_snapshots (day, kind, summary_text, counts, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		string(snap.Day),
		snap.Kind,
		snap.SummaryText,
		counts,
		formatTime(snap.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert memory snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert memory snapshot: last insert id: %w", err)
	}
	return id, nil
}

// MemorySnapshotForDay returns the snapshot of the given kind for day.
func (c conn) MemorySnapshotForDay(ctx context.Context, day model.Day, kind string) (snap model.MemorySnapshot, found bool, err error) {
	var counts, createdAt string
	err = c.q.QueryRowContext(ctx, `
		SELECT id, day, kind, summary_text, counts, created_at
		FROM memory_snapshots
		WHERE day = ? AND kind = ?
	`, string(day), kind).Scan(&snap.ID, &snap.Day, &snap.Kind, &snap.SummaryText, &counts, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MemorySnapshot{}, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("read memory snapshot: %w", err)
	}
	if snap.Counts, err = unmarshalCounts(counts); err != nil {
		return snap, false, err
	}
	if snap.CreatedAt, err = parseTime(createdAt); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}
