package ingest

import (
	"context"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/projector"
	"github.com/roach88/mnemo/internal/store"
)

// ReplayReport compares a day's stored projections with the ones its
// ledger entries produce.
type ReplayReport struct {
	Day        model.Day         `json:"day"`
	Entries    int               `json:"entries"`
	Before     projector.Summary `json:"before"`
	After      projector.Summary `json:"after"`
	Equivalent bool              `json:"equivalent"`
	Diff       string            `json:"diff,omitempty"`
	Repaired   bool              `json:"repaired"`
	Removed    int64             `json:"removed"`
}

// VerifyDay recomputes the day's projections from the ledger without
// writing and reports whether the stored rows match.
func (o *Orchestrator) VerifyDay(ctx context.Context, day model.Day) (ReplayReport, error) {
	entries, err := o.store.EntriesForDay(ctx, day)
	if err != nil {
		return ReplayReport{}, o.persistence("verify day", err)
	}
	stored, err := o.store.ProjectionsForDay(ctx, day)
	if err != nil {
		return ReplayReport{}, o.persistence("verify day", err)
	}

	expected := make([]model.ProjectionRow, 0, len(entries))
	for _, e := range entries {
		expected = append(expected, projector.ApplyEntry(e))
	}

	report := compare(day, len(entries), projector.Summarize(stored), projector.Summarize(expected))
	return report, nil
}

// ReplayDay rebuilds the day's entry-derived projections from the ledger in
// one transaction. Ledger rows are never touched. The current status of a
// task or project is kept: status changes are domain state, not capture.
func (o *Orchestrator) ReplayDay(ctx context.Context, day model.Day) (ReplayReport, error) {
	var report ReplayReport

	err := o.store.InTx(ctx, func(tx *store.Tx) error {
		entries, err := tx.EntriesForDay(ctx, day)
		if err != nil {
			return err
		}
		before, err := tx.ProjectionsForDay(ctx, day)
		if err != nil {
			return err
		}
		status := captureStatus(before)

		removed, err := tx.DeleteEntryProjections(ctx, day)
		if err != nil {
			return err
		}

		for _, e := range entries {
			row := status.restore(projector.ApplyEntry(e))
			if _, err := tx.InsertProjection(ctx, row); err != nil {
				return err
			}
		}

		after, err := tx.ProjectionsForDay(ctx, day)
		if err != nil {
			return err
		}

		report = compare(day, len(entries), projector.Summarize(before), projector.Summarize(after))
		report.Repaired = true
		report.Removed = removed
		return nil
	})
	if err != nil {
		return ReplayReport{}, o.persistence("replay day", err)
	}

	o.log.Info("day replayed",
		zap.String("day", string(day)),
		zap.Int("entries", report.Entries),
		zap.Int64("removed", report.Removed),
		zap.Bool("equivalent", report.Equivalent))
	return report, nil
}

func compare(day model.Day, entries int, before, after projector.Summary) ReplayReport {
	diff := cmp.Diff(before, after)
	return ReplayReport{
		Day:        day,
		Entries:    entries,
		Before:     before,
		After:      after,
		Equivalent: diff == "",
		Diff:       diff,
	}
}

type statusSnapshot struct {
	tasks    map[int64]model.Task
	projects map[int64]model.Project
}

func captureStatus(rows []model.ProjectionRow) statusSnapshot {
	s := statusSnapshot{
		tasks:    make(map[int64]model.Task),
		projects: make(map[int64]model.Project),
	}
	for _, row := range rows {
		id := row.EntryID()
		if id == nil {
			continue
		}
		switch {
		case row.Task != nil:
			s.tasks[*id] = *row.Task
		case row.Project != nil:
			s.projects[*id] = *row.Project
		}
	}
	return s
}

func (s statusSnapshot) restore(row model.ProjectionRow) model.ProjectionRow {
	id := row.EntryID()
	if id == nil {
		return row
	}
	if row.Task != nil {
		if prev, ok := s.tasks[*id]; ok {
			row.Task.Status = prev.Status
			row.Task.UpdatedAt = prev.UpdatedAt
		}
	}
	if row.Project != nil {
		if prev, ok := s.projects[*id]; ok {
			row.Project.Status = prev.Status
			row.Project.UpdatedAt = prev.UpdatedAt
		}
	}
	return row
}
