// Package state reconstructs day and active state from the ledger and
// projections, and closes days.
package state

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/store"
)

// OpenDaysLimit caps the open-day list of SnapshotActive.
const OpenDaysLimit = 30

// Reconstructor reads state and performs day-close.
type Reconstructor struct {
	store  *store.Store
	clock  clock.Clock
	log    *zap.Logger
	closes singleflight.Group
}

// New creates a Reconstructor over s.
func New(s *store.Store, c clock.Clock, log *zap.Logger) *Reconstructor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconstructor{store: s, clock: c, log: log}
}

// DaySnapshot is the full state of one day.
type DaySnapshot struct {
	Day          model.Day           `json:"day"`
	Closed       bool                `json:"is_closed"`
	Totals       model.DayCounts     `json:"totals"`
	Entries      []model.Entry       `json:"entries"`
	Tasks        []model.Task        `json:"tasks"`
	Transactions []model.Transaction `json:"transactions"`
	Facts        []model.Fact        `json:"facts"`
	Metrics      []model.Metric      `json:"metrics"`
	Projects     []model.Project     `json:"projects"`
}

// SnapshotDay reads the day's state. It writes nothing.
func (r *Reconstructor) SnapshotDay(ctx context.Context, day model.Day) (DaySnapshot, error) {
	snap := DaySnapshot{Day: day}
	var err error

	if snap.Entries, err = r.store.EntriesForDay(ctx, day); err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}
	if snap.Tasks, err = r.store.TasksForDay(ctx, day); err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}
	if snap.Transactions, err = r.store.TransactionsForDay(ctx, day); err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}
	if snap.Facts, err = r.store.FactsForDay(ctx, day); err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}
	if snap.Metrics, err = r.store.MetricsForDay(ctx, day); err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}
	if snap.Projects, err = r.store.ProjectsForDay(ctx, day); err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}

	log, _, err := r.store.DailyLog(ctx, day)
	if err != nil {
		return DaySnapshot{}, model.NewPersistenceError("snapshot day", err)
	}
	snap.Closed = log.Closed

	snap.Totals = model.DayCounts{
		Entries:      len(snap.Entries),
		Tasks:        len(snap.Tasks),
		TasksDone:    countDone(snap.Tasks),
		Transactions: len(snap.Transactions),
		Facts:        len(snap.Facts),
		Metrics:      len(snap.Metrics),
		Projects:     len(snap.Projects),
	}
	return snap, nil
}

func countDone(tasks []model.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == model.TaskDone {
			n++
		}
	}
	return n
}

// ActiveSnapshot is the cross-day working set.
type ActiveSnapshot struct {
	OpenTasks      []model.Task    `json:"open_tasks"`
	ActiveProjects []model.Project `json:"active_projects"`
	OpenDays       []store.OpenDay `json:"open_days"`
}

// SnapshotActive returns open tasks, active projects and open days
// (entries present, not closed) newest first.
func (r *Reconstructor) SnapshotActive(ctx context.Context) (ActiveSnapshot, error) {
	var (
		snap ActiveSnapshot
		err  error
	)
	if snap.OpenTasks, err = r.store.OpenTasks(ctx); err != nil {
		return ActiveSnapshot{}, model.NewPersistenceError("snapshot active", err)
	}
	if snap.ActiveProjects, err = r.store.ActiveProjects(ctx); err != nil {
		return ActiveSnapshot{}, model.NewPersistenceError("snapshot active", err)
	}
	if snap.OpenDays, err = r.store.OpenDays(ctx, OpenDaysLimit); err != nil {
		return ActiveSnapshot{}, model.NewPersistenceError("snapshot active", err)
	}
	return snap, nil
}

// CloseResult is the outcome of CloseDay.
type CloseResult struct {
	Log           model.DailyLog       `json:"daily_log"`
	Snapshot      model.MemorySnapshot `json:"snapshot"`
	AlreadyClosed bool                 `json:"already_closed"`
}

// CloseDay freezes the day's aggregates and writes its memory snapshot, in
// one transaction. Closing an already-closed day is a no-op that returns the
// existing log and snapshot with AlreadyClosed set; the summary argument is
// ignored in that case.
//
// Concurrent calls for the same day in this process share one execution.
func (r *Reconstructor) CloseDay(ctx context.Context, day model.Day, summary string) (CloseResult, error) {
	v, err, shared := r.closes.Do(string(day), func() (any, error) {
		return r.closeDay(ctx, day, summary)
	})
	if err != nil {
		return CloseResult{}, err
	}
	res := v.(CloseResult)
	if shared && !res.AlreadyClosed {
		r.log.Debug("close shared with concurrent caller", zap.String("day", string(day)))
	}
	return res, nil
}

func (r *Reconstructor) closeDay(ctx context.Context, day model.Day, summary string) (CloseResult, error) {
	var res CloseResult

	err := r.store.InTx(ctx, func(tx *store.Tx) error {
		existing, _, err := tx.DailyLog(ctx, day)
		if err != nil {
			return err
		}
		if existing.Closed {
			snap, _, err := tx.MemorySnapshotForDay(ctx, day, model.SnapshotKindDailyClose)
			if err != nil {
				return err
			}
			res = CloseResult{Log: existing, Snapshot: snap, AlreadyClosed: true}
			return nil
		}

		counts, err := tx.DayCounts(ctx, day)
		if err != nil {
			return err
		}
		now := r.clock.Now()
		log := model.DailyLog{
			Day:              day,
			EntryCount:       counts.Entries,
			TaskCount:        counts.Tasks,
			TaskDoneCount:    counts.TasksDone,
			TransactionCount: counts.Transactions,
			FactCount:        counts.Facts,
			MetricCount:      counts.Metrics,
			ProjectCount:     counts.Projects,
			Summary:          summary,
			Closed:           true,
			ClosedAt:         &now,
		}
		if err := tx.UpsertClosedDailyLog(ctx, log); err != nil {
			return err
		}

		snap := model.MemorySnapshot{
			Day:         day,
			Kind:        model.SnapshotKindDailyClose,
			SummaryText: SnapshotText(day, counts, summary),
			Counts:      counts,
			CreatedAt:   now,
		}
		if snap.ID, err = tx.InsertMemorySnapshot(ctx, snap); err != nil {
			return err
		}

		res = CloseResult{Log: log, Snapshot: snap}
		return nil
	})
	if err != nil {
		return CloseResult{}, model.NewPersistenceError("close day", err)
	}

	if res.AlreadyClosed {
		r.log.Info("day already closed", zap.String("day", string(day)))
	} else {
		r.log.Info("day closed",
			zap.String("day", string(day)),
			zap.Int("entries", res.Log.EntryCount),
			zap.Int("tasks_done", res.Log.TaskDoneCount))
	}
	return res, nil
}

// SnapshotText renders the day-close snapshot line.
func SnapshotText(day model.Day, c model.DayCounts, summary string) string {
	if summary == "" {
		summary = "n/a"
	}
	return fmt.Sprintf("Day %s closed. entries=%d tasks=%d done=%d transactions=%d facts=%d. Summary: %s",
		day, c.Entries, c.Tasks, c.TasksDone, c.Transactions, c.Facts, summary)
}
