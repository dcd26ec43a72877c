// Package clarity computes the rolling seven-day clarity score.
//
// A day is complete when it has at least three entries, at least one done task
// or one transaction, and has been closed. Closed days are scored from their
// frozen DailyLog counts; open days from live counts, though an open day is
// never complete.
package clarity

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/store"
)

// Window parameters.
const (
	WindowDays = 7
	MinEntries = 3
)

// DayBreakdown explains why a day is or is not complete.
type DayBreakdown struct {
	Day          model.Day `json:"day"`
	Entries      int       `json:"entry_count"`
	TasksDone    int       `json:"task_done_count"`
	Transactions int       `json:"transaction_count"`
	Closed       bool      `json:"is_closed"`
	Complete     bool      `json:"is_complete"`
}

// HasOutcome reports whether the day produced a done task or a transaction.
func (d DayBreakdown) HasOutcome() bool { return d.TasksDone > 0 || d.Transactions > 0 }

func (d DayBreakdown) complete() bool {
	return d.Entries >= MinEntries && d.HasOutcome() && d.Closed
}

// Result is one computed window.
type Result struct {
	AsOf         model.Day      `json:"as_of"`
	Score        float64        `json:"score"`
	CompleteDays int            `json:"complete_days"`
	TotalDays    int            `json:"total_days"`
	Days         []DayBreakdown `json:"days"`
}

// Engine computes clarity from the store.
type Engine struct {
	store *store.Store
	clock clock.Clock
	log   *zap.Logger
}

// New creates an Engine over s.
func New(s *store.Store, c clock.Clock, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, clock: c, log: log}
}

// DayBreakdown evaluates a single day. It writes nothing.
func (e *Engine) DayBreakdown(ctx context.Context, day model.Day) (DayBreakdown, error) {
	dl, found, err := e.store.DailyLog(ctx, day)
	if err != nil {
		return DayBreakdown{}, model.NewPersistenceError("day breakdown", err)
	}

	var counts model.DayCounts
	if found && dl.Closed {
		counts = dl.Counts()
	} else if counts, err = e.store.DayCounts(ctx, day); err != nil {
		return DayBreakdown{}, model.NewPersistenceError("day breakdown", err)
	}

	b := DayBreakdown{
		Day:          day,
		Entries:      counts.Entries,
		TasksDone:    counts.TasksDone,
		Transactions: counts.Transactions,
		Closed:       found && dl.Closed,
	}
	b.Complete = b.complete()
	return b, nil
}

// Compute scores the window [asOf-6, asOf] and refreshes the cached
// ClarityWindowSnapshot for asOf. The cache is never read back.
func (e *Engine) Compute(ctx context.Context, asOf model.Day) (Result, error) {
	days := model.Window(asOf, WindowDays)
	breakdowns := make([]DayBreakdown, 0, len(days))
	for _, day := range days {
		b, err := e.DayBreakdown(ctx, day)
		if err != nil {
			return Result{}, err
		}
		breakdowns = append(breakdowns, b)
	}

	score, complete := Score(breakdowns)
	res := Result{
		AsOf:         asOf,
		Score:        score,
		CompleteDays: complete,
		TotalDays:    WindowDays,
		Days:         breakdowns,
	}

	err := e.store.UpsertClarityWindow(ctx, model.ClarityWindowSnapshot{
		WindowEnd:    asOf,
		Score:        res.Score,
		CompleteDays: res.CompleteDays,
		TotalDays:    res.TotalDays,
		ComputedAt:   e.clock.Now(),
	})
	if err != nil {
		return Result{}, model.NewPersistenceError("cache clarity window", err)
	}

	e.log.Debug("clarity computed",
		zap.String("as_of", string(asOf)),
		zap.Float64("score", res.Score),
		zap.Int("complete_days", res.CompleteDays),
	)
	return res, nil
}

// Score returns complete/WindowDays rounded half-up to four decimals and
// clamped to [0, 1], and the complete day count.
func Score(days []DayBreakdown) (float64, int) {
	complete := 0
	for _, d := range days {
		if d.complete() {
			complete++
		}
	}
	score := math.Floor(float64(complete)/WindowDays*10000+0.5) / 10000
	return math.Max(0, math.Min(1, score)), complete
}

// Tail returns the last n days of the window, oldest first.
func (r Result) Tail(n int) []DayBreakdown {
	if n > len(r.Days) {
		n = len(r.Days)
	}
	return r.Days[len(r.Days)-n:]
}
