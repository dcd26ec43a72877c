package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/behavior"
	"github.com/roach88/mnemo/internal/clarity"
	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/narrative"
	"github.com/roach88/mnemo/internal/state"
	"github.com/roach88/mnemo/internal/store"
)

// Engine wires every component over a single store.
type Engine struct {
	store *store.Store
	clock clock.Clock
	log   *zap.Logger

	requestIDs ingest.IDGenerator
	batchLimit int

	ingest    *ingest.Orchestrator
	state     *state.Reconstructor
	narrative *narrative.Compiler
	clarity   *clarity.Engine
	reactor   *behavior.Reactor
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock. Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Default: a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBatchLimit caps the number of items per batch ingest.
func WithBatchLimit(n int) Option {
	return func(e *Engine) { e.batchLimit = n }
}

// WithRequestIDs sets the request id generator used for ledger entries and
// batches. Default: UUIDv7.
func WithRequestIDs(g ingest.IDGenerator) Option {
	return func(e *Engine) { e.requestIDs = g }
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		clock:      clock.System{},
		log:        zap.NewNop(),
		requestIDs: ingest.UUIDv7Generator{},
		batchLimit: ingest.DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}

	e.ingest = ingest.New(s,
		ingest.WithClock(e.clock),
		ingest.WithIDGenerator(e.requestIDs),
		ingest.WithLogger(e.log.Named("ingest")),
		ingest.WithBatchLimit(e.batchLimit),
	)
	e.state = state.New(s, e.clock, e.log.Named("state"))
	e.narrative = narrative.NewCompiler(s, e.clock, e.log.Named("narrative"))
	e.clarity = clarity.New(s, e.clock, e.log.Named("clarity"))
	e.reactor = behavior.New(s, e.clock, e.log.Named("behavior"))
	return e
}

// Today returns the current UTC day.
func (e *Engine) Today() model.Day { return clock.Today(e.clock) }

// day resolves an optional day argument.
func (e *Engine) day(s string) (model.Day, error) {
	if s == "" {
		return e.Today(), nil
	}
	return model.ParseDay(s)
}

// fail converts an error into the engine's error type. Errors that already
// carry a code pass through; anything else is a store failure.
func (e *Engine) fail(op string, err error) error {
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	e.log.Error("persistence failure", zap.String("op", op), zap.Error(err))
	return model.NewPersistenceError(op, err)
}

// Ingest captures one raw entry.
func (e *Engine) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	return e.ingest.Ingest(ctx, req)
}

// IngestBatch captures many entries. Item failures are reported inline.
func (e *Engine) IngestBatch(ctx context.Context, req ingest.BatchRequest) (ingest.BatchResult, error) {
	return e.ingest.IngestBatch(ctx, req)
}

// SnapshotDay returns the full state of day.
func (e *Engine) SnapshotDay(ctx context.Context, day string) (state.DaySnapshot, error) {
	d, err := e.day(day)
	if err != nil {
		return state.DaySnapshot{}, err
	}
	return e.state.SnapshotDay(ctx, d)
}

// SnapshotActive returns open tasks, active projects and open days.
func (e *Engine) SnapshotActive(ctx context.Context) (state.ActiveSnapshot, error) {
	return e.state.SnapshotActive(ctx)
}

// CloseDay freezes day. Closing a closed day returns the stored result.
func (e *Engine) CloseDay(ctx context.Context, day, summary string) (state.CloseResult, error) {
	d, err := e.day(day)
	if err != nil {
		return state.CloseResult{}, err
	}
	return e.state.CloseDay(ctx, d, summary)
}

// CompileDay compiles the daily narrative of day.
func (e *Engine) CompileDay(ctx context.Context, day string) (model.NarrativeMemory, error) {
	d, err := e.day(day)
	if err != nil {
		return model.NarrativeMemory{}, err
	}
	return e.narrative.CompileDay(ctx, d)
}

// CompileWeek compiles the weekly narrative of the seven days starting at
// weekStart. An empty weekStart means the week ending today.
func (e *Engine) CompileWeek(ctx context.Context, weekStart string) (model.NarrativeMemory, error) {
	var (
		d   model.Day
		err error
	)
	if weekStart == "" {
		d = e.Today().AddDays(-6)
	} else if d, err = model.ParseDay(weekStart); err != nil {
		return model.NarrativeMemory{}, err
	}
	return e.narrative.CompileWeek(ctx, d)
}

// ListMemory returns stored narratives, newest first.
func (e *Engine) ListMemory(ctx context.Context, period string, limit, offset int) (narrative.Page, error) {
	return e.narrative.List(ctx, model.Period(period), limit, offset)
}

// GetMemory returns one stored narrative by id.
func (e *Engine) GetMemory(ctx context.Context, id int64) (model.NarrativeMemory, error) {
	return e.narrative.Get(ctx, id)
}

// NorthStar is a clarity computation plus the reactions it triggered.
type NorthStar struct {
	Clarity   clarity.Result  `json:"clarity"`
	Reactions behavior.Report `json:"reactions"`
}

// NorthStar computes the clarity window ending at asOf and evaluates the
// behavioral reactor against it. Reading the metric is what drives reactions.
func (e *Engine) NorthStar(ctx context.Context, asOf string) (NorthStar, error) {
	d, err := e.day(asOf)
	if err != nil {
		return NorthStar{}, err
	}
	res, err := e.clarity.Compute(ctx, d)
	if err != nil {
		return NorthStar{}, err
	}
	report, err := e.reactor.Evaluate(ctx, res)
	if err != nil {
		return NorthStar{}, err
	}
	return NorthStar{Clarity: res, Reactions: report}, nil
}

// NorthStarDay explains the completeness of a single day. It writes nothing.
func (e *Engine) NorthStarDay(ctx context.Context, day string) (clarity.DayBreakdown, error) {
	d, err := e.day(day)
	if err != nil {
		return clarity.DayBreakdown{}, err
	}
	return e.clarity.DayBreakdown(ctx, d)
}

// EventQuery filters ListBehaviorEvents. Empty fields match everything.
type EventQuery struct {
	Since  string
	Kind   string
	Limit  int
	Offset int
}

// EventPage is one page of behavior events, newest first.
type EventPage struct {
	Total int                   `json:"total"`
	Items []model.BehaviorEvent `json:"items"`
}

// DefaultEventLimit is the page size used when a query gives none.
const DefaultEventLimit = 50

// ListBehaviorEvents returns recorded reactions.
func (e *Engine) ListBehaviorEvents(ctx context.Context, q EventQuery) (EventPage, error) {
	f := store.EventFilter{Limit: q.Limit, Offset: q.Offset}
	if f.Limit <= 0 {
		f.Limit = DefaultEventLimit
	}
	if f.Offset < 0 {
		return EventPage{}, model.NewValidationError("offset", "offset must not be negative")
	}
	if q.Since != "" {
		d, err := model.ParseDay(q.Since)
		if err != nil {
			return EventPage{}, err
		}
		f.Since = d
	}
	if q.Kind != "" {
		k, err := behavior.ParseKind(q.Kind)
		if err != nil {
			return EventPage{}, err
		}
		f.Kind = k
	}

	items, total, err := e.store.ListBehaviorEvents(ctx, f)
	if err != nil {
		return EventPage{}, e.fail("list behavior events", err)
	}
	return EventPage{Total: total, Items: items}, nil
}

// ReplayDay rebuilds the projections of day from the ledger.
func (e *Engine) ReplayDay(ctx context.Context, day string) (ingest.ReplayReport, error) {
	d, err := e.day(day)
	if err != nil {
		return ingest.ReplayReport{}, err
	}
	return e.ingest.ReplayDay(ctx, d)
}

// VerifyDay reports whether replaying day would change its projections.
func (e *Engine) VerifyDay(ctx context.Context, day string) (ingest.ReplayReport, error) {
	d, err := e.day(day)
	if err != nil {
		return ingest.ReplayReport{}, err
	}
	return e.ingest.VerifyDay(ctx, d)
}

// Health reports store reachability and basic counts.
type Health struct {
	Status  string `json:"status"`
	Entries int    `json:"entries"`
	Rules   int    `json:"rules"`
	Today   string `json:"today"`
}

// Health pings the store.
func (e *Engine) Health(ctx context.Context) (Health, error) {
	if err := e.store.Ping(ctx); err != nil {
		return Health{Status: "unavailable"}, e.fail("ping", err)
	}
	entries, err := e.store.CountEntries(ctx)
	if err != nil {
		return Health{Status: "unavailable"}, e.fail("count entries", err)
	}
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return Health{Status: "unavailable"}, e.fail("list rules", err)
	}
	return Health{Status: "ok", Entries: entries, Rules: len(rules), Today: string(e.Today())}, nil
}
