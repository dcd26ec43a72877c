package narrative

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/store"
)

// DefaultListLimit is the page size used when List is given none.
const DefaultListLimit = 20

// Compiler reads a day's records and upserts its narrative.
type Compiler struct {
	store *store.Store
	clock clock.Clock
	log   *zap.Logger
}

// NewCompiler creates a Compiler over s.
func NewCompiler(s *store.Store, c clock.Clock, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{store: s, clock: c, log: log}
}

// Page is one page of stored narratives.
type Page struct {
	Total int                     `json:"total"`
	Items []model.NarrativeMemory `json:"items"`
}

// Input loads everything recorded for day.
func (c *Compiler) Input(ctx context.Context, day model.Day) (DayInput, error) {
	var (
		in  DayInput
		err error
	)
	if in.Entries, err = c.store.EntriesForDay(ctx, day); err != nil {
		return DayInput{}, model.NewPersistenceError("load day", err)
	}
	if in.Tasks, err = c.store.TasksForDay(ctx, day); err != nil {
		return DayInput{}, model.NewPersistenceError("load day", err)
	}
	if in.Transactions, err = c.store.TransactionsForDay(ctx, day); err != nil {
		return DayInput{}, model.NewPersistenceError("load day", err)
	}
	if in.Facts, err = c.store.FactsForDay(ctx, day); err != nil {
		return DayInput{}, model.NewPersistenceError("load day", err)
	}
	if in.Metrics, err = c.store.MetricsForDay(ctx, day); err != nil {
		return DayInput{}, model.NewPersistenceError("load day", err)
	}
	if in.Projects, err = c.store.ProjectsForDay(ctx, day); err != nil {
		return DayInput{}, model.NewPersistenceError("load day", err)
	}
	return in, nil
}

// CompileDay compiles and upserts the daily narrative of day.
// Recompiling replaces the previous fields.
func (c *Compiler) CompileDay(ctx context.Context, day model.Day) (model.NarrativeMemory, error) {
	in, err := c.Input(ctx, day)
	if err != nil {
		return model.NarrativeMemory{}, err
	}
	return c.upsert(ctx, day, model.PeriodDaily, BuildDay(day, in))
}

// CompileWeek aggregates the seven days starting at weekStart into the weekly
// narrative. Days without a daily narrative are compiled first; existing ones
// are reused as stored.
func (c *Compiler) CompileWeek(ctx context.Context, weekStart model.Day) (model.NarrativeMemory, error) {
	days := make([]Fields, 0, 7)
	for _, day := range model.Window(weekStart.AddDays(6), 7) {
		n, found, err := c.store.Narrative(ctx, day, model.PeriodDaily)
		if err != nil {
			return model.NarrativeMemory{}, model.NewPersistenceError("load narrative", err)
		}
		if !found {
			if n, err = c.CompileDay(ctx, day); err != nil {
				return model.NarrativeMemory{}, err
			}
		}
		days = append(days, FieldsOf(n))
	}
	return c.upsert(ctx, weekStart, model.PeriodWeekly, BuildWeek(weekStart, days))
}

// List returns a page of narratives, newest first. An empty period lists both.
func (c *Compiler) List(ctx context.Context, period model.Period, limit, offset int) (Page, error) {
	switch period {
	case "", model.PeriodDaily, model.PeriodWeekly:
	default:
		return Page{}, model.NewValidationError("period", "unknown period "+string(period))
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		return Page{}, model.NewValidationError("offset", "offset must not be negative")
	}

	items, total, err := c.store.ListNarratives(ctx, period, limit, offset)
	if err != nil {
		return Page{}, model.NewPersistenceError("list narratives", err)
	}
	return Page{Total: total, Items: items}, nil
}

// Get returns the stored narrative with id.
func (c *Compiler) Get(ctx context.Context, id int64) (model.NarrativeMemory, error) {
	n, err := c.store.GetNarrative(ctx, id)
	if err != nil {
		if model.IsNotFound(err) {
			return model.NarrativeMemory{}, err
		}
		return model.NarrativeMemory{}, model.NewPersistenceError("get narrative", err)
	}
	return n, nil
}

func (c *Compiler) upsert(ctx context.Context, date model.Day, period model.Period, f Fields) (model.NarrativeMemory, error) {
	now := c.clock.Now()
	stored, err := c.store.UpsertNarrative(ctx, model.NarrativeMemory{
		Date:           date,
		Period:         period,
		Summary:        f.Summary,
		KeyEvents:      f.KeyEvents,
		EmotionalState: f.EmotionalState,
		Decisions:      f.Decisions,
		Lessons:        f.Lessons,
		Tags:           f.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return model.NarrativeMemory{}, model.NewPersistenceError("upsert narrative", err)
	}
	c.log.Debug("narrative compiled",
		zap.String("date", string(date)),
		zap.String("period", string(period)),
		zap.String("state", stored.EmotionalState),
	)
	return stored, nil
}
