// Package ingest is the ingestion orchestrator: validate, route, append to
// the ledger and fan out to exactly one projection, atomically.
package ingest

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/projector"
	"github.com/roach88/mnemo/internal/router"
	"github.com/roach88/mnemo/internal/store"
)

// MaxRawRunes is the longest accepted entry after trimming.
const MaxRawRunes = 10_000

// DefaultBatchLimit is the default maximum number of items per batch.
const DefaultBatchLimit = 100

// Orchestrator coordinates ingestion against a single store.
type Orchestrator struct {
	store      *store.Store
	clock      clock.Clock
	ids        IDGenerator
	log        *zap.Logger
	batchLimit int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for created_at and the default day.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithIDGenerator sets the request/batch id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithBatchLimit sets the maximum number of items per batch.
// Non-positive values keep the default.
func WithBatchLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchLimit = n
		}
	}
}

// New creates an orchestrator over s.
func New(s *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      s,
		clock:      clock.System{},
		ids:        UUIDv7Generator{},
		log:        zap.NewNop(),
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BatchLimit returns the configured batch cap.
func (o *Orchestrator) BatchLimit() int { return o.batchLimit }

// Request is one raw entry to ingest. Source and Day are optional; an empty
// Day means today (UTC).
type Request struct {
	Raw    string `json:"raw" yaml:"raw"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Day    string `json:"day,omitempty" yaml:"day,omitempty"`
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Entry      model.Entry         `json:"entry"`
	Projection model.ProjectionRow `json:"routed_entity"`
}

type validated struct {
	raw    string
	source model.Source
	day    model.Day
}

func (o *Orchestrator) validate(req Request) (validated, error) {
	raw := strings.TrimSpace(req.Raw)
	if raw == "" {
		return validated{}, model.NewValidationError("raw", "raw text must not be empty after stripping whitespace")
	}
	if !utf8.ValidString(raw) {
		return validated{}, model.NewValidationError("raw", "raw text must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(raw); n > MaxRawRunes {
		return validated{}, model.NewValidationError("raw", "raw text exceeds 10000 characters")
	}

	src, err := model.ParseSource(req.Source)
	if err != nil {
		return validated{}, err
	}

	day := clock.Today(o.clock)
	if req.Day != "" {
		if day, err = model.ParseDay(req.Day); err != nil {
			return validated{}, err
		}
	}
	return validated{raw: raw, source: src, day: day}, nil
}

// Ingest validates req, routes it against a fresh rule snapshot and writes
// the entry and its projection row in one transaction. On any error nothing
// is written.
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (Result, error) {
	v, err := o.validate(req)
	if err != nil {
		return Result{}, err
	}
	return o.ingest(ctx, v, o.ids.Generate())
}

func (o *Orchestrator) ingest(ctx context.Context, v validated, requestID string) (Result, error) {
	rules, err := o.store.RuleSet(ctx)
	if err != nil {
		return Result{}, o.persistence("load rules", err)
	}

	routed := router.Evaluate(v.raw, rules)
	if len(routed.Degraded) > 0 {
		o.log.Warn("skipped rules with invalid patterns",
			zap.Strings("rules", routed.Degraded),
			zap.String("request_id", requestID))
	}

	entry := model.Entry{
		Raw:         v.raw,
		EntryType:   routed.Decision.EntryType,
		Category:    routed.Decision.Category,
		RuleMatched: routed.Decision.RuleName,
		Day:         v.day,
		Source:      v.source,
		RequestID:   requestID,
		CreatedAt:   o.clock.Now(),
	}

	var result Result
	err = o.store.InTx(ctx, func(tx *store.Tx) error {
		id, err := tx.AppendEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id

		row, err := tx.InsertProjection(ctx, projector.ApplyEntry(entry))
		if err != nil {
			return err
		}
		result = Result{Entry: entry, Projection: row}
		return nil
	})
	if err != nil {
		return Result{}, o.persistence("ingest", err)
	}

	o.log.Debug("entry ingested",
		zap.Int64("entry_id", result.Entry.ID),
		zap.String("routed_to", string(result.Entry.Category)),
		zap.Stringp("rule", result.Entry.RuleMatched),
		zap.String("day", string(result.Entry.Day)),
		zap.String("request_id", requestID))
	return result, nil
}

func (o *Orchestrator) persistence(op string, err error) error {
	o.log.Error("persistence failure", zap.String("op", op), zap.Error(err))
	return model.NewPersistenceError(op, err)
}
