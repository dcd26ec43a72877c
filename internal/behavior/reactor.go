// Package behavior reacts to clarity results by recording behavior events and,
// for the reset-day protocol, creating a remediation task.
//
// Every reaction is keyed by (kind, window end day) and fires at most once.
// A firing is one transaction: the event and its task are written together or
// not at all.
package behavior

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/clarity"
	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/projector"
	"github.com/roach88/mnemo/internal/store"
)

// Thresholds.
const (
	WarningThreshold      = 0.4
	ConsecutiveIncomplete = 3
)

// Kinds lists every reaction in evaluation order.
func Kinds() []model.BehaviorKind {
	return []model.BehaviorKind{model.KindClarityWarning, model.KindResetDayProtocol, model.KindPerfectWeek}
}

// ParseKind validates s as a reaction kind.
func ParseKind(s string) (model.BehaviorKind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", model.NewValidationError("kind", fmt.Sprintf("unknown behavior kind %q", s))
}

// Report describes one evaluation.
type Report struct {
	AsOf              model.Day            `json:"as_of"`
	Created           []model.BehaviorKind `json:"events_created"`
	Skipped           []model.BehaviorKind `json:"events_skipped"`
	RemediationTaskID *int64               `json:"remediation_task_id,omitempty"`
}

// Reactor evaluates reaction rules against clarity results.
type Reactor struct {
	store *store.Store
	clock clock.Clock
	log   *zap.Logger
}

// New creates a Reactor over s.
func New(s *store.Store, c clock.Clock, log *zap.Logger) *Reactor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reactor{store: s, clock: c, log: log}
}

// Triggered returns the kinds whose conditions hold for res, in evaluation
// order. It does not consult the store.
func Triggered(res clarity.Result) []model.BehaviorKind {
	var kinds []model.BehaviorKind
	if res.Score < WarningThreshold {
		kinds = append(kinds, model.KindClarityWarning)
	}
	if incompleteTail(res) != nil {
		kinds = append(kinds, model.KindResetDayProtocol)
	}
	if res.Score >= 1 {
		kinds = append(kinds, model.KindPerfectWeek)
	}
	return kinds
}

// incompleteTail returns the most recent ConsecutiveIncomplete days when all
// of them are incomplete, or nil.
func incompleteTail(res clarity.Result) []model.Day {
	tail := res.Tail(ConsecutiveIncomplete)
	if len(tail) < ConsecutiveIncomplete {
		return nil
	}
	days := make([]model.Day, 0, len(tail))
	for _, d := range tail {
		if d.Complete {
			return nil
		}
		days = append(days, d.Day)
	}
	return days
}

var errAlreadyFired = errors.New("reaction already fired")

// Evaluate applies every triggered reaction for the window ending at
// res.AsOf. Reactions that already fired for that day are reported as skipped.
// Calling Evaluate again with unchanged state writes nothing.
func (r *Reactor) Evaluate(ctx context.Context, res clarity.Result) (Report, error) {
	report := Report{
		AsOf:    res.AsOf,
		Created: []model.BehaviorKind{},
		Skipped: []model.BehaviorKind{},
	}

	for _, kind := range Triggered(res) {
		taskID, err := r.fire(ctx, kind, res)
		if errors.Is(err, errAlreadyFired) {
			report.Skipped = append(report.Skipped, kind)
			continue
		}
		if err != nil {
			r.log.Error("reaction failed", zap.String("kind", string(kind)), zap.Error(err))
			return report, model.NewPersistenceError("fire "+string(kind), err)
		}
		report.Created = append(report.Created, kind)
		if taskID != nil {
			report.RemediationTaskID = taskID
		}
		r.log.Info("reaction fired",
			zap.String("kind", string(kind)),
			zap.String("day", string(res.AsOf)),
			zap.Float64("score", res.Score),
		)
	}
	return report, nil
}

func (r *Reactor) fire(ctx context.Context, kind model.BehaviorKind, res clarity.Result) (*int64, error) {
	var taskID *int64
	err := r.store.InTx(ctx, func(tx *store.Tx) error {
		fired, err := tx.HasBehaviorEvent(ctx, kind, res.AsOf)
		if err != nil {
			return err
		}
		if fired {
			return errAlreadyFired
		}

		now := r.clock.Now()
		var payload model.Payload
		switch kind {
		case model.KindClarityWarning:
			payload = model.Payload{
				"score":         res.Score,
				"complete_days": res.CompleteDays,
				"total_days":    res.TotalDays,
				"threshold":     WarningThreshold,
			}
		case model.KindResetDayProtocol:
			reason := fmt.Sprintf("Created by the behavioral reactor: %d consecutive incomplete days detected.", ConsecutiveIncomplete)
			task, err := tx.InsertTask(ctx, projector.RemediationTask(res.AsOf, reason, now))
			if err != nil {
				return err
			}
			taskID = &task.ID
			payload = model.Payload{
				"consecutive_incomplete_days": ConsecutiveIncomplete,
				"incomplete_days":             incompleteTail(res),
				"task_id":                     task.ID,
			}
		case model.KindPerfectWeek:
			payload = model.Payload{
				"score":         res.Score,
				"complete_days": res.CompleteDays,
				"total_days":    res.TotalDays,
			}
		default:
			return fmt.Errorf("unknown behavior kind %q", kind)
		}

		body, err := model.MarshalPayload(payload)
		if err != nil {
			return err
		}
		_, inserted, err := tx.InsertBehaviorEvent(ctx, model.BehaviorEvent{
			Kind:      kind,
			Day:       res.AsOf,
			Payload:   body,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyFired
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return taskID, nil
}
