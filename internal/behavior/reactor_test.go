package behavior

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mnemo/internal/clarity"
	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/projector"
	"github.com/roach88/mnemo/internal/store"
)

var now = time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)

func newTestReactor(t *testing.T) (*Reactor, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, clock.NewFixed(now), nil), s
}

// window builds a result ending at asOf whose days are complete where the
// mask says so, oldest first.
func window(asOf model.Day, mask ...bool) clarity.Result {
	days := model.Window(asOf, clarity.WindowDays)
	res := clarity.Result{AsOf: asOf, TotalDays: clarity.WindowDays}
	for i, day := range days {
		b := clarity.DayBreakdown{Day: day}
		if i < len(mask) && mask[i] {
			b = clarity.DayBreakdown{Day: day, Entries: 3, Transactions: 1, Closed: true, Complete: true}
		}
		res.Days = append(res.Days, b)
	}
	res.Score, res.CompleteDays = clarity.Score(res.Days)
	return res
}

func TestTriggered(t *testing.T) {
	tests := []struct {
		name string
		res  clarity.Result
		want []model.BehaviorKind
	}{
		{"empty week", window("2024-03-04"), []model.BehaviorKind{model.KindClarityWarning, model.KindResetDayProtocol}},
		{"low score recent activity", window("2024-03-04", false, false, false, false, false, false, true), []model.BehaviorKind{model.KindClarityWarning}},
		{"three complete days then stall", window("2024-03-04", true, true, true, false, false, false, false), []model.BehaviorKind{model.KindResetDayProtocol}},
		{"healthy", window("2024-03-04", false, true, true, true, false, true, true), nil},
		{"perfect", window("2024-03-04", true, true, true, true, true, true, true), []model.BehaviorKind{model.KindPerfectWeek}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Triggered(tt.res))
		})
	}
}

func TestEvaluate_ResetDayProtocol(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	report, err := r.Evaluate(ctx, window("2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, []model.BehaviorKind{model.KindClarityWarning, model.KindResetDayProtocol}, report.Created)
	assert.Empty(t, report.Skipped)
	require.NotNil(t, report.RemediationTaskID)

	task, err := s.GetTask(ctx, *report.RemediationTaskID)
	require.NoError(t, err)
	assert.Equal(t, projector.RemediationTitle, task.Title)
	assert.Equal(t, model.OriginBehavior, task.Origin)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Nil(t, task.EntryID)
	assert.Equal(t, model.Day("2024-03-04"), task.Day)

	events, total, err := s.ListBehaviorEvents(ctx, store.EventFilter{Kind: model.KindResetDayProtocol})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	payload, err := model.UnmarshalPayload(events[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, float64(*report.RemediationTaskID), payload["task_id"])
	assert.Equal(t, []any{"2024-03-02", "2024-03-03", "2024-03-04"}, payload["incomplete_days"])
	assert.Equal(t, float64(ConsecutiveIncomplete), payload["consecutive_incomplete_days"])
}

func TestEvaluate_IsIdempotent(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()
	res := window("2024-03-04")

	_, err := r.Evaluate(ctx, res)
	require.NoError(t, err)
	again, err := r.Evaluate(ctx, res)
	require.NoError(t, err)

	assert.Empty(t, again.Created)
	assert.Equal(t, []model.BehaviorKind{model.KindClarityWarning, model.KindResetDayProtocol}, again.Skipped)
	assert.Nil(t, again.RemediationTaskID)

	tasks, err := s.TasksForDay(ctx, "2024-03-04")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, total, err := s.ListBehaviorEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestEvaluate_NewWindowFiresAgain(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	_, err := r.Evaluate(ctx, window("2024-03-04"))
	require.NoError(t, err)
	report, err := r.Evaluate(ctx, window("2024-03-05"))
	require.NoError(t, err)
	assert.Len(t, report.Created, 2)

	open, err := s.OpenTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestEvaluate_PerfectWeek(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	report, err := r.Evaluate(ctx, window("2024-03-04", true, true, true, true, true, true, true))
	require.NoError(t, err)
	assert.Equal(t, []model.BehaviorKind{model.KindPerfectWeek}, report.Created)
	assert.Nil(t, report.RemediationTaskID)

	events, _, err := s.ListBehaviorEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, `{"complete_days":7,"score":1,"total_days":7}`, events[0].Payload)
}

func TestEvaluate_ClarityWarningPayload(t *testing.T) {
	r, s := newTestReactor(t)
	ctx := context.Background()

	_, err := r.Evaluate(ctx, window("2024-03-04", false, false, false, false, false, true, true))
	require.NoError(t, err)

	events, _, err := s.ListBehaviorEvents(ctx, store.EventFilter{Kind: model.KindClarityWarning})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, `{"complete_days":2,"score":0.2857,"threshold":0.4,"total_days":7}`, events[0].Payload)
	assert.True(t, events[0].CreatedAt.Equal(now))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("perfect_week")
	require.NoError(t, err)
	assert.Equal(t, model.KindPerfectWeek, k)

	_, err = ParseKind("bogus")
	assert.True(t, model.IsValidationError(err))
}
