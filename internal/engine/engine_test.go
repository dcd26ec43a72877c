package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/projector"
	"github.com/roach88/mnemo/internal/store"
)

var now = time.Date(2024, 3, 10, 21, 0, 0, 0, time.UTC)

func setupTestEngine(t *testing.T, opts ...Option) (*Engine, *clock.Fixed) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.NewFixed(now)
	opts = append([]Option{WithClock(c), WithRequestIDs(ingest.NewSequenceGenerator("req"))}, opts...)
	e := New(s, opts...)
	seeded, err := e.SeedDefaultRules(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return e, c
}

func capture(t *testing.T, e *Engine, day string, raws ...string) []ingest.Result {
	t.Helper()
	out := make([]ingest.Result, 0, len(raws))
	for _, raw := range raws {
		res, err := e.Ingest(context.Background(), ingest.Request{Raw: raw, Day: day})
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func TestIngest_DefaultsToToday(t *testing.T) {
	e, _ := setupTestEngine(t)
	res := capture(t, e, "", "TODO: llamar al banco")
	assert.Equal(t, model.Day("2024-03-10"), res[0].Entry.Day)
	assert.Equal(t, "req-1", res[0].Entry.RequestID)
}

func TestSnapshotDay_RejectsBadDay(t *testing.T) {
	e, _ := setupTestEngine(t)
	_, err := e.SnapshotDay(context.Background(), "2024-13-01")
	assert.True(t, model.IsValidationError(err))
}

func TestCloseDay_Flow(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()
	capture(t, e, "2024-03-10", "TODO: a", "gasté 5", "random")

	first, err := e.CloseDay(ctx, "", "buen día")
	require.NoError(t, err)
	assert.False(t, first.AlreadyClosed)
	assert.True(t, first.Log.Closed)

	again, err := e.CloseDay(ctx, "2024-03-10", "otra cosa")
	require.NoError(t, err)
	assert.True(t, again.AlreadyClosed)
	assert.Equal(t, first.Snapshot.ID, again.Snapshot.ID)

	snap, err := e.SnapshotDay(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.True(t, snap.Closed)
}

func TestNorthStar_ComputesAndReacts(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	ns, err := e.NorthStar(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.Day("2024-03-10"), ns.Clarity.AsOf)
	assert.Equal(t, 0.0, ns.Clarity.Score)
	assert.Equal(t, []model.BehaviorKind{model.KindClarityWarning, model.KindResetDayProtocol}, ns.Reactions.Created)
	require.NotNil(t, ns.Reactions.RemediationTaskID)

	again, err := e.NorthStar(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Empty(t, again.Reactions.Created)
	assert.Len(t, again.Reactions.Skipped, 2)

	active, err := e.SnapshotActive(ctx)
	require.NoError(t, err)
	require.Len(t, active.OpenTasks, 1)
	assert.Equal(t, projector.RemediationTitle, active.OpenTasks[0].Title)

	page, err := e.ListBehaviorEvents(ctx, EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = e.ListBehaviorEvents(ctx, EventQuery{Kind: "reset_day_protocol", Since: "2024-03-10"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = e.ListBehaviorEvents(ctx, EventQuery{Kind: "nope"})
	assert.True(t, model.IsValidationError(err))
}

func TestNorthStar_PerfectWeek(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()
	for _, day := range model.Window("2024-03-10", 7) {
		capture(t, e, string(day), "gasté 5", "random", "TODO: x")
		_, err := e.CloseDay(ctx, string(day), "")
		require.NoError(t, err)
	}

	ns, err := e.NorthStar(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1.0, ns.Clarity.Score)
	assert.Equal(t, []model.BehaviorKind{model.KindPerfectWeek}, ns.Reactions.Created)

	day, err := e.NorthStarDay(ctx, "2024-03-04")
	require.NoError(t, err)
	assert.True(t, day.Complete)
}

func TestCompileMemory(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()
	capture(t, e, "2024-03-10", "TODO: decidir proveedor")

	daily, err := e.CompileDay(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.Day("2024-03-10"), daily.Date)

	weekly, err := e.CompileWeek(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, model.Day("2024-03-04"), weekly.Date)
	assert.Equal(t, model.PeriodWeekly, weekly.Period)

	page, err := e.ListMemory(ctx, "weekly", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = e.CompileWeek(ctx, "yesterday")
	assert.True(t, model.IsValidationError(err))
}

func TestTransitionTask(t *testing.T) {
	e, c := setupTestEngine(t)
	ctx := context.Background()
	res := capture(t, e, "", "TODO: a")
	id := res[0].Projection.Task.ID

	c.Advance(time.Minute)
	task, err := e.TransitionTask(ctx, id, "in_progress")
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, task.Status)
	assert.True(t, task.UpdatedAt.Equal(now.Add(time.Minute)))

	task, err = e.TransitionTask(ctx, id, "done")
	require.NoError(t, err)
	assert.Equal(t, model.TaskDone, task.Status)

	_, err = e.TransitionTask(ctx, id, "pending")
	assert.True(t, model.IsStateTransitionError(err))

	stored, err := e.store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskDone, stored.Status)

	_, err = e.TransitionTask(ctx, id, "finished")
	assert.True(t, model.IsValidationError(err))

	_, err = e.TransitionTask(ctx, 999, "done")
	assert.True(t, model.IsNotFound(err))
}

func TestTransitionProject(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()
	res := capture(t, e, "", "PROJECT: mnemo")
	id := res[0].Projection.Project.ID

	p, err := e.TransitionProject(ctx, id, "paused")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectPaused, p.Status)

	_, err = e.TransitionProject(ctx, id, "paused")
	assert.True(t, model.IsStateTransitionError(err))

	active, err := e.SnapshotActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active.ActiveProjects)
}

func TestRules_AddToggleImport(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()

	rules, err := e.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 6)

	added, err := e.AddRule(ctx, model.Rule{
		Name:      "event_keyword",
		Pattern:   `^(EVENT|EVENTO):`,
		Priority:  40,
		Target:    model.CategoryFacts,
		EntryType: model.EntryEvent,
		Active:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), added.Position)

	res := capture(t, e, "", "EVENT: reunión")
	assert.Equal(t, model.EntryEvent, res[0].Entry.EntryType)

	_, err = e.AddRule(ctx, added)
	assert.True(t, model.IsValidationError(err))

	_, err = e.AddRule(ctx, model.Rule{Name: "bad", Pattern: "(", Target: model.CategoryFacts, EntryType: model.EntryNote})
	assert.True(t, model.IsValidationError(err))

	require.NoError(t, e.SetRuleActive(ctx, "task_prefix", false))
	res = capture(t, e, "", "TODO: ignored")
	assert.Equal(t, model.CategoryFacts, res[0].Entry.Category)
	assert.True(t, model.IsNotFound(e.SetRuleActive(ctx, "missing", true)))

	imported, err := e.ImportRules(ctx, []model.Rule{
		{Name: "only", Pattern: "x", Priority: 1, Target: model.CategoryMetrics, EntryType: model.EntryMetric, Active: true},
	})
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, int64(1), imported[0].Position)

	_, err = e.ImportRules(ctx, []model.Rule{
		{Name: "dup", Pattern: "x", Target: model.CategoryFacts, EntryType: model.EntryNote},
		{Name: "dup", Pattern: "y", Target: model.CategoryFacts, EntryType: model.EntryNote},
	})
	assert.True(t, model.IsValidationError(err))

	rules, err = e.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestReplayAndVerify(t *testing.T) {
	e, _ := setupTestEngine(t)
	ctx := context.Background()
	capture(t, e, "2024-03-10", "TODO: a", "gasté 5")

	report, err := e.VerifyDay(ctx, "")
	require.NoError(t, err)
	assert.True(t, report.Equivalent)

	report, err = e.ReplayDay(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.True(t, report.Equivalent)
}

func TestHealth(t *testing.T) {
	e, _ := setupTestEngine(t)
	capture(t, e, "", "hola")

	h, err := e.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Health{Status: "ok", Entries: 1, Rules: 6, Today: "2024-03-10"}, h)
}

func TestStoreFailureIsPersistence(t *testing.T) {
	e, _ := setupTestEngine(t)
	require.NoError(t, e.store.Close())

	_, err := e.Health(context.Background())
	assert.True(t, model.IsPersistenceFailure(err))

	_, err = e.Rules(context.Background())
	assert.True(t, model.IsPersistenceFailure(err))
}
