package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mnemo/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestRules_SeedListAddToggle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seed := []model.Rule{
		{Name: "a", Pattern: "^a", Priority: 10, Target: model.CategoryTasks, EntryType: model.EntryTask, Active: true},
		{Name: "b", Pattern: "^b", Priority: 20, Target: model.CategoryFacts, EntryType: model.EntryFact, Active: true},
	}
	seeded, err := s.SeedRules(ctx, seed)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = s.SeedRules(ctx, seed)
	require.NoError(t, err)
	assert.False(t, seeded, "non-empty table is not reseeded")

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ReplaceRules(ctx, nil)
		return err
	}))
	seeded, err = s.SeedRules(ctx, seed)
	require.NoError(t, err)
	assert.False(t, seeded, "an emptied table is not reseeded")
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ReplaceRules(ctx, seed)
		return err
	}))

	added, err := s.AddRule(ctx, model.Rule{Name: "c", Pattern: "^c", Priority: 5, Target: model.CategoryMetrics, EntryType: model.EntryMetric, Active: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), added.Position)

	require.NoError(t, s.SetRuleActive(ctx, "a", false))
	err = s.SetRuleActive(ctx, "zzz", false)
	assert.True(t, model.IsNotFound(err))

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{rules[0].Name, rules[1].Name, rules[2].Name})
	assert.False(t, rules[0].Active)

	_, err = s.AddRule(ctx, model.Rule{Name: "a", Pattern: "x", Target: model.CategoryTasks, EntryType: model.EntryTask})
	assert.Error(t, err, "rule names are unique")
}

func TestRules_Replace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SeedRules(ctx, []model.Rule{{Name: "old", Pattern: "x", Target: model.CategoryTasks, EntryType: model.EntryTask, Active: true}})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.ReplaceRules(ctx, []model.Rule{{Name: "new", Pattern: "y", Target: model.CategoryFacts, EntryType: model.EntryFact, Active: true}})
		return err
	})
	require.NoError(t, err)

	rs, err := s.RuleSet(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "new", rs.Rules()[0].Name)
}

func TestLedger_AppendAndRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := createTestEntry("TODO: call the bank", model.CategoryTasks, model.EntryTask, "2024-03-04")
	e.RuleMatched = ptr("task_prefix")
	e = appendEntry(t, s, e)
	appendEntry(t, s, createTestEntry("random", model.CategoryFacts, model.EntryNote, "2024-03-05"))

	entries, err := s.EntriesForDay(ctx, "2024-03-04")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e, entries[0])

	_, err = s.Entry(ctx, 999)
	assert.True(t, model.IsNotFound(err))
}

func TestProjections_InsertAndRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	day := model.Day("2024-03-04")

	task := appendEntry(t, s, createTestEntry("TODO: a", model.CategoryTasks, model.EntryTask, day))
	tx := appendEntry(t, s, createTestEntry("gasté 5", model.CategoryTransactions, model.EntryTransaction, day))
	fact := appendEntry(t, s, createTestEntry("note: b", model.CategoryFacts, model.EntryFact, day))
	metric := appendEntry(t, s, createTestEntry("METRIC: w=1", model.CategoryMetrics, model.EntryMetric, day))
	project := appendEntry(t, s, createTestEntry("PROJECT: p", model.CategoryProjects, model.EntryProject, day))

	rows := []model.ProjectionRow{
		{Category: model.CategoryTasks, Task: &model.Task{EntryID: &task.ID, Title: "a", Status: model.TaskPending, Origin: model.OriginEntry, Day: day, CreatedAt: testTime, UpdatedAt: testTime}},
		{Category: model.CategoryTransactions, Transaction: &model.Transaction{EntryID: &tx.ID, AmountCents: 500, Currency: "USD", Kind: model.TxExpense, Description: "gasté 5", Day: day, CreatedAt: testTime}},
		{Category: model.CategoryFacts, Fact: &model.Fact{EntryID: &fact.ID, Content: "note: b", Kind: model.EntryFact, Day: day, CreatedAt: testTime}},
		{Category: model.CategoryMetrics, Metric: &model.Metric{EntryID: &metric.ID, Name: "w", Value: 1, Day: day, CreatedAt: testTime}},
		{Category: model.CategoryProjects, Project: &model.Project{EntryID: &project.ID, Name: "p", Status: model.ProjectActive, Day: day, CreatedAt: testTime, UpdatedAt: testTime}},
	}
	for i, row := range rows {
		stored, err := s.InsertProjection(ctx, row)
		require.NoError(t, err)
		assert.NotZero(t, stored.RowID())
		rows[i] = stored
	}

	got, err := s.ProjectionsForDay(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	counts, err := s.DayCounts(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, model.DayCounts{Entries: 5, Tasks: 1, Transactions: 1, Facts: 1, Metrics: 1, Projects: 1}, counts)

	open, err := s.OpenTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	active, err := s.ActiveProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestProjections_OneRowPerEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := appendEntry(t, s, createTestEntry("note", model.CategoryFacts, model.EntryNote, "2024-03-04"))
	row := model.ProjectionRow{Category: model.CategoryFacts, Fact: &model.Fact{EntryID: &e.ID, Content: "note", Kind: model.EntryNote, Day: "2024-03-04", CreatedAt: testTime}}

	_, err := s.InsertProjection(ctx, row)
	require.NoError(t, err)
	_, err = s.InsertProjection(ctx, row)
	assert.Error(t, err)
}

func TestProjections_StatusUpdates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stored, err := s.InsertTask(ctx, model.Task{Title: "Reset Day Protocol", Status: model.TaskPending, Origin: model.OriginBehavior, Day: "2024-03-04", CreatedAt: testTime, UpdatedAt: testTime})
	require.NoError(t, err)
	assert.Nil(t, stored.EntryID)

	later := testTime.Add(2*time.Hour)
	require.NoError(t, s.UpdateTaskStatus(ctx, stored.ID, model.TaskDone, later))

	got, err := s.GetTask(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskDone, got.Status)
	assert.Equal(t, later, got.UpdatedAt)

	assert.True(t, model.IsNotFound(s.UpdateTaskStatus(ctx, 999, model.TaskDone, later)))
	_, err = s.GetProject(ctx, 999)
	assert.True(t, model.IsNotFound(err))
}

func TestDeleteEntryProjections_KeepsLedgerAndReactorTasks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	day := model.Day("2024-03-04")

	e := appendEntry(t, s, createTestEntry("TODO: a", model.CategoryTasks, model.EntryTask, day))
	_, err := s.InsertTask(ctx, model.Task{EntryID: &e.ID, Title: "a", Status: model.TaskPending, Origin: model.OriginEntry, Day: day, CreatedAt: testTime, UpdatedAt: testTime})
	require.NoError(t, err)
	_, err = s.InsertTask(ctx, model.Task{Title: "Reset Day Protocol", Status: model.TaskPending, Origin: model.OriginBehavior, Day: day, CreatedAt: testTime, UpdatedAt: testTime})
	require.NoError(t, err)

	var removed int64
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		removed, err = tx.DeleteEntryProjections(ctx, day)
		return err
	}))
	assert.Equal(t, int64(1), removed)

	tasks, err := s.TasksForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.OriginBehavior, tasks[0].Origin)

	entries, err := s.EntriesForDay(ctx, day)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDailyLog_CloseFreezesDay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	day := model.Day("2024-03-04")

	log, found, err := s.DailyLog(ctx, day)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, log.Closed)

	closedAt := testTime
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertClosedDailyLog(ctx, model.DailyLog{Day: day, EntryCount: 3, Summary: "ok", ClosedAt: &closedAt}); err != nil {
			return err
		}
		_, err := tx.InsertMemorySnapshot(ctx, model.MemorySnapshot{Day: day, Kind: model.SnapshotKindDailyClose, SummaryText: "Day closed", Counts: model.DayCounts{Entries: 3}, CreatedAt: testTime})
		return err
	}))

	log, found, err = s.DailyLog(ctx, day)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, log.Closed)
	assert.Equal(t, 3, log.EntryCount)
	require.NotNil(t, log.ClosedAt)
	assert.Equal(t, closedAt, *log.ClosedAt)

	// Frozen: a second close is rejected by the store.
	err = s.InTx(ctx, func(tx *Tx) error {
		return tx.UpsertClosedDailyLog(ctx, model.DailyLog{Day: day, EntryCount: 9, ClosedAt: &closedAt})
	})
	assert.Error(t, err)

	// One snapshot per close.
	err = s.InTx(ctx, func(tx *Tx) error {
		_, err := tx.InsertMemorySnapshot(ctx, model.MemorySnapshot{Day: day, Kind: model.SnapshotKindDailyClose, SummaryText: "again", CreatedAt: testTime})
		return err
	})
	assert.Error(t, err)

	snap, found, err := s.MemorySnapshotForDay(ctx, day, model.SnapshotKindDailyClose)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Day closed", snap.SummaryText)
	assert.Equal(t, model.DayCounts{Entries: 3}, snap.Counts)
}

func TestOpenDays(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	appendEntry(t, s, createTestEntry("a", model.CategoryFacts, model.EntryNote, "2024-03-03"))
	appendEntry(t, s, createTestEntry("b", model.CategoryFacts, model.EntryNote, "2024-03-04"))
	appendEntry(t, s, createTestEntry("c", model.CategoryFacts, model.EntryNote, "2024-03-04"))
	appendEntry(t, s, createTestEntry("d", model.CategoryFacts, model.EntryNote, "2024-03-05"))

	closedAt := testTime
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		return tx.UpsertClosedDailyLog(ctx, model.DailyLog{Day: "2024-03-05", EntryCount: 1, ClosedAt: &closedAt})
	}))

	days, err := s.OpenDays(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, []OpenDay{{Day: "2024-03-04", Entries: 2}, {Day: "2024-03-03", Entries: 1}}, days)
}

func TestNarrative_UpsertKeepsIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertNarrative(ctx, model.NarrativeMemory{
		Date: "2024-03-04", Period: model.PeriodDaily, Summary: "v1",
		KeyEvents: []string{"a"}, EmotionalState: "quiet",
		CreatedAt: testTime, UpdatedAt: testTime,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{}, first.Decisions, "nil lists round-trip as empty")

	later := testTime.Add(2*time.Hour)
	second, err := s.UpsertNarrative(ctx, model.NarrativeMemory{
		Date: "2024-03-04", Period: model.PeriodDaily, Summary: "v2",
		EmotionalState: "productive", CreatedAt: later, UpdatedAt: later,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, testTime, second.CreatedAt)
	assert.Equal(t, later, second.UpdatedAt)
	assert.Equal(t, "v2", second.Summary)

	_, err = s.UpsertNarrative(ctx, model.NarrativeMemory{Date: "2024-03-04", Period: model.PeriodWeekly, Summary: "w", CreatedAt: testTime, UpdatedAt: testTime})
	require.NoError(t, err)

	items, total, err := s.ListNarratives(ctx, model.PeriodDaily, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)

	_, total, err = s.ListNarratives(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestClarityWindow_Upsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, found, err := s.ClarityWindow(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.False(t, found)

	w := model.ClarityWindowSnapshot{WindowEnd: "2024-03-10", Score: 3.0 / 7, CompleteDays: 3, TotalDays: 7, ComputedAt: testTime}
	require.NoError(t, s.UpsertClarityWindow(ctx, w))
	w.Score, w.CompleteDays = 1, 7
	require.NoError(t, s.UpsertClarityWindow(ctx, w))

	got, found, err := s.ClarityWindow(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, w, got)
}

func TestBehaviorEvents_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := model.BehaviorEvent{Kind: model.KindClarityWarning, Day: "2024-03-10", Payload: `{"score":0}`, CreatedAt: testTime}
	id, inserted, err := s.InsertBehaviorEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	again, inserted, err := s.InsertBehaviorEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id, again)

	has, err := s.HasBehaviorEvent(ctx, model.KindClarityWarning, "2024-03-10")
	require.NoError(t, err)
	assert.True(t, has)

	_, _, err = s.InsertBehaviorEvent(ctx, model.BehaviorEvent{Kind: model.KindPerfectWeek, Day: "2024-03-11", Payload: "{}", CreatedAt: testTime})
	require.NoError(t, err)

	events, total, err := s.ListBehaviorEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, events, 2)
	assert.Equal(t, model.KindPerfectWeek, events[0].Kind, "newest first")

	events, total, err = s.ListBehaviorEvents(ctx, EventFilter{Kind: model.KindClarityWarning})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, events, 1)

	events, _, err = s.ListBehaviorEvents(ctx, EventFilter{Since: "2024-03-11"})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = s.db.Exec("UPDATE behavior_events SET payload = '{}' WHERE id = ?", id)
	assert.Error(t, err, "behavior events are append-only")
}
