package state

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/router"
	"github.com/roach88/mnemo/internal/store"
)

var now = time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.Store
	ingest *ingest.Orchestrator
	state  *Reconstructor
	clock  *clock.Fixed
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.SeedRules(context.Background(), router.DefaultRules())
	require.NoError(t, err)

	c := clock.NewFixed(now)
	return fixture{
		store:  s,
		ingest: ingest.New(s, ingest.WithClock(c), ingest.WithIDGenerator(ingest.NewSequenceGenerator("req"))),
		state:  New(s, c, nil),
		clock:  c,
	}
}

func (f fixture) capture(t *testing.T, day model.Day, raws ...string) {
	t.Helper()
	for _, raw := range raws {
		_, err := f.ingest.Ingest(context.Background(), ingest.Request{Raw: raw, Day: string(day)})
		require.NoError(t, err)
	}
}

func TestSnapshotDay(t *testing.T) {
	f := newFixture(t)
	f.capture(t, "2024-03-04", "TODO: a", "TODO: b", "gasté 5", "random", "METRIC: w=1")
	f.capture(t, "2024-03-05", "other day")

	snap, err := f.state.SnapshotDay(context.Background(), "2024-03-04")
	require.NoError(t, err)
	assert.False(t, snap.Closed)
	assert.Equal(t, model.DayCounts{Entries: 5, Tasks: 2, Transactions: 1, Facts: 1, Metrics: 1}, snap.Totals)
	assert.Len(t, snap.Entries, 5)
	assert.Len(t, snap.Tasks, 2)
	assert.Empty(t, snap.Projects)
}

func TestSnapshotDay_EmptyDay(t *testing.T) {
	f := newFixture(t)
	snap, err := f.state.SnapshotDay(context.Background(), "2030-01-01")
	require.NoError(t, err)
	assert.Equal(t, model.DayCounts{}, snap.Totals)
	assert.NotNil(t, snap.Entries)
}

func TestSnapshotActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture(t, "2024-03-03", "TODO: old", "PROJECT: mnemo")
	f.capture(t, "2024-03-04", "TODO: new")

	_, err := f.state.CloseDay(ctx, "2024-03-03", "")
	require.NoError(t, err)

	snap, err := f.state.SnapshotActive(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.OpenTasks, 2, "open tasks span closed days")
	assert.Len(t, snap.ActiveProjects, 1)
	assert.Equal(t, []store.OpenDay{{Day: "2024-03-04", Entries: 1}}, snap.OpenDays)
}

func TestCloseDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture(t, "2024-03-04", "TODO: a", "gasté 5", "random")

	tasks, err := f.store.TasksForDay(ctx, "2024-03-04")
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateTaskStatus(ctx, tasks[0].ID, model.TaskDone, now))

	res, err := f.state.CloseDay(ctx, "2024-03-04", "good day")
	require.NoError(t, err)
	assert.False(t, res.AlreadyClosed)
	assert.True(t, res.Log.Closed)
	assert.Equal(t, 3, res.Log.EntryCount)
	assert.Equal(t, 1, res.Log.TaskDoneCount)
	assert.Equal(t, "good day", res.Log.Summary)
	assert.Equal(t,
		"Day 2024-03-04 closed. entries=3 tasks=1 done=1 transactions=1 facts=1. Summary: good day",
		res.Snapshot.SummaryText)
	assert.NotZero(t, res.Snapshot.ID)
}

func TestCloseDay_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture(t, "2024-03-04", "TODO: a")

	first, err := f.state.CloseDay(ctx, "2024-03-04", "")
	require.NoError(t, err)
	assert.Contains(t, first.Snapshot.SummaryText, "Summary: n/a")

	// Later captures do not change a frozen day.
	f.capture(t, "2024-03-04", "TODO: late")
	f.clock.Advance(time.Hour)

	second, err := f.state.CloseDay(ctx, "2024-03-04", "different summary")
	require.NoError(t, err)
	assert.True(t, second.AlreadyClosed)
	assert.Equal(t, first.Log, second.Log)
	assert.Equal(t, first.Snapshot, second.Snapshot)
}

func TestCloseDay_EmptyDay(t *testing.T) {
	f := newFixture(t)
	res, err := f.state.CloseDay(context.Background(), "2024-03-09", "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Log.EntryCount)
	assert.True(t, res.Log.Closed)
}

func TestCloseDay_ConcurrentCallsWriteOneSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.capture(t, "2024-03-04", "TODO: a")

	const callers = 10
	results := make([]CloseResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.state.CloseDay(ctx, "2024-03-04", "")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Snapshot.ID, results[i].Snapshot.ID)
		if !results[i].AlreadyClosed {
			fresh++
		}
	}
	assert.GreaterOrEqual(t, fresh, 1)

	snap, found, err := f.store.MemorySnapshotForDay(ctx, "2024-03-04", model.SnapshotKindDailyClose)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, results[0].Snapshot.ID, snap.ID)
}

func TestSnapshotText(t *testing.T) {
	got := SnapshotText("2024-03-04", model.DayCounts{Entries: 2, Tasks: 1, Transactions: 1}, "")
	assert.Equal(t, "Day 2024-03-04 closed. entries=2 tasks=1 done=0 transactions=1 facts=0. Summary: n/a", got)
}
