package rulewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/mnemo/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const oneRule = `
rules:
  - name: first
    pattern: "^A"
    priority: 10
    target: tasks
    entry_type: task
`

const twoRules = `
rules:
  - name: first
    pattern: "^A"
    priority: 10
    target: tasks
    entry_type: task
  - name: second
    pattern: "^B"
    priority: 5
    target: facts
    entry_type: fact
`

type recorder struct {
	mu    sync.Mutex
	loads [][]model.Rule
	ch    chan int
}

func newRecorder() *recorder { return &recorder{ch: make(chan int, 16)} }

func (r *recorder) reload(_ context.Context, rules []model.Rule) error {
	r.mu.Lock()
	r.loads = append(r.loads, rules)
	r.mu.Unlock()
	r.ch <- len(rules)
	return nil
}

func (r *recorder) next(t *testing.T) int {
	t.Helper()
	select {
	case n := <-r.ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return 0
	}
}

func start(t *testing.T, path string, rec *recorder) (cancel func()) {
	t.Helper()
	w, err := New(path, rec.reload, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	return func() {
		cancelCtx()
		require.NoError(t, <-done)
		require.NoError(t, w.Close())
	}
}

func TestRun_AppliesInitialAndChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(oneRule), 0644))

	rec := newRecorder()
	stop := start(t, path, rec)
	defer stop()

	assert.Equal(t, 1, rec.next(t))

	require.NoError(t, os.WriteFile(path, []byte(twoRules), 0644))
	assert.Equal(t, 2, rec.next(t))
}

func TestRun_InvalidFileKeepsPreviousTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(oneRule), 0644))

	rec := newRecorder()
	stop := start(t, path, rec)
	defer stop()
	assert.Equal(t, 1, rec.next(t))

	require.NoError(t, os.WriteFile(path, []byte("rules: [{name: bad, pattern: '(', target: tasks, entry_type: task}]"), 0644))
	select {
	case n := <-rec.ch:
		t.Fatalf("unexpected reload with %d rules", n)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(twoRules), 0644))
	assert.Equal(t, 2, rec.next(t))
}

func TestRun_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(oneRule), 0644))

	rec := newRecorder()
	stop := start(t, path, rec)
	defer stop()
	assert.Equal(t, 1, rec.next(t))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	select {
	case n := <-rec.ch:
		t.Fatalf("unexpected reload with %d rules", n)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRun_InitialLoadFailureIsReturned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [{name: '', pattern: x}]"), 0644))

	w, err := New(path, newRecorder().reload)
	require.NoError(t, err)
	defer w.Close()

	err = w.Run(context.Background())
	assert.True(t, model.IsValidationError(err))
}
