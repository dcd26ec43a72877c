package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_StartsAtZero(t *testing.T) {
	seq := NewSequence()
	assert.Equal(t, int64(0), seq.Current())
}

func TestSequence_NextIncrementsMonotonically(t *testing.T) {
	seq := NewSequence()

	assert.Equal(t, int64(1), seq.Next())
	assert.Equal(t, int64(1), seq.Current())

	assert.Equal(t, int64(2), seq.Next())
	assert.Equal(t, int64(3), seq.Next())
	assert.Equal(t, int64(3), seq.Current())
}

func TestSequence_Reset(t *testing.T) {
	seq := NewSequence()
	seq.Next()
	seq.Next()
	assert.Equal(t, int64(2), seq.Current())

	seq.Reset()
	assert.Equal(t, int64(0), seq.Current())
	assert.Equal(t, int64(1), seq.Next())
}

func TestSequence_ThreadSafe(t *testing.T) {
	seq := NewSequence()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]int64, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]int64, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = seq.Next()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := range results {
		for _, val := range results[i] {
			require.False(t, seen[val], "duplicate value %d", val)
			seen[val] = true
		}
	}

	expectedTotal := numGoroutines * callsPerGoroutine
	assert.Len(t, seen, expectedTotal)
	for i := int64(1); i <= int64(expectedTotal); i++ {
		assert.True(t, seen[i], "missing value %d", i)
	}
}
