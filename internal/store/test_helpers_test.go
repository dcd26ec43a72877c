package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/mnemo/internal/model"
)

var testTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry builds an entry with minimal required fields.
func createTestEntry(raw string, cat model.Category, typ model.EntryType, day model.Day) model.Entry {
	return model.Entry{
		Raw:       raw,
		EntryType: typ,
		Category:  cat,
		Day:       day,
		Source:    model.SourceCLI,
		RequestID: "req-" + raw,
		CreatedAt: testTime,
	}
}

// appendEntry appends e and returns it with its id.
func appendEntry(t *testing.T, s *Store, e model.Entry) model.Entry {
	t.Helper()
	id, err := s.AppendEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("AppendEntry() failed: %v", err)
	}
	e.ID = id
	return e
}
