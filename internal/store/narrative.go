package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mnemo/internal/model"
)

const narrativeColumns = `id, date, period, summary, key_events, emotional_state, decisions, lessons, tags, created_at, updated_at`

// UpsertNarrative writes the narrative for (Date, Period), replacing any
// previous compilation but keeping its id and created_at.
func (c conn) UpsertNarrative(ctx context.Context, n model.NarrativeMemory) (model.NarrativeMemory, error) {
	keyEvents, err := marshalList(n.KeyEvents)
	if err != nil {
		return n, fmt.Errorf("upsert narrative: %w", err)
	}
	decisions, err := marshalList(n.Decisions)
	if err != nil {
		return n, fmt.Errorf("upsert narrative: %w", err)
	}
	lessons, err := marshalList(n.Lessons)
	if err != nil {
		return n, fmt.Errorf("upsert narrative: %w", err)
	}
	tags, err := marshalList(n.Tags)
	if err != nil {
		return n, fmt.Errorf("upsert narrative: %w", err)
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO narrative_memories
		(date, period, summary, key_events, emotional_state, decisions, lessons, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, period) DO UPDATE SET
			summary         = excluded.summary,
			key_events      = excluded.key_events,
			emotional_state = excluded.emotional_state,
			decisions       = excluded.decisions,
			lessons         = excluded.lessons,
			tags            = excluded.tags,
			updated_at      = excluded.updated_at
	`,
		string(n.Date),
		string(n.Period),
		n.Summary,
		keyEvents,
		n.EmotionalState,
		decisions,
		lessons,
		tags,
		formatTime(n.CreatedAt),
		formatTime(n.UpdatedAt),
	)
	if err != nil {
		return n, fmt.Errorf("upsert narrative: %w", err)
	}

	stored, found, err := c.Narrative(ctx, n.Date, n.Period)
	if err != nil {
		return n, err
	}
	if !found {
		return n, fmt.Errorf("upsert narrative: row for %s/%s vanished", n.Date, n.Period)
	}
	return stored, nil
}

// Narrative returns the compiled narrative for (date, period).
func (c conn) Narrative(ctx context.Context, date model.Day, period model.Period) (model.NarrativeMemory, bool, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT `+narrativeColumns+`
		FROM narrative_memories
		WHERE date = ? AND period = ?
	`, string(date), string(period))
	n, err := scanNarrative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NarrativeMemory{}, false, nil
	}
	if err != nil {
		return n, false, err
	}
	return n, true, nil
}

// GetNarrative returns the narrative with id, or NOT_FOUND.
func (c conn) GetNarrative(ctx context.Context, id int64) (model.NarrativeMemory, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT `+narrativeColumns+`
		FROM narrative_memories
		WHERE id = ?
	`, id)
	n, err := scanNarrative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NarrativeMemory{}, model.NewNotFoundError("narrative", id)
	}
	return n, err
}

// ListNarratives returns a page of narratives, newest date first, and the
// total count matching period. An empty period matches both.
func (c conn) ListNarratives(ctx context.Context, period model.Period, limit, offset int) ([]model.NarrativeMemory, int, error) {
	where := ""
	args := []any{}
	if period != "" {
		where = "WHERE period = ?"
		args = append(args, string(period))
	}

	var total int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM narrative_memories `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count narratives: %w", err)
	}

	rows, err := c.q.QueryContext(ctx, `
		SELECT `+narrativeColumns+`
		FROM narrative_memories `+where+`
		ORDER BY date DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query narratives: %w", err)
	}
	defer rows.Close()

	items := []model.NarrativeMemory{}
	for rows.Next() {
		n, err := scanNarrative(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate narratives: %w", err)
	}
	return items, total, nil
}

func scanNarrative(row scanner) (model.NarrativeMemory, error) {
	var (
		n                                   model.NarrativeMemory
		date, period                        string
		keyEvents, decisions, lessons, tags string
		createdAt, updatedAt                string
	)
	err := row.Scan(&n.ID, &date, &period, &n.Summary, &keyEvents, &n.EmotionalState, &decisions, &lessons, &tags, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return n, err
	}
	if err != nil {
		return n, fmt.Errorf("scan narrative: %w", err)
	}
	n.Date = model.Day(date)
	n.Period = model.Period(period)
	if n.KeyEvents, err = unmarshalList(keyEvents); err != nil {
		return n, err
	}
	if n.Decisions, err = unmarshalList(decisions); err != nil {
		return n, err
	}
	if n.Lessons, err = unmarshalList(lessons); err != nil {
		return n, err
	}
	if n.Tags, err = unmarshalList(tags); err != nil {
		return n, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return n, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return n, err
	}
	return n, nil
}
