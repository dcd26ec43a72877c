package store

import (
	"context"
	"fmt"

	"github.com/roach88/mnemo/internal/model"
)

const ruleColumns = `id, name, pattern, priority, target, entry_type, active, description, position`

// ListRules returns every rule in insertion order. The router applies
// priority ordering itself.
func (c conn) ListRules(ctx context.Context) ([]model.Rule, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []model.Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// RuleSet returns a fresh immutable snapshot of the routing table.
func (c conn) RuleSet(ctx context.Context) (model.RuleSet, error) {
	rules, err := c.ListRules(ctx)
	if err != nil {
		return model.RuleSet{}, err
	}
	return model.NewRuleSet(rules), nil
}

// AddRule appends a rule after every existing one and returns it with its
// assigned id and position. Callers validate the rule first.
func (c conn) AddRule(ctx context.Context, r model.Rule) (model.Rule, error) {
	var next int64
	if err := c.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM rules`).Scan(&next); err != nil {
		return model.Rule{}, fmt.Errorf("add rule: next position: %w", err)
	}
	r.Position = next

	res, err := c.q.ExecContext(ctx, `
		INSERT INTO rules (name, pattern, priority, target, entry_type, active, description, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Name,
		r.Pattern,
		r.Priority,
		string(r.Target),
		string(r.EntryType),
		boolInt(r.Active),
		r.Description,
		r.Position,
	)
	if err != nil {
		return model.Rule{}, fmt.Errorf("add rule %q: %w", r.Name, err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return model.Rule{}, fmt.Errorf("add rule: last insert id: %w", err)
	}
	return r, nil
}

// SetRuleActive toggles a rule by name. Returns NOT_FOUND for unknown names.
func (c conn) SetRuleActive(ctx context.Context, name string, active bool) error {
	res, err := c.q.ExecContext(ctx, `UPDATE rules SET active = ? WHERE name = ?`, boolInt(active), name)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set rule active: rows affected: %w", err)
	}
	if n == 0 {
		return &model.Error{
			Code:    model.ErrCodeNotFound,
			Message: fmt.Sprintf("rule %q not found", name),
			Details: map[string]string{"kind": "rule"},
		}
	}
	return nil
}

// ReplaceRules swaps the whole routing table. Use inside a Tx so readers
// never observe a partial table.
func (tx *Tx) ReplaceRules(ctx context.Context, rules []model.Rule) ([]model.Rule, error) {
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return nil, fmt.Errorf("replace rules: clear: %w", err)
	}
	out := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		added, err := tx.AddRule(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("replace rules: %w", err)
		}
		out = append(out, added)
	}
	return out, nil
}

// SeedRules installs rules the first time the store is seeded.
// Reports whether anything was written.
//
// Once a store has been seeded it is never seeded again, even when an
// import later leaves the routing table empty.
func (s *Store) SeedRules(ctx context.Context, rules []model.Rule) (bool, error) {
	seeded := false
	err := s.InTx(ctx, func(tx *Tx) error {
		var flags int
		if err := tx.q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM meta WHERE key = ?`, metaRulesSeeded).Scan(&flags); err != nil {
			return fmt.Errorf("seed rules: read flag: %w", err)
		}
		if flags > 0 {
			return nil
		}
		var count int
		if err := tx.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count); err != nil {
			return fmt.Errorf("seed rules: count: %w", err)
		}
		if count == 0 {
			for _, r := range rules {
				if _, err := tx.AddRule(ctx, r); err != nil {
					return fmt.Errorf("seed rules: %w", err)
				}
			}
			seeded = true
		}
		if _, err := tx.q.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, '1')`, metaRulesSeeded); err != nil {
			return fmt.Errorf("seed rules: set flag: %w", err)
		}
		return nil
	})
	return seeded, err
}

// metaRulesSeeded is the meta key set once the routing table was seeded.
const metaRulesSeeded = "rules_seeded"

func scanRule(row scanner) (model.Rule, error) {
	var (
		r                 model.Rule
		target, entryType string
		active            int
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Pattern, &r.Priority, &target, &entryType, &active, &r.Description, &r.Position); err != nil {
		return model.Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.Target = model.Category(target)
	r.EntryType = model.EntryType(entryType)
	r.Active = active != 0
	return r, nil
}
