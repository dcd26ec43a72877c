package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/router"
	"github.com/roach88/mnemo/internal/store"
)

// Rules returns the routing table in insertion order.
func (e *Engine) Rules(ctx context.Context) ([]model.Rule, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return nil, e.fail("list rules", err)
	}
	return rules, nil
}

// AddRule validates rule and appends it to the routing table. The next
// ingest sees it.
func (e *Engine) AddRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	if err := router.ValidateRule(rule); err != nil {
		return model.Rule{}, err
	}

	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return model.Rule{}, e.fail("add rule", err)
	}
	for _, r := range rules {
		if r.Name == rule.Name {
			return model.Rule{}, model.NewValidationError("name", fmt.Sprintf("rule %q already exists", rule.Name))
		}
	}

	added, err := e.store.AddRule(ctx, rule)
	if err != nil {
		return model.Rule{}, e.fail("add rule", err)
	}
	e.log.Info("rule added", zap.String("rule", added.Name), zap.Int("priority", added.Priority))
	return added, nil
}

// SetRuleActive enables or disables a rule by name.
func (e *Engine) SetRuleActive(ctx context.Context, name string, active bool) error {
	if err := e.store.SetRuleActive(ctx, name, active); err != nil {
		return e.fail("set rule active", err)
	}
	e.log.Info("rule toggled", zap.String("rule", name), zap.Bool("active", active))
	return nil
}

// ImportRules replaces the whole routing table atomically. Every rule is
// validated first; one bad rule rejects the import.
func (e *Engine) ImportRules(ctx context.Context, rules []model.Rule) ([]model.Rule, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := router.ValidateRule(r); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, model.NewValidationError("name", fmt.Sprintf("duplicate rule %q", r.Name))
		}
		seen[r.Name] = true
	}

	var stored []model.Rule
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		stored, err = tx.ReplaceRules(ctx, rules)
		return err
	})
	if err != nil {
		return nil, e.fail("import rules", err)
	}
	e.log.Info("rules imported", zap.Int("count", len(stored)))
	return stored, nil
}

// SeedDefaultRules installs the built-in routing table the first time a store
// is opened. Later calls leave the table alone, even when it is empty.
func (e *Engine) SeedDefaultRules(ctx context.Context) (bool, error) {
	seeded, err := e.store.SeedRules(ctx, router.DefaultRules())
	if err != nil {
		return false, e.fail("seed rules", err)
	}
	return seeded, nil
}
