// Package router classifies raw text into a routing decision using an
// explicit rule snapshot.
//
// Route is a pure function of (text, rules): it performs no storage access,
// keeps no state between calls and cannot fail. Rules are evaluated by
// descending priority with ties broken by insertion order; the first rule
// whose pattern matches wins. Patterns that do not compile are skipped, never
// fatal. When nothing matches the fixed fallback (note, facts, no rule) is
// returned.
package router

import (
	"regexp"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/mnemo/internal/model"
)

// Fallback is returned when no rule matches or the rule set is empty.
func Fallback() model.RoutingDecision {
	return model.RoutingDecision{
		EntryType: model.EntryNote,
		Category:  model.CategoryFacts,
		RuleName:  nil,
	}
}

// Result is a routing decision plus the rules that were skipped because
// their pattern failed to compile.
type Result struct {
	Decision model.RoutingDecision
	Degraded []string
}

// Route returns the routing decision for raw under rules.
func Route(raw string, rules model.RuleSet) model.RoutingDecision {
	return Evaluate(raw, rules).Decision
}

// Evaluate routes raw and reports degraded rules so the caller can log them.
//
// Matching is unanchored and case-insensitive, against the NFC-normalized
// text so composed and decomposed accents route identically.
func Evaluate(raw string, rules model.RuleSet) Result {
	text := norm.NFC.String(raw)
	var degraded []string

	for _, rule := range Ordered(rules) {
		if !rule.Active {
			continue
		}
		re, err := compile(rule.Pattern)
		if err != nil {
			degraded = append(degraded, rule.Name)
			continue
		}
		if re.MatchString(text) {
			name := rule.Name
			return Result{
				Decision: model.RoutingDecision{
					EntryType: rule.EntryType,
					Category:  rule.Target,
					RuleName:  &name,
				},
				Degraded: degraded,
			}
		}
	}

	return Result{Decision: Fallback(), Degraded: degraded}
}

// Ordered returns the snapshot's rules in evaluation order: priority DESC,
// then Position ASC, then original slice order. The snapshot is not modified.
func Ordered(rules model.RuleSet) []model.Rule {
	ordered := rules.Rules()
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}

// Validate reports whether pattern compiles under the router's matching mode.
func Validate(pattern string) error {
	_, err := compile(pattern)
	return err
}

func compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + norm.NFC.String(pattern))
}
