package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/mnemo/internal/engine"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/model"
)

// actionFunc runs one engine operation with decoded scenario args.
type actionFunc func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error)

// actions maps scenario action names to engine operations.
var actions = map[string]actionFunc{
	"ingest": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var req ingest.Request
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return h.engine.Ingest(ctx, req)
	},
	"ingest_batch": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var req ingest.BatchRequest
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		return h.engine.IngestBatch(ctx, req)
	},
	"close_day": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			Day     string `json:"day"`
			Summary string `json:"summary"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.CloseDay(ctx, a.Day, a.Summary)
	},
	"snapshot_day": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a dayArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.SnapshotDay(ctx, a.Day)
	},
	"snapshot_active": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		if err := decodeArgs(args, &struct{}{}); err != nil {
			return nil, err
		}
		return h.engine.SnapshotActive(ctx)
	},
	"compile_day": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a dayArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.CompileDay(ctx, a.Day)
	},
	"compile_week": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			WeekStart string `json:"week_start"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.CompileWeek(ctx, a.WeekStart)
	},
	"list_memory": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			Period string `json:"period"`
			Limit  int    `json:"limit"`
			Offset int    `json:"offset"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.ListMemory(ctx, a.Period, a.Limit, a.Offset)
	},
	"north_star": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			AsOf string `json:"as_of"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.NorthStar(ctx, a.AsOf)
	},
	"north_star_day": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a dayArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.NorthStarDay(ctx, a.Day)
	},
	"list_behavior_events": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			Since  string `json:"since"`
			Kind   string `json:"kind"`
			Limit  int    `json:"limit"`
			Offset int    `json:"offset"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.ListBehaviorEvents(ctx, engine.EventQuery{Since: a.Since, Kind: a.Kind, Limit: a.Limit, Offset: a.Offset})
	},
	"transition_task": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a statusArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.TransitionTask(ctx, a.ID, a.Status)
	},
	"transition_project": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a statusArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.TransitionProject(ctx, a.ID, a.Status)
	},
	"add_rule": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			Name        string          `json:"name"`
			Pattern     string          `json:"pattern"`
			Priority    int             `json:"priority"`
			Target      model.Category  `json:"target"`
			EntryType   model.EntryType `json:"entry_type"`
			Active      *bool           `json:"active"`
			Description string          `json:"description"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		active := a.Active == nil || *a.Active
		return h.engine.AddRule(ctx, model.Rule{
			Name:        a.Name,
			Pattern:     a.Pattern,
			Priority:    a.Priority,
			Target:      a.Target,
			EntryType:   a.EntryType,
			Active:      active,
			Description: a.Description,
		})
	},
	"set_rule_active": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			Name   string `json:"name"`
			Active bool   `json:"active"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if err := h.engine.SetRuleActive(ctx, a.Name, a.Active); err != nil {
			return nil, err
		}
		return map[string]interface{}{"name": a.Name, "active": a.Active}, nil
	},
	"verify_day": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a dayArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.VerifyDay(ctx, a.Day)
	},
	"replay_day": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a dayArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.engine.ReplayDay(ctx, a.Day)
	},
	"health": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		if err := decodeArgs(args, &struct{}{}); err != nil {
			return nil, err
		}
		return h.engine.Health(ctx)
	},
	"advance_clock": func(ctx context.Context, h *Harness, args map[string]interface{}) (interface{}, error) {
		var a struct {
			Hours   int    `json:"hours"`
			Minutes int    `json:"minutes"`
			To      string `json:"to"`
		}
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		if a.To != "" {
			t, err := time.Parse(time.RFC3339, a.To)
			if err != nil {
				return nil, model.NewValidationError("to", "to must be an RFC 3339 time")
			}
			h.clock.Set(t)
		}
		h.clock.Advance(time.Duration(a.Hours)*time.Hour + time.Duration(a.Minutes)*time.Minute)
		return map[string]interface{}{"now": h.clock.Now().Format(time.RFC3339)}, nil
	},
}

type dayArgs struct {
	Day string `json:"day"`
}

type statusArgs struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// knownAction reports whether name is a scenario action.
func knownAction(name string) bool {
	_, ok := actions[name]
	return ok
}

// ActionNames returns the supported action names, sorted.
func ActionNames() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeArgs converts YAML-parsed args into v through JSON. Unknown keys are
// rejected so a typo in a scenario fails loudly.
func decodeArgs(args map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return model.NewValidationError("args", fmt.Sprintf("args are not JSON-encodable: %v", err))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("args", fmt.Sprintf("invalid args: %v", err))
	}
	return nil
}

// toJSONValue converts an engine result to its JSON form (maps, slices,
// float64, string, bool, nil) so it can be matched against expect clauses.
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
