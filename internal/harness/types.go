package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// CaseOK is the output case of an action that returned no error. Failed
// actions complete with their error code (VALIDATION_ERROR, NOT_FOUND, ...).
const CaseOK = "ok"

// TraceEvent is one invocation or completion in a scenario trace.
type TraceEvent struct {
	Type       string                 `json:"type"` // "invocation" or "completion"
	Action     string                 `json:"action,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	OutputCase string                 `json:"output_case,omitempty"`
	Result     interface{}            `json:"result,omitempty"` // JSON form of the engine's return value
	Seq        int64                  `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order, setup first.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expect and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(action string, args map[string]interface{}, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		Args:   args,
		Seq:    seq,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(action, outputCase string, result interface{}, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       EventCompletion,
		Action:     action,
		OutputCase: outputCase,
		Result:     result,
		Seq:        seq,
	})
}
