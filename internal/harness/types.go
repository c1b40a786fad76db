package harness

import (
	"github.com/roach88/calcsync/internal/engine"
	"github.com/roach88/calcsync/internal/ir"
)

// Trace event types.
const (
	EventStep = "step"
	EventCall = "call"
)

// TraceEvent is one step of the scenario or one remote call it caused.
type TraceEvent struct {
	Type    string `json:"type"` // "step" or "call"
	Action  string `json:"action"`
	Args    any    `json:"args,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Result  any    `json:"result,omitempty"`
	Seq     int64  `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains steps and remote calls in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the calculation after the last step.
	Final engine.Snapshot `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace adds a scenario step to the trace.
func (r *Result) AddStepTrace(action string, args map[string]any, outcome string, values map[string]string, seq int64) {
	ev := TraceEvent{
		Type:    EventStep,
		Action:  action,
		Outcome: outcome,
		Seq:     seq,
	}
	if args != nil {
		ev.Args = args
	}
	if values != nil {
		ev.Result = values
	}
	r.Trace = append(r.Trace, ev)
}

// AddCallTrace adds a remote call to the trace.
func (r *Result) AddCallTrace(op string, args map[string]any, callErr string, seq int64) {
	outcome := "ok"
	if callErr != "" {
		outcome = "error: " + callErr
	}
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventCall,
		Action:  op,
		Args:    args,
		Outcome: outcome,
		Seq:     seq,
	})
}

// Calls returns the remote call events of the trace.
func (r *Result) Calls() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventCall {
			out = append(out, ev)
		}
	}
	return out
}

// TraceSnapshot captures the trace of a scenario for golden comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to the value tree accepted by
// ir.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type":   event.Type,
			"action": event.Action,
			"seq":    event.Seq,
		}
		if event.Args != nil {
			eventMap["args"] = event.Args
		}
		if event.Outcome != "" {
			eventMap["outcome"] = event.Outcome
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		traceList[i] = eventMap
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// CanonicalTrace encodes the trace as canonical JSON, the golden file
// format.
func (r *Result) CanonicalTrace(scenarioName string) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: r.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
