package harness

// TraceEvent is one executed flow step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Subject string `json:"subject,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Count   int    `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Transcript is the human-readable session log compared against golden
	// files.
	Transcript string `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
