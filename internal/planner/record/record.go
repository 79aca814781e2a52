package record

// Event kinds.
const (
	EventSelect   = "select"
	EventReject   = "reject"
	EventCommand  = "command"
	EventAbort    = "abort"
	EventComplete = "complete"
	EventClean    = "clean"
)

// Outcomes of an attempted order.
const (
	OutcomeCompleted = "completed"
	OutcomeExpired   = "expired"
	OutcomeStuck     = "stuck"
)

// Event is one planner decision, written as a trace line.
type Event struct {
	RunID   string `json:"run_id,omitempty"`
	Tick    int    `json:"tick"`
	Agent   int    `json:"agent"`
	Kind    string `json:"kind"`
	OrderID int    `json:"order_id,omitempty"`
	Command string `json:"command,omitempty"`
	State   string `json:"state,omitempty"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Attempt is the result of pursuing one order, from selection to the end of
// its plan.
type Attempt struct {
	RunID       string `json:"run_id,omitempty"`
	OrderID     int    `json:"order_id"`
	Agent       int    `json:"agent"`
	StartedTick int    `json:"started_tick"`
	EndedTick   int    `json:"ended_tick"`
	Estimated   int    `json:"estimated_ticks"`
	Outcome     string `json:"outcome"`
	Code        string `json:"code,omitempty"`
	Reward      int    `json:"reward"`
	Cost        int    `json:"cost"`
}

func (a Attempt) Ticks() int { return a.EndedTick - a.StartedTick }

type Recorder interface {
	RecordEvent(Event)
	RecordAttempt(Attempt)
}

// Multi fans every record out to each non-nil recorder in order.
type Multi []Recorder

func (m Multi) RecordEvent(e Event) {
	for _, r := range m {
		if r != nil {
			r.RecordEvent(e)
		}
	}
}

func (m Multi) RecordAttempt(a Attempt) {
	for _, r := range m {
		if r != nil {
			r.RecordAttempt(a)
		}
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) RecordEvent(Event)     {}
func (Discard) RecordAttempt(Attempt) {}

// Memory keeps everything in slices; tests use it to inspect decisions.
type Memory struct {
	Events   []Event
	Attempts []Attempt
}

func (m *Memory) RecordEvent(e Event)     { m.Events = append(m.Events, e) }
func (m *Memory) RecordAttempt(a Attempt) { m.Attempts = append(m.Attempts, a) }

// EventsOf returns the events of one kind.
func (m *Memory) EventsOf(kind string) []Event {
	var out []Event
	for _, e := range m.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
