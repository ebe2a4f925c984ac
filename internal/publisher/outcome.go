package publisher

import "github.com/starford/mdpub/internal/models"

// State is the terminal state of publishing one record.
type State int

const (
	StateError State = iota
	StateCreated
	StateUpdated
	StateUnchanged
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateUpdated:
		return "updated"
	case StateUnchanged:
		return "unchanged"
	default:
		return "error"
	}
}

// Outcome is the result of publishing one record. Messages are informational,
// Warnings are failed links of an otherwise successful publish and Errors
// explain a failed one. Err carries the apperr kind of a failure.
type Outcome struct {
	State    State
	Item     *models.Item
	Messages []string
	Warnings []string
	Errors   []string
	Err      error
}

// Failed reports whether the record was not published.
func (o Outcome) Failed() bool { return o.State == StateError }

func failed(kind error, messages []string, errs ...string) Outcome {
	return Outcome{State: StateError, Messages: messages, Errors: errs, Err: kind}
}

// Summary is the flat form of an Outcome used in result files and tool output.
type Summary struct {
	State    string   `json:"state"`
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title,omitempty"`
	Messages []string `json:"messages,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Summary flattens the outcome.
func (o Outcome) Summary() Summary {
	s := Summary{
		State:    o.State.String(),
		Messages: o.Messages,
		Warnings: o.Warnings,
		Errors:   o.Errors,
	}
	if o.Item != nil {
		s.ID = o.Item.ID
		s.Title = o.Item.Title
	}
	return s
}

// Summaries flattens a list of outcomes.
func Summaries(outcomes []Outcome) []Summary {
	out := make([]Summary, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Summary())
	}
	return out
}
