package effect

import "fmt"

// MutationKind tags a mutation action's variant (spec.md §4.3).
type MutationKind string

const (
	MutationEvent       MutationKind = "mutate_event"
	MutationState       MutationKind = "mutate_state"
	MutationScore       MutationKind = "score"
	MutationEmit        MutationKind = "emit"
	MutationEmitN       MutationKind = "emit_n"
	MutationNarrative   MutationKind = "narrative"
	MutationBlockDefault MutationKind = "block_default"
	MutationBlockEvent  MutationKind = "block_event"
)

// StateOp is the operator for a mutate_state action.
type StateOp string

const (
	StateOpSet      StateOp = "set"
	StateOpAdd      StateOp = "add"
	StateOpSubtract StateOp = "subtract"
)

// Mutation is one mutation-DSL action (tagged union, spec.md §9).
type Mutation struct {
	Kind MutationKind `json:"kind"`

	// MutationEvent: rewrites a field on the current event payload.
	EventField string `json:"event_field,omitempty"`
	EventValue Expr   `json:"event_value,omitempty"`

	// MutationState: writes to game/player/team via a target selector.
	StateTarget string  `json:"state_target,omitempty"` // e.g. "player:{id}.current_stamina"
	StateOp     StateOp `json:"state_op,omitempty"`
	StateValue  Expr    `json:"state_value,omitempty"`

	// MutationScore: credits points to a team.
	ScoreTeamTarget string `json:"score_team_target,omitempty"` // "offense" | "defense" | team id
	ScorePoints     Expr   `json:"score_points,omitempty"`

	// MutationEmit: raises a sub-event with a given name.
	EmitName string `json:"emit_name,omitempty"`

	// MutationEmitN: raises N sub-events, count from an expression.
	EmitNName  string `json:"emit_n_name,omitempty"`
	EmitNCount Expr   `json:"emit_n_count,omitempty"`

	// MutationNarrative: appends a string to the commentary buffer.
	NarrativeText string `json:"narrative_text,omitempty"`

	Priority int `json:"priority,omitempty"`
}

// Result is the accumulated outcome of applying a set of mutations to
// the context during hook dispatch.
type Result struct {
	EventFieldWrites map[string]float64
	StateWrites      []StateWrite
	ScoreCredits     []ScoreCredit
	Emits            []string
	Narratives       []string
	BlockDefault     bool
	BlockDefaultPriority int
	BlockEvent       bool
}

// StateWrite is one resolved mutate_state action.
type StateWrite struct {
	Target string
	Op     StateOp
	Value  float64
}

// ScoreCredit is one resolved score action.
type ScoreCredit struct {
	TeamTarget string
	Points     float64
}

// Narrative is one commentary line attributed to a specific player's
// move, surfaced by the simulation engine for the AI gateway's
// narrative-generation prompt.
type Narrative struct {
	PlayerID string
	Move     string
	Text     string
}

// NewResult returns an empty mutation Result.
func NewResult() *Result {
	return &Result{EventFieldWrites: map[string]float64{}}
}

// Apply evaluates m against ctx and accumulates its effect into r.
func (m Mutation) Apply(ctx *Context, r *Result) error {
	switch m.Kind {
	case MutationEvent:
		v, err := m.EventValue.Eval(ctx)
		if err != nil {
			return err
		}
		r.EventFieldWrites[m.EventField] = v
		ctx.EventFields["event."+m.EventField] = v
	case MutationState:
		v, err := m.StateValue.Eval(ctx)
		if err != nil {
			return err
		}
		r.StateWrites = append(r.StateWrites, StateWrite{Target: m.StateTarget, Op: m.StateOp, Value: v})
	case MutationScore:
		v, err := m.ScorePoints.Eval(ctx)
		if err != nil {
			return err
		}
		r.ScoreCredits = append(r.ScoreCredits, ScoreCredit{TeamTarget: m.ScoreTeamTarget, Points: v})
	case MutationEmit:
		r.Emits = append(r.Emits, m.EmitName)
	case MutationEmitN:
		n, err := m.EmitNCount.Eval(ctx)
		if err != nil {
			return err
		}
		for i := 0; i < int(n); i++ {
			r.Emits = append(r.Emits, m.EmitNName)
		}
	case MutationNarrative:
		r.Narratives = append(r.Narratives, m.NarrativeText)
	case MutationBlockDefault:
		r.BlockDefault = true
	case MutationBlockEvent:
		r.BlockEvent = true
	default:
		return fmt.Errorf("effect: unknown mutation kind %q", m.Kind)
	}
	return nil
}
