package effect

import "fmt"

// CompareOp is a field-comparison operator in the condition grammar.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
)

// LogicalOp combines sub-conditions.
type LogicalOp string

const (
	OpAll LogicalOp = "all"
	OpAny LogicalOp = "any"
	OpNot LogicalOp = "not"
)

// ConditionKind tags which variant of the condition tree a Condition
// node is (spec.md §9: tagged union, not a callable).
type ConditionKind string

const (
	ConditionField    ConditionKind = "field"
	ConditionRandom   ConditionKind = "random"
	ConditionLogical  ConditionKind = "logical"
	ConditionAlwaysTrue ConditionKind = "always_true"
)

// Condition is a node in the condition tree (spec.md §4.3). Exactly
// one of the Field*/Random*/Logical* groups is populated, selected by
// Kind.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	// ConditionField: field comparison.
	FieldPath  string    `json:"field_path,omitempty"`
	FieldOp    CompareOp `json:"field_op,omitempty"`
	FieldValue float64   `json:"field_value,omitempty"`

	// ConditionRandom: draws from the game RNG, not a global source.
	RandomProbability float64 `json:"random_probability,omitempty"`

	// ConditionLogical: all/any/not over Children.
	LogicalOp LogicalOp   `json:"logical_op,omitempty"`
	Children  []Condition `json:"children,omitempty"`
}

// Eval evaluates the condition tree against ctx. Randomness inside
// {"random": p} draws from ctx.RNG (the game's seeded instance).
func (c Condition) Eval(ctx *Context) (bool, error) {
	switch c.Kind {
	case ConditionAlwaysTrue, "":
		return true, nil
	case ConditionField:
		v, _ := ctx.Resolve(c.FieldPath)
		switch c.FieldOp {
		case OpEq:
			return v == c.FieldValue, nil
		case OpLt:
			return v < c.FieldValue, nil
		case OpLte:
			return v <= c.FieldValue, nil
		case OpGt:
			return v > c.FieldValue, nil
		case OpGte:
			return v >= c.FieldValue, nil
		default:
			return false, fmt.Errorf("effect: unknown compare op %q", c.FieldOp)
		}
	case ConditionRandom:
		if ctx.RNG == nil {
			return false, fmt.Errorf("effect: random condition requires a seeded RNG")
		}
		return ctx.RNG.Float64() < c.RandomProbability, nil
	case ConditionLogical:
		switch c.LogicalOp {
		case OpAll:
			for _, child := range c.Children {
				ok, err := child.Eval(ctx)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		case OpAny:
			for _, child := range c.Children {
				ok, err := child.Eval(ctx)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		case OpNot:
			if len(c.Children) != 1 {
				return false, fmt.Errorf("effect: not requires exactly one child")
			}
			ok, err := c.Children[0].Eval(ctx)
			if err != nil {
				return false, err
			}
			return !ok, nil
		default:
			return false, fmt.Errorf("effect: unknown logical op %q", c.LogicalOp)
		}
	default:
		return false, fmt.Errorf("effect: unknown condition kind %q", c.Kind)
	}
}
