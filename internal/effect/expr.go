package effect

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a restricted expression grammar evaluated against a Context:
// arithmetic, field access, a fixed library of numeric functions, and
// boolean logic (spec.md §4.3). It is a tagged union, never arbitrary
// code (spec.md §9).
type Expr struct {
	Kind ExprKind `json:"kind"`

	// ExprLiteral
	Literal float64 `json:"literal,omitempty"`

	// ExprField
	FieldPath string `json:"field_path,omitempty"`

	// ExprBinary
	Op    string `json:"op,omitempty"` // "+","-","*","/"
	Left  *Expr  `json:"left,omitempty"`
	Right *Expr  `json:"right,omitempty"`

	// ExprCall: a fixed numeric-function table.
	Func string `json:"func,omitempty"` // "logistic", "clamp", "min", "max", "weighted_choice"
	Args []Expr `json:"args,omitempty"`
}

// ExprKind tags which Expr variant is populated.
type ExprKind string

const (
	ExprLiteral ExprKind = "literal"
	ExprField   ExprKind = "field"
	ExprBinary  ExprKind = "binary"
	ExprCall    ExprKind = "call"
)

// Eval evaluates the expression against ctx.
func (e Expr) Eval(ctx *Context) (float64, error) {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal, nil
	case ExprField:
		v, _ := ctx.Resolve(e.FieldPath)
		return v, nil
	case ExprBinary:
		if e.Left == nil || e.Right == nil {
			return 0, fmt.Errorf("effect: binary expr missing operand")
		}
		l, err := e.Left.Eval(ctx)
		if err != nil {
			return 0, err
		}
		r, err := e.Right.Eval(ctx)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			if r == 0 {
				return 0, fmt.Errorf("effect: division by zero")
			}
			return l / r, nil
		default:
			return 0, fmt.Errorf("effect: unknown binary op %q", e.Op)
		}
	case ExprCall:
		return e.evalCall(ctx)
	default:
		return 0, fmt.Errorf("effect: unknown expr kind %q", e.Kind)
	}
}

func (e Expr) evalCall(ctx *Context) (float64, error) {
	args := make([]float64, len(e.Args))
	for i, a := range e.Args {
		v, err := a.Eval(ctx)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	switch e.Func {
	case "logistic":
		if len(args) != 3 {
			return 0, fmt.Errorf("effect: logistic(x, midpoint, steepness) takes 3 args")
		}
		return Logistic(args[0], args[1], args[2]), nil
	case "clamp":
		if len(args) != 3 {
			return 0, fmt.Errorf("effect: clamp(x, lo, hi) takes 3 args")
		}
		return Clamp(args[0], args[1], args[2]), nil
	case "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("effect: min requires at least one arg")
		}
		m := args[0]
		for _, v := range args[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case "max":
		if len(args) == 0 {
			return 0, fmt.Errorf("effect: max requires at least one arg")
		}
		m := args[0]
		for _, v := range args[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case "weighted_choice":
		// weighted_choice returns the index (as float64) chosen from a
		// list of weights, drawing from ctx.RNG. Clamps negative
		// weights to 0.
		if len(args) == 0 {
			return 0, fmt.Errorf("effect: weighted_choice requires weights")
		}
		return float64(WeightedChoice(ctx.RNG, args)), nil
	default:
		return 0, fmt.Errorf("effect: unknown function %q", e.Func)
	}
}

// ParseFieldTemplate parses a "{expr}"-style string literal embedded in
// a mutation argument into a constant or field-path Expr. Mutation
// arguments are plain JSON values; a string value starting with "{"
// and ending with "}" is treated as an expression to evaluate against
// the unified context, anything else is a literal.
func ParseFieldTemplate(s string) (Expr, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		return Expr{Kind: ExprField, FieldPath: inner}, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Expr{Kind: ExprLiteral, Literal: f}, nil
	}
	return Expr{}, fmt.Errorf("effect: cannot parse expression %q", s)
}
