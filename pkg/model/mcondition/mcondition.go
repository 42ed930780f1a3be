//nolint:revive // exported
package mcondition

// Comparison holds a single expr-lang expression that evaluates to a bool.
type Comparison struct {
	Expression string `json:"expression" yaml:"expression"`
}

// Condition gates loop continuation; an empty expression never breaks.
type Condition struct {
	Comparisons Comparison `json:"comparisons" yaml:"comparisons"`
}

func New(expression string) Condition {
	return Condition{Comparisons: Comparison{Expression: expression}}
}

func (c Condition) IsEmpty() bool {
	return c.Comparisons.Expression == ""
}
