//nolint:revive // exported
package expression

import (
	"context"
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
)

var ErrNilEnv = errors.New("expression environment is nil")

// Env wraps the run's variable map for expr-lang evaluation.
// Condition fields are pure expr-lang, no {{ }} interpolation.
type Env struct {
	varMap map[string]any
}

func NewEnv(varMap map[string]any) *Env {
	return &Env{varMap: varMap}
}

// EvalBool evaluates a condition expression against the run variables.
func (e *Env) EvalBool(ctx context.Context, exprStr string) (bool, error) {
	if e == nil {
		return false, ErrNilEnv
	}

	program, err := expr.Compile(exprStr, expr.Env(e.varMap), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile expression '%s': %w", exprStr, err)
	}

	output, err := expr.Run(program, e.varMap)
	if err != nil {
		return false, fmt.Errorf("run expression '%s': %w", exprStr, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to bool, got %T", output)
	}
	return result, nil
}

// EvalItems evaluates an item-source expression and coerces the result into
// the slice a loop iterates over. Maps yield their values.
func (e *Env) EvalItems(ctx context.Context, exprStr string) ([]any, error) {
	if e == nil {
		return nil, ErrNilEnv
	}

	program, err := expr.Compile(exprStr, expr.Env(e.varMap), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression '%s': %w", exprStr, err)
	}

	output, err := expr.Run(program, e.varMap)
	if err != nil {
		return nil, fmt.Errorf("run expression '%s': %w", exprStr, err)
	}

	switch seq := output.(type) {
	case []any:
		return seq, nil
	case []map[string]any:
		items := make([]any, len(seq))
		for i, v := range seq {
			items[i] = v
		}
		return items, nil
	case []string:
		items := make([]any, len(seq))
		for i, v := range seq {
			items[i] = v
		}
		return items, nil
	case []int:
		items := make([]any, len(seq))
		for i, v := range seq {
			items[i] = v
		}
		return items, nil
	case []float64:
		items := make([]any, len(seq))
		for i, v := range seq {
			items[i] = v
		}
		return items, nil
	case map[string]any:
		items := make([]any, 0, len(seq))
		for _, v := range seq {
			items = append(items, v)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expression '%s' is not enumerable: %T", exprStr, output)
	}
}
