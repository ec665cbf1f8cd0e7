package expense

import (
	"errors"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"

	"tripkit/internal/domain"
)

// functions available inside cost expressions.
var functions = map[string]govaluate.ExpressionFunction{
	"round": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("round expects 1 argument")
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("round: %v is not a number", args[0])
		}
		return math.Round(v*100) / 100, nil
	},
	"ceil":  unary("ceil", math.Ceil),
	"floor": unary("floor", math.Floor),
	"min": func(args ...any) (any, error) {
		return fold("min", args, math.Min)
	},
	"max": func(args ...any) (any, error) {
		return fold("max", args, math.Max)
	},
}

// Evaluate computes a free-form cost expression such as
// "price * nights + fees" with the given named parameters.
func Evaluate(expression string, params map[string]any) (float64, error) {
	exp, err := govaluate.NewEvaluableExpressionWithFunctions(expression, functions)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q: %v", domain.ErrInvalidOperand, expression, err)
	}

	vars := make(map[string]any, len(params))
	for k, v := range params {
		switch n := v.(type) {
		case int:
			vars[k] = float64(n)
		case int64:
			vars[k] = float64(n)
		default:
			vars[k] = v
		}
	}

	out, err := exp.Evaluate(vars)
	if err != nil {
		return 0, fmt.Errorf("%w: evaluate %q: %v", domain.ErrInvalidOperand, expression, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q does not evaluate to a number", domain.ErrInvalidOperand, expression)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		if hasDivision(exp) {
			return 0, fmt.Errorf("%w: in %q", domain.ErrDivisionByZero, expression)
		}
		return 0, fmt.Errorf("%w: %q is not finite", domain.ErrInvalidOperand, expression)
	}
	return v, nil
}

func hasDivision(exp *govaluate.EvaluableExpression) bool {
	for _, tok := range exp.Tokens() {
		if tok.Kind == govaluate.MODIFIER && (tok.Value == "/" || tok.Value == "%") {
			return true
		}
	}
	return false
}

func unary(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument", name)
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%s: %v is not a number", name, args[0])
		}
		return fn(v), nil
	}
}

func fold(name string, args []any, fn func(a, b float64) float64) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expects at least 1 argument", name)
	}
	var acc float64
	for i, a := range args {
		v, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("%s: %v is not a number", name, a)
		}
		if i == 0 {
			acc = v
			continue
		}
		acc = fn(acc, v)
	}
	return acc, nil
}
