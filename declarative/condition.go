package declarative

import (
	"fmt"
	"strconv"
	"strings"
)

// evalCondition evaluates a "field op literal" expression (e.g. "age < 18",
// "status == approved") against scope. Numeric literals compare as float64;
// anything else compares as a string. No library in the retrieval pack
// evaluates expressions against a variable scope, so this is a deliberately
// small hand-rolled comparator rather than a general expression language.
func evalCondition(expr string, scope map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}

	op, opLen := "", 0
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if idx := strings.Index(expr, candidate); idx >= 0 {
			op, opLen = candidate, len(candidate)
			expr = expr[:idx] + "\x00" + expr[idx+opLen:]
			break
		}
	}
	if op == "" {
		return false, fmt.Errorf("declarative: condition %q has no comparison operator", expr)
	}
	parts := strings.SplitN(expr, "\x00", 2)
	field := strings.TrimSpace(parts[0])
	literal := strings.TrimSpace(parts[1])

	value, ok := scope[field]
	if !ok {
		return false, fmt.Errorf("declarative: condition references unknown variable %q", field)
	}

	if lf, err := strconv.ParseFloat(literal, 64); err == nil {
		vf, err := toFloat(value)
		if err != nil {
			return false, fmt.Errorf("declarative: condition %q: %w", field, err)
		}
		return compareFloat(vf, op, lf), nil
	}

	vs := fmt.Sprintf("%v", value)
	ls := strings.Trim(literal, `"'`)
	switch op {
	case "==":
		return vs == ls, nil
	case "!=":
		return vs != ls, nil
	default:
		return false, fmt.Errorf("declarative: operator %q not valid for string comparison", op)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

func compareFloat(a float64, op string, b float64) bool {
	switch op {
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}
