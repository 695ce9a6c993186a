package workflow

import (
	"fmt"
	"strings"
)

// ── Transform evaluator ────────────────────────────────────
// Executes one calculation against the accumulated scope of a step.
// Pure computation: no I/O, no shared state, row-scoped failures.

// EvaluateTransform applies t to scope and returns the resulting
// record. The scope already contains everything accumulated by earlier
// steps plus this step's freshly mapped fields. stepIndex is carried
// into arithmetic errors for the run log.
func EvaluateTransform(stepIndex int, t Transform, scope Record) (Record, error) {
	switch t.Type {
	case TransformNone, "":
		return scope.Clone(), nil
	case TransformCalculate:
		return evaluateCalculate(stepIndex, t, scope)
	case TransformConcatenate:
		return evaluateConcatenate(t, scope)
	default:
		return nil, &UnsupportedOperationError{What: fmt.Sprintf("transform type %q", t.Type)}
	}
}

func evaluateCalculate(stepIndex int, t Transform, scope Record) (Record, error) {
	if t.Left == nil || t.Right == nil {
		return nil, &UnsupportedOperationError{What: fmt.Sprintf("calculate %q: missing operand", t.Target)}
	}

	a, err := resolveNumber(scope, *t.Left, t.Target)
	if err != nil {
		return nil, err
	}
	b, err := resolveNumber(scope, *t.Right, t.Target)
	if err != nil {
		return nil, err
	}

	var result float64
	switch t.Op {
	case OpAdd:
		result = a + b
	case OpSubtract:
		result = a - b
	case OpMultiply:
		result = a * b
	case OpDivide:
		if b == 0 {
			return nil, &DivisionByZeroError{StepIndex: stepIndex, Target: t.Target}
		}
		result = a / b
	default:
		return nil, &UnsupportedOperationError{What: fmt.Sprintf("operator %q", t.Op)}
	}

	out := scope.Clone()
	out[t.Target] = Number(result)
	return out, nil
}

func evaluateConcatenate(t Transform, scope Record) (Record, error) {
	parts := make([]string, 0, len(t.Parts))
	for _, p := range t.Parts {
		s, err := resolveString(scope, p, t.Target)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}

	out := scope.Clone()
	out[t.Target] = String(strings.Join(parts, t.Separator))
	return out, nil
}

// resolveOperand looks up a field reference in the scope, or returns
// the literal. The returned label names the field for error messages:
// the referenced field when there is one, the target otherwise.
func resolveOperand(scope Record, op Operand, target string) (Value, string, error) {
	if op.Field != "" {
		v, ok := scope[op.Field]
		if !ok {
			return Value{}, op.Field, &MissingFieldError{Field: op.Field}
		}
		return v, op.Field, nil
	}
	if op.Literal != nil {
		return *op.Literal, target, nil
	}
	return Value{}, target, &UnsupportedOperationError{What: "empty operand"}
}

func resolveNumber(scope Record, op Operand, target string) (float64, error) {
	v, label, err := resolveOperand(scope, op, target)
	if err != nil {
		return 0, err
	}
	return ToNumber(label, v)
}

func resolveString(scope Record, op Operand, target string) (string, error) {
	v, label, err := resolveOperand(scope, op, target)
	if err != nil {
		return "", err
	}
	return ToString(label, v)
}
