package workflow_test

import (
	"errors"
	"testing"

	"masterdata/internal/workflow"
)

// ─────────────────────────────────────────────────────────────
// Transform evaluator tests
// ─────────────────────────────────────────────────────────────

func calc(target string, op workflow.Operator, left, right workflow.Operand) workflow.Transform {
	return workflow.Transform{
		Type:   workflow.TransformCalculate,
		Target: target,
		Op:     op,
		Left:   &left,
		Right:  &right,
	}
}

func TestEvaluateTransform_None(t *testing.T) {
	scope := workflow.Record{"a": workflow.Number(1)}
	out, err := workflow.EvaluateTransform(0, workflow.Transform{}, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["a"].Equal(workflow.Number(1)) {
		t.Errorf("a = %v", out["a"])
	}
	out["a"] = workflow.Number(2)
	if !scope["a"].Equal(workflow.Number(1)) {
		t.Error("none transform aliases the scope")
	}
}

func TestEvaluateTransform_Calculate(t *testing.T) {
	scope := workflow.Record{
		"price":    workflow.Number(10),
		"quantity": workflow.Number(3),
	}

	out, err := workflow.EvaluateTransform(0,
		calc("total", workflow.OpMultiply, workflow.FieldRef("price"), workflow.FieldRef("quantity")),
		scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["total"].Equal(workflow.Number(30)) {
		t.Errorf("total = %v, want 30", out["total"])
	}
	// Scope fields survive alongside the result.
	if !out["price"].Equal(workflow.Number(10)) {
		t.Errorf("price = %v", out["price"])
	}
}

func TestEvaluateTransform_CalculateCoercesStrings(t *testing.T) {
	scope := workflow.Record{
		"price":    workflow.String("10.5"),
		"quantity": workflow.String("2"),
	}

	out, err := workflow.EvaluateTransform(0,
		calc("total", workflow.OpMultiply, workflow.FieldRef("price"), workflow.FieldRef("quantity")),
		scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["total"].Equal(workflow.Number(21)) {
		t.Errorf("total = %v, want 21", out["total"])
	}
}

func TestEvaluateTransform_CalculateLiteral(t *testing.T) {
	scope := workflow.Record{"total": workflow.Number(30)}
	tax := 1.19

	out, err := workflow.EvaluateTransform(0,
		calc("with_tax", workflow.OpMultiply, workflow.FieldRef("total"), workflow.Literal(workflow.Number(tax))),
		scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["with_tax"].Equal(workflow.Number(30 * tax)) {
		t.Errorf("with_tax = %v, want %v", out["with_tax"], 30*tax)
	}
}

func TestEvaluateTransform_Operators(t *testing.T) {
	scope := workflow.Record{"a": workflow.Number(10), "b": workflow.Number(4)}
	cases := []struct {
		op   workflow.Operator
		want float64
	}{
		{workflow.OpAdd, 14},
		{workflow.OpSubtract, 6},
		{workflow.OpMultiply, 40},
		{workflow.OpDivide, 2.5},
	}
	for _, tc := range cases {
		out, err := workflow.EvaluateTransform(0,
			calc("r", tc.op, workflow.FieldRef("a"), workflow.FieldRef("b")), scope)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.op, err)
		}
		if !out["r"].Equal(workflow.Number(tc.want)) {
			t.Errorf("%s: r = %v, want %v", tc.op, out["r"], tc.want)
		}
	}
}

func TestEvaluateTransform_DivisionByZero(t *testing.T) {
	scope := workflow.Record{"a": workflow.Number(1), "b": workflow.Number(0)}

	_, err := workflow.EvaluateTransform(2,
		calc("ratio", workflow.OpDivide, workflow.FieldRef("a"), workflow.FieldRef("b")), scope)
	if err == nil {
		t.Fatal("expected error")
	}
	var dbz *workflow.DivisionByZeroError
	if !errors.As(err, &dbz) {
		t.Fatalf("expected DivisionByZeroError, got %T", err)
	}
	want := "Step 2: Division by zero in target field 'ratio'"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestEvaluateTransform_MissingOperandField(t *testing.T) {
	scope := workflow.Record{"a": workflow.Number(1)}

	_, err := workflow.EvaluateTransform(0,
		calc("r", workflow.OpAdd, workflow.FieldRef("a"), workflow.FieldRef("nope")), scope)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Field 'nope' not found" {
		t.Errorf("got %q", err.Error())
	}
}

func TestEvaluateTransform_Concatenate(t *testing.T) {
	scope := workflow.Record{
		"first": workflow.String("Ada"),
		"last":  workflow.String("Lovelace"),
	}

	out, err := workflow.EvaluateTransform(0, workflow.Transform{
		Type:      workflow.TransformConcatenate,
		Target:    "full_name",
		Parts:     []workflow.Operand{workflow.FieldRef("first"), workflow.FieldRef("last")},
		Separator: " ",
	}, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["full_name"].Equal(workflow.String("Ada Lovelace")) {
		t.Errorf("full_name = %v", out["full_name"])
	}
}

func TestEvaluateTransform_ConcatenateUnicode(t *testing.T) {
	scope := workflow.Record{
		"emoji": workflow.String("🚀"),
		"text":  workflow.String("こんにちは"),
	}

	out, err := workflow.EvaluateTransform(0, workflow.Transform{
		Type:      workflow.TransformConcatenate,
		Target:    "msg",
		Parts:     []workflow.Operand{workflow.FieldRef("emoji"), workflow.FieldRef("text")},
		Separator: " ",
	}, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["msg"].Equal(workflow.String("🚀 こんにちは")) {
		t.Errorf("msg = %v", out["msg"])
	}
}

func TestEvaluateTransform_ConcatenateFormatsNumbers(t *testing.T) {
	scope := workflow.Record{
		"name": workflow.String("Ada"),
		"age":  workflow.Number(36),
	}

	out, err := workflow.EvaluateTransform(0, workflow.Transform{
		Type:      workflow.TransformConcatenate,
		Target:    "label",
		Parts:     []workflow.Operand{workflow.FieldRef("name"), workflow.FieldRef("age")},
		Separator: ", ",
	}, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out["label"].Equal(workflow.String("Ada, 36")) {
		t.Errorf("label = %v", out["label"])
	}
}

func TestEvaluateTransform_ConcatenateNullFails(t *testing.T) {
	scope := workflow.Record{"name": workflow.Null()}

	_, err := workflow.EvaluateTransform(0, workflow.Transform{
		Type:   workflow.TransformConcatenate,
		Target: "out",
		Parts:  []workflow.Operand{workflow.FieldRef("name")},
	}, scope)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Field 'name' is null, cannot convert to string" {
		t.Errorf("got %q", err.Error())
	}
}

func TestEvaluateTransform_UnknownType(t *testing.T) {
	_, err := workflow.EvaluateTransform(0, workflow.Transform{Type: "pivot"}, workflow.Record{})
	if err == nil {
		t.Fatal("expected error")
	}
	var unsupported *workflow.UnsupportedOperationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedOperationError, got %T", err)
	}
}
