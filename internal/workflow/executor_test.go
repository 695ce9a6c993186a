package workflow_test

import (
	"context"
	"sync"
	"testing"

	"masterdata/internal/workflow"
)

// ─────────────────────────────────────────────────────────────
// Executor tests
// ─────────────────────────────────────────────────────────────

// fakeFetcher serves canned record sequences keyed by source type.
type fakeFetcher struct {
	data map[string][]workflow.Record
}

func (f *fakeFetcher) Fetch(ctx context.Context, from workflow.FromDef) ([]workflow.Record, error) {
	return f.data[from.Source], nil
}

// fakeSink collects written records.
type fakeSink struct {
	mu   sync.Mutex
	recs []workflow.Record
}

func (s *fakeSink) Write(ctx context.Context, to workflow.ToDef, rec workflow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeSink) find(field string, v workflow.Value) workflow.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs {
		if got, ok := r[field]; ok && got.Equal(v) {
			return r
		}
	}
	return nil
}

func formatFrom(source string) workflow.FromDef {
	return workflow.FromDef{Type: workflow.FromFormat, Source: source}
}

func fileTo() workflow.ToDef {
	return workflow.ToDef{Type: workflow.ToFormat, Target: "file", Path: "/tmp/out.json", Format: "json"}
}

func calcStep(from workflow.FromDef, target string, op workflow.Operator, left, right workflow.Operand) workflow.StepDefinition {
	return workflow.StepDefinition{
		From: from,
		Transform: workflow.Transform{
			Type: workflow.TransformCalculate, Target: target,
			Op: op, Left: &left, Right: &right,
		},
		To: fileTo(),
	}
}

func TestEngine_SingleStep(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"orders": {
			{"price": workflow.Number(10), "quantity": workflow.Number(3)},
			{"price": workflow.Number(5), "quantity": workflow.Number(2)},
		},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	wf := workflow.Workflow{Steps: []workflow.StepDefinition{
		calcStep(formatFrom("orders"), "total_value", workflow.OpMultiply,
			workflow.FieldRef("price"), workflow.FieldRef("quantity")),
	}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusSuccess {
		t.Fatalf("status = %s, want success", report.Status)
	}
	if report.RowsRead != 2 || report.RowsWritten != 2 || report.RowsFailed != 0 {
		t.Errorf("report = %+v", report)
	}
	if rec := sink.find("total_value", workflow.Number(30)); rec == nil {
		t.Error("missing record with total_value 30")
	}
	if rec := sink.find("total_value", workflow.Number(10)); rec == nil {
		t.Error("missing record with total_value 10")
	}
}

func TestEngine_ChainedSteps(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"orders": {{"price": workflow.Number(10), "quantity": workflow.Number(3)}},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	tax := 1.19
	wf := workflow.Workflow{Steps: []workflow.StepDefinition{
		calcStep(formatFrom("orders"), "total_value", workflow.OpMultiply,
			workflow.FieldRef("price"), workflow.FieldRef("quantity")),
		calcStep(workflow.FromDef{Type: workflow.FromPreviousStep}, "total_with_tax",
			workflow.OpMultiply, workflow.FieldRef("total_value"),
			workflow.Literal(workflow.Number(tax))),
	}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusSuccess || report.RowsWritten != 1 {
		t.Fatalf("report = %+v", report)
	}

	rec := sink.recs[0]
	if !rec["total_value"].Equal(workflow.Number(30)) {
		t.Errorf("total_value = %v", rec["total_value"])
	}
	if !rec["total_with_tax"].Equal(workflow.Number(30 * tax)) {
		t.Errorf("total_with_tax = %v", rec["total_with_tax"])
	}
	// Fields from the first step's raw record survive the chain.
	if !rec["price"].Equal(workflow.Number(10)) {
		t.Errorf("price = %v", rec["price"])
	}
}

func TestEngine_IndependentDerivations(t *testing.T) {
	// Two later steps each derive a new field from different parts of
	// the accumulated context; both land in the final record alongside
	// the originals.
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"people": {{
			"first":      workflow.String("Ada"),
			"last":       workflow.String("Lovelace"),
			"birth_year": workflow.Number(1815),
		}},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	concat := workflow.StepDefinition{
		From: workflow.FromDef{Type: workflow.FromPreviousStep},
		Transform: workflow.Transform{
			Type: workflow.TransformConcatenate, Target: "full_name",
			Parts:     []workflow.Operand{workflow.FieldRef("first"), workflow.FieldRef("last")},
			Separator: " ",
		},
		To: fileTo(),
	}
	wf := workflow.Workflow{Steps: []workflow.StepDefinition{
		{From: formatFrom("people"), To: fileTo()},
		concat,
		calcStep(workflow.FromDef{Type: workflow.FromPreviousStep}, "age",
			workflow.OpSubtract, workflow.Literal(workflow.Number(1852)),
			workflow.FieldRef("birth_year")),
	}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusSuccess || report.RowsWritten != 1 {
		t.Fatalf("report = %+v", report)
	}

	rec := sink.recs[0]
	if !rec["full_name"].Equal(workflow.String("Ada Lovelace")) {
		t.Errorf("full_name = %v", rec["full_name"])
	}
	if !rec["age"].Equal(workflow.Number(37)) {
		t.Errorf("age = %v", rec["age"])
	}
	for _, field := range []string{"first", "last", "birth_year"} {
		if _, ok := rec[field]; !ok {
			t.Errorf("original field %s missing from final record", field)
		}
	}
}

func TestEngine_PartialFailure(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"orders": {
			{"a": workflow.Number(10), "b": workflow.Number(2)},
			{"a": workflow.Number(1), "b": workflow.Number(0)},
			{"a": workflow.Number(9), "b": workflow.Number(3)},
		},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	wf := workflow.Workflow{Steps: []workflow.StepDefinition{
		calcStep(formatFrom("orders"), "ratio", workflow.OpDivide,
			workflow.FieldRef("a"), workflow.FieldRef("b")),
	}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusPartial {
		t.Fatalf("status = %s, want partial", report.Status)
	}
	if report.RowsRead != 3 || report.RowsWritten != 2 || report.RowsFailed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Errors[0].Row != 1 {
		t.Errorf("failed row = %d, want 1", report.Errors[0].Row)
	}
	want := "Step 0: Division by zero in target field 'ratio'"
	if report.Errors[0].Message != want {
		t.Errorf("got %q, want %q", report.Errors[0].Message, want)
	}
}

func TestEngine_LastWriteWins(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"orders": {{"x": workflow.Number(2)}},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	// Both steps write "result": the later step's value survives.
	wf := workflow.Workflow{Steps: []workflow.StepDefinition{
		calcStep(formatFrom("orders"), "result", workflow.OpAdd,
			workflow.FieldRef("x"), workflow.Literal(workflow.Number(1))),
		calcStep(workflow.FromDef{Type: workflow.FromPreviousStep}, "result",
			workflow.OpMultiply, workflow.FieldRef("x"), workflow.Literal(workflow.Number(100))),
	}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusSuccess {
		t.Fatalf("report = %+v", report)
	}
	if !sink.recs[0]["result"].Equal(workflow.Number(200)) {
		t.Errorf("result = %v, want 200", sink.recs[0]["result"])
	}
}

func TestEngine_RowOrdinalPairing(t *testing.T) {
	// A later non-chained step pairs with the primary sequence by row
	// ordinal; a shorter sequence fails the unmatched rows only.
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"people": {
			{"first": workflow.String("Ada")},
			{"first": workflow.String("Grace")},
		},
		"surnames": {
			{"last": workflow.String("Lovelace")},
		},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	second := workflow.StepDefinition{
		From: formatFrom("surnames"),
		Transform: workflow.Transform{
			Type: workflow.TransformConcatenate, Target: "full_name",
			Parts:     []workflow.Operand{workflow.FieldRef("first"), workflow.FieldRef("last")},
			Separator: " ",
		},
		To: fileTo(),
	}
	wf := workflow.Workflow{Steps: []workflow.StepDefinition{
		{From: formatFrom("people"), To: fileTo()},
		second,
	}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusPartial {
		t.Fatalf("status = %s, want partial", report.Status)
	}
	if report.RowsWritten != 1 || report.RowsFailed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Errors[0].Message != "Step 1: no input record at row 1" {
		t.Errorf("got %q", report.Errors[0].Message)
	}
	if rec := sink.find("full_name", workflow.String("Ada Lovelace")); rec == nil {
		t.Error("missing joined record")
	}
}

func TestEngine_ValidationFailure(t *testing.T) {
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: &fakeFetcher{}, Sink: sink}

	wf := workflow.Workflow{Steps: []workflow.StepDefinition{{
		From: workflow.FromDef{Type: workflow.FromPreviousStep},
		To:   fileTo(),
	}}}

	report, err := engine.Run(context.Background(), wf)
	if err == nil {
		t.Fatal("expected error")
	}
	if report.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want failed", report.Status)
	}
	if len(report.ValidationErrors) != 1 ||
		report.ValidationErrors[0] != "Step 0 cannot use PreviousStep source" {
		t.Errorf("validation errors = %v", report.ValidationErrors)
	}
	if len(sink.recs) != 0 {
		t.Error("sink received records despite failed validation")
	}
}

func TestEngine_MappingShapesOutput(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]workflow.Record{
		"orders": {{"unit_price": workflow.String("9.5"), "note": workflow.String("keep out")}},
	}}
	sink := &fakeSink{}
	engine := &workflow.Engine{Fetcher: fetcher, Sink: sink}

	left := workflow.FieldRef("price")
	right := workflow.Literal(workflow.Number(2))
	wf := workflow.Workflow{Steps: []workflow.StepDefinition{{
		From: workflow.FromDef{Type: workflow.FromFormat, Source: "orders",
			Mapping: workflow.Mapping{{Source: "unit_price", Target: "price"}}},
		Transform: workflow.Transform{
			Type: workflow.TransformCalculate, Target: "total",
			Op: workflow.OpMultiply, Left: &left, Right: &right,
		},
		To: workflow.ToDef{Type: workflow.ToFormat, Target: "file", Path: "/tmp/out.json", Format: "json",
			Mapping: workflow.Mapping{{Source: "total", Target: "grand_total"}}},
	}}}

	report, err := engine.Run(context.Background(), wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != workflow.StatusSuccess {
		t.Fatalf("report = %+v", report)
	}

	rec := sink.recs[0]
	if !rec["grand_total"].Equal(workflow.Number(19)) {
		t.Errorf("grand_total = %v", rec["grand_total"])
	}
	if _, ok := rec["note"]; ok {
		t.Error("unmapped field leaked into the output")
	}
	if _, ok := rec["total"]; ok {
		t.Error("pre-mapping field leaked into the output")
	}
}
