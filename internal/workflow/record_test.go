package workflow_test

import (
	"encoding/json"
	"errors"
	"testing"

	"masterdata/internal/workflow"
)

// ─────────────────────────────────────────────────────────────
// Record, Mapping, and Merge tests
// ─────────────────────────────────────────────────────────────

func TestApplyMapping_Rename(t *testing.T) {
	rec := workflow.Record{
		"user_name": workflow.String("Alice"),
		"user_age":  workflow.Number(30),
	}
	m := workflow.Mapping{
		{Source: "user_name", Target: "name"},
		{Source: "user_age", Target: "age"},
	}

	out, err := workflow.ApplyMapping(rec, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if !out["name"].Equal(workflow.String("Alice")) {
		t.Errorf("name = %v", out["name"])
	}
	if !out["age"].Equal(workflow.Number(30)) {
		t.Errorf("age = %v", out["age"])
	}
	if _, ok := out["user_name"]; ok {
		t.Error("unmapped source field leaked through")
	}
}

func TestApplyMapping_EmptyIsPassthrough(t *testing.T) {
	rec := workflow.Record{
		"a": workflow.String("x"),
		"b": workflow.Number(1),
	}

	out, err := workflow.ApplyMapping(rec, workflow.Mapping{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(rec) {
		t.Fatalf("expected %d fields, got %d", len(rec), len(out))
	}
	for k, v := range rec {
		if !out[k].Equal(v) {
			t.Errorf("field %s changed: %v", k, out[k])
		}
	}

	// Passthrough must copy, not alias.
	out["c"] = workflow.Bool(true)
	if _, ok := rec["c"]; ok {
		t.Error("passthrough aliases the input record")
	}
}

func TestApplyMapping_MissingSource(t *testing.T) {
	rec := workflow.Record{"a": workflow.String("x")}
	m := workflow.Mapping{{Source: "missing", Target: "out"}}

	_, err := workflow.ApplyMapping(rec, m)
	if err == nil {
		t.Fatal("expected error")
	}
	var mfe *workflow.MissingFieldError
	if !errors.As(err, &mfe) {
		t.Fatalf("expected MissingFieldError, got %T", err)
	}
	if err.Error() != "Field 'missing' not found" {
		t.Errorf("got %q", err.Error())
	}
}

func TestMerge_CurrentWins(t *testing.T) {
	previous := workflow.Record{
		"a": workflow.String("old"),
		"b": workflow.Number(1),
	}
	current := workflow.Record{
		"a": workflow.String("new"),
		"c": workflow.Bool(true),
	}

	out := workflow.Merge(previous, current)
	if !out["a"].Equal(workflow.String("new")) {
		t.Errorf("a = %v, want current value", out["a"])
	}
	if !out["b"].Equal(workflow.Number(1)) {
		t.Errorf("b = %v, want previous value", out["b"])
	}
	if !out["c"].Equal(workflow.Bool(true)) {
		t.Errorf("c = %v", out["c"])
	}
	// Inputs untouched.
	if !previous["a"].Equal(workflow.String("old")) {
		t.Error("Merge mutated previous")
	}
}

func TestMapping_JSONRoundTrip(t *testing.T) {
	m := workflow.Mapping{
		{Source: "z_field", Target: "first"},
		{Source: "a_field", Target: "second"},
		{Source: "m_field", Target: "third"},
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Pair order survives serialization, not map iteration order.
	want := `{"z_field":"first","a_field":"second","m_field":"third"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back workflow.Mapping
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(back))
	}
	for i := range m {
		if back[i] != m[i] {
			t.Errorf("pair %d: got %+v, want %+v", i, back[i], m[i])
		}
	}
}

func TestMapping_EmptyJSONRoundTrip(t *testing.T) {
	var m workflow.Mapping
	if err := json.Unmarshal([]byte(`{}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !m.IsPassthrough() {
		t.Error("empty object should decode to passthrough")
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{}` {
		t.Errorf("got %s, want {}", data)
	}
}

func TestRecord_CloneIsolation(t *testing.T) {
	rec := workflow.Record{"a": workflow.Number(1)}
	cp := rec.Clone()
	cp["a"] = workflow.Number(2)
	cp["b"] = workflow.String("x")

	if !rec["a"].Equal(workflow.Number(1)) {
		t.Error("Clone shares storage with original")
	}
	if _, ok := rec["b"]; ok {
		t.Error("Clone shares storage with original")
	}
}

func TestRecordFromAny_ToAny(t *testing.T) {
	data := map[string]any{
		"name":   "Alice",
		"age":    float64(30),
		"active": true,
		"note":   nil,
		"tags":   []any{"a", "b"},
	}
	rec := workflow.RecordFromAny(data)

	if rec["name"].Kind() != workflow.KindString {
		t.Errorf("name kind = %v", rec["name"].Kind())
	}
	if rec["note"].Kind() != workflow.KindNull {
		t.Errorf("note kind = %v", rec["note"].Kind())
	}
	if rec["tags"].Kind() != workflow.KindArray {
		t.Errorf("tags kind = %v", rec["tags"].Kind())
	}

	back := rec.ToAny()
	if back["name"] != "Alice" || back["age"] != float64(30) || back["active"] != true {
		t.Errorf("round trip mismatch: %v", back)
	}
}
