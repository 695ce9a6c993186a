package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format. All sources emit Records, all
// destinations consume Records, and the step chain accumulates them.

// Record is a normalized record: field name → Value.
type Record map[string]Value

// RecordFromAny builds a Record from a decoded JSON field map.
func RecordFromAny(data map[string]any) Record {
	r := make(Record, len(data))
	for k, v := range data {
		r[k] = FromAny(v)
	}
	return r
}

// ToAny converts the record into a plain field map for serialization.
func (r Record) ToAny() map[string]any {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[k] = v.ToAny()
	}
	return m
}

// Clone returns a shallow copy of the record. Values are immutable
// from the evaluator's point of view, so shallow is enough.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean" | "datetime"
}

// Schema describes the shape of records coming from a source.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// ── Mapping ────────────────────────────────────────────────
// An ordered set of source→target field pairs. The empty mapping is
// passthrough: every field copied unchanged, never "drop everything".

// FieldMap is a single source→target pair in a Mapping.
type FieldMap struct {
	Source string
	Target string
}

// Mapping is an ordered field mapping. Order is irrelevant for
// lookup but preserved through JSON so serialized definitions
// round-trip byte-stable.
type Mapping []FieldMap

// IsPassthrough reports whether the mapping copies every field unchanged.
func (m Mapping) IsPassthrough() bool { return len(m) == 0 }

// MarshalJSON renders the mapping as a JSON object in pair order.
// An empty mapping marshals as {} — a meaningful value, distinct from
// an absent field, and still passthrough.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fm := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fm.Source)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fm.Target)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into pairs, preserving the
// document's key order (a plain map would scramble it).
func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mapping must be a JSON object")
	}

	var pairs Mapping
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("mapping key must be a string")
		}
		var target string
		if err := dec.Decode(&target); err != nil {
			return fmt.Errorf("mapping value for %q: %w", key, err)
		}
		pairs = append(pairs, FieldMap{Source: key, Target: target})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = pairs
	return nil
}

// ── Normalizer ─────────────────────────────────────────────

// ApplyMapping produces a normalized record from rec.
// Empty mapping → verbatim clone. Otherwise each pair copies
// rec[source] into the result under target; a missing source fails
// with MissingFieldError.
func ApplyMapping(rec Record, m Mapping) (Record, error) {
	if m.IsPassthrough() {
		return rec.Clone(), nil
	}
	out := make(Record, len(m))
	for _, fm := range m {
		v, ok := rec[fm.Source]
		if !ok {
			return nil, &MissingFieldError{Field: fm.Source}
		}
		out[fm.Target] = v
	}
	return out, nil
}

// Merge unions previous and current. Fields in current override
// same-named fields in previous; everything else survives.
func Merge(previous, current Record) Record {
	out := make(Record, len(previous)+len(current))
	for k, v := range previous {
		out[k] = v
	}
	for k, v := range current {
		out[k] = v
	}
	return out
}
