package workflow

import "time"

// ── Step definitions ───────────────────────────────────────
// From / Transform / To are modeled as tag + variant fields with
// exhaustive switching at every evaluation point. The tag values are
// the wire format: adding a variant is a compile-visible change in
// each switch, not a new subclass somewhere.

// FromType discriminates the source variant of a step.
type FromType string

const (
	FromFormat       FromType = "format"        // external file/URI source via the source registry
	FromEntity       FromType = "entity"        // query against the entity store
	FromPreviousStep FromType = "previous_step" // accumulated output of the preceding step
)

// FromDef declares where a step pulls its raw record from.
// Format uses Source (a registered source type) plus its Config;
// Entity names an entity type and an optional filter; PreviousStep
// carries no configuration and is illegal at step 0.
type FromDef struct {
	Type    FromType       `json:"type"`
	Source  string         `json:"source,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
	Entity  string         `json:"entity,omitempty"`
	Filter  map[string]any `json:"filter,omitempty"`
	Mapping Mapping        `json:"mapping"`
}

// TransformType discriminates the transform variant of a step.
type TransformType string

const (
	TransformNone        TransformType = "none"
	TransformCalculate   TransformType = "calculate"
	TransformConcatenate TransformType = "concatenate"
)

// Operator is the binary operator of a calculate transform.
type Operator string

const (
	OpAdd      Operator = "add"
	OpSubtract Operator = "subtract"
	OpMultiply Operator = "multiply"
	OpDivide   Operator = "divide"
)

// Operand is either a field reference into the accumulated scope or a
// literal Value. Exactly one side is set.
type Operand struct {
	Field   string `json:"field,omitempty"`
	Literal *Value `json:"literal,omitempty"`
}

// FieldRef returns an operand referencing a scope field.
func FieldRef(name string) Operand { return Operand{Field: name} }

// Literal returns a literal operand.
func Literal(v Value) Operand { return Operand{Literal: &v} }

// Transform declares the calculation a step applies to its scope.
type Transform struct {
	Type      TransformType `json:"type"`
	Target    string        `json:"target,omitempty"`
	Op        Operator      `json:"op,omitempty"`
	Left      *Operand      `json:"left,omitempty"`
	Right     *Operand      `json:"right,omitempty"`
	Parts     []Operand     `json:"parts,omitempty"`
	Separator string        `json:"separator,omitempty"`
}

// ToType discriminates the output variant of a step.
type ToType string

const (
	ToFormat ToType = "format"
	ToEntity ToType = "entity"
)

// WriteMode controls how an entity sink applies records.
type WriteMode string

const (
	WriteCreate WriteMode = "create" // clear existing entities of the type, insert fresh
	WriteUpdate WriteMode = "update" // upsert by key field
)

// ToDef declares where a step's normalized output goes.
// Format targets a file (csv/json) or an API endpoint; Entity targets
// an entity type in the store. Only the final step's sink is written;
// intermediate ToDefs reshape the accumulated context.
type ToDef struct {
	Type     ToType    `json:"type"`
	Target   string    `json:"target,omitempty"` // "api" | "file"
	Path     string    `json:"path,omitempty"`   // file path or endpoint URL
	Format   string    `json:"format,omitempty"` // "csv" | "json"
	Entity   string    `json:"entity,omitempty"`
	Mode     WriteMode `json:"mode,omitempty"`
	KeyField string    `json:"keyField,omitempty"` // upsert key for update mode
	Mapping  Mapping   `json:"mapping"`
}

// StepDefinition is one From → Transform → To unit. Immutable
// configuration, authored once and replayed per input record.
type StepDefinition struct {
	From      FromDef   `json:"from"`
	Transform Transform `json:"transform"`
	To        ToDef     `json:"to"`
}

// Workflow is an ordered, non-empty chain of steps.
type Workflow struct {
	Steps []StepDefinition `json:"steps"`
}

// ── Stored job ─────────────────────────────────────────────
// A Job wraps a Workflow definition with trigger configuration and
// run bookkeeping; the storage layer persists it.

// Job is a stored workflow with its trigger and status metadata.
type Job struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Definition    Workflow  `json:"definition"`
	TriggerType   string    `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig string    `json:"triggerConfig"` // cron expression or watch path
	Enabled       bool      `json:"enabled"`
	LastRunAt     time.Time `json:"lastRunAt"`
	LastStatus    string    `json:"lastStatus"` // "success" | "partial" | "failed" | "running" | ""
	LastError     string    `json:"lastError"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RunLog is a historical record of one workflow run.
type RunLog struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	RowsFailed  int       `json:"rowsFailed"`
	Error       string    `json:"error,omitempty"`
}
