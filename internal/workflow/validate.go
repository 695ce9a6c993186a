package workflow

import "fmt"

// ── Validator ──────────────────────────────────────────────
// Static structural checks over a step list, run before any record is
// processed. A non-empty result aborts the whole run.

// Validate checks the workflow's step list for structural defects.
func Validate(wf Workflow) []error {
	var errs []error

	if len(wf.Steps) == 0 {
		errs = append(errs, &ValidationError{StepIndex: -1, Message: "workflow has no steps"})
		return errs
	}

	for i, step := range wf.Steps {
		switch step.From.Type {
		case FromFormat:
			if step.From.Source == "" {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: format source requires a source type", i)})
			}
		case FromEntity:
			if step.From.Entity == "" {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: entity source requires an entity type", i)})
			}
		case FromPreviousStep:
			if i == 0 {
				errs = append(errs, &ValidationError{StepIndex: 0,
					Message: "Step 0 cannot use PreviousStep source"})
			}
		default:
			errs = append(errs, &ValidationError{StepIndex: i,
				Message: fmt.Sprintf("Step %d: unknown source type %q", i, step.From.Type)})
		}

		switch step.Transform.Type {
		case TransformNone, "":
		case TransformCalculate:
			if step.Transform.Target == "" {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: calculate requires a target field", i)})
			}
			switch step.Transform.Op {
			case OpAdd, OpSubtract, OpMultiply, OpDivide:
			default:
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: unknown operator %q", i, step.Transform.Op)})
			}
			if step.Transform.Left == nil || step.Transform.Right == nil {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: calculate requires two operands", i)})
			}
		case TransformConcatenate:
			if step.Transform.Target == "" {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: concatenate requires a target field", i)})
			}
			if len(step.Transform.Parts) == 0 {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: concatenate requires at least one part", i)})
			}
		default:
			errs = append(errs, &ValidationError{StepIndex: i,
				Message: fmt.Sprintf("Step %d: unknown transform type %q", i, step.Transform.Type)})
		}

		switch step.To.Type {
		case ToFormat:
		case ToEntity:
			if step.To.Entity == "" {
				errs = append(errs, &ValidationError{StepIndex: i,
					Message: fmt.Sprintf("Step %d: entity sink requires an entity type", i)})
			}
		default:
			errs = append(errs, &ValidationError{StepIndex: i,
				Message: fmt.Sprintf("Step %d: unknown sink type %q", i, step.To.Type)})
		}
	}

	return errs
}

// Warnings flags transform field references that no earlier step can
// possibly produce from the static step graph alone. Availability also
// depends on runtime data (passthrough mappings expose fields the
// graph cannot see), so these never hard-fail — unresolvable
// references surface per record at execution time.
func Warnings(wf Workflow) []string {
	var warnings []string
	known := make(map[string]bool)
	// A passthrough mapping can expose any input field, so once one is
	// seen the static field set is open-ended.
	open := false

	for i, step := range wf.Steps {
		if step.From.Mapping.IsPassthrough() {
			open = true
		}
		stepKnown := make(map[string]bool, len(known))
		for f := range known {
			stepKnown[f] = true
		}
		for _, fm := range step.From.Mapping {
			stepKnown[fm.Target] = true
		}

		if !open {
			for _, op := range collectRefs(step.Transform) {
				if !stepKnown[op] {
					warnings = append(warnings,
						fmt.Sprintf("Step %d: field '%s' is not produced by any earlier step", i, op))
				}
			}
		}

		// Fields this step contributes to the accumulated context.
		if step.To.Mapping.IsPassthrough() {
			for f := range stepKnown {
				known[f] = true
			}
			if step.Transform.Target != "" {
				known[step.Transform.Target] = true
			}
		} else {
			for _, fm := range step.To.Mapping {
				known[fm.Target] = true
			}
		}
	}

	return warnings
}

func collectRefs(t Transform) []string {
	var refs []string
	add := func(op *Operand) {
		if op != nil && op.Field != "" {
			refs = append(refs, op.Field)
		}
	}
	switch t.Type {
	case TransformCalculate:
		add(t.Left)
		add(t.Right)
	case TransformConcatenate:
		for i := range t.Parts {
			add(&t.Parts[i])
		}
	}
	return refs
}
