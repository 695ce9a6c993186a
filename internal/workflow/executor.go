package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ── Step chain executor ────────────────────────────────────
// Runs From→Transform→To across the ordered step list, once per input
// record, carrying the accumulated context forward. I/O is owned by
// the Fetcher and Sink collaborators invoked at step boundaries; the
// chain evaluation itself is pure.

// Fetcher produces the finite record sequence for a step's from
// clause. Restartable per run: each Run fetches fresh.
type Fetcher interface {
	Fetch(ctx context.Context, from FromDef) ([]Record, error)
}

// Sink receives the final accumulated record of each chain.
type Sink interface {
	Write(ctx context.Context, to ToDef, rec Record) error
}

// RunStatus is the terminal state of a workflow run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial" // some rows failed, run completed
	StatusFailed  RunStatus = "failed"  // structural error, no rows written
)

// RowError records one failed input record. The message is the
// literal error string surfaced to the run log.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// RunReport is the outcome of one workflow run.
type RunReport struct {
	Status           RunStatus  `json:"status"`
	RowsRead         int        `json:"rowsRead"`
	RowsWritten      int        `json:"rowsWritten"`
	RowsFailed       int        `json:"rowsFailed"`
	Errors           []RowError `json:"errors,omitempty"`
	ValidationErrors []string   `json:"validationErrors,omitempty"`
}

// Engine executes workflows against a Fetcher and a Sink.
type Engine struct {
	Fetcher Fetcher
	Sink    Sink

	// Workers bounds the per-record evaluation pool. Records within a
	// run carry no shared mutable state, so they evaluate in parallel
	// with no ordering requirement between them. Defaults to 4.
	Workers int
}

// Run executes the workflow once: validates the step list, fetches
// every step's input sequence, evaluates the chain for each input
// record, and writes surviving records to the final step's sink.
// Row-scoped failures are collected into the report; structural
// failures abort with a nil-row report.
func (e *Engine) Run(ctx context.Context, wf Workflow) (*RunReport, error) {
	report := &RunReport{}

	if errs := Validate(wf); len(errs) > 0 {
		report.Status = StatusFailed
		for _, err := range errs {
			report.ValidationErrors = append(report.ValidationErrors, err.Error())
		}
		return report, errors.Join(errs...)
	}

	// Fetch each non-chained step's sequence once per run. Steps after
	// the first pair with the primary sequence by row ordinal.
	inputs := make([][]Record, len(wf.Steps))
	for i, step := range wf.Steps {
		if step.From.Type == FromPreviousStep {
			continue
		}
		recs, err := e.Fetcher.Fetch(ctx, step.From)
		if err != nil {
			report.Status = StatusFailed
			return report, fmt.Errorf("step %d: fetch: %w", i, err)
		}
		inputs[i] = recs
	}

	rows := len(inputs[0])
	report.RowsRead = rows
	lastTo := wf.Steps[len(wf.Steps)-1].To

	workers := e.Workers
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	cancelled := false
	for r := 0; r < rows; r++ {
		// Cancellation is cooperative and coarse-grained: checked
		// between records, never mid-chain.
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		g.Go(func() error {
			out, err := evaluateChain(wf, inputs, r)
			if err != nil {
				var unsupported *UnsupportedOperationError
				if errors.As(err, &unsupported) {
					// Broken definition, not broken data: fatal.
					return err
				}
				mu.Lock()
				report.Errors = append(report.Errors, RowError{Row: r, Message: err.Error()})
				mu.Unlock()
				return nil
			}
			if err := e.Sink.Write(gctx, lastTo, out); err != nil {
				mu.Lock()
				report.Errors = append(report.Errors, RowError{Row: r, Message: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.RowsWritten++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		report.Status = StatusFailed
		return report, err
	}

	sort.Slice(report.Errors, func(i, j int) bool { return report.Errors[i].Row < report.Errors[j].Row })
	report.RowsFailed = len(report.Errors)
	switch {
	case report.RowsFailed > 0:
		report.Status = StatusPartial
	default:
		report.Status = StatusSuccess
	}

	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// evaluateChain walks the full step list for one input record.
// Starting from an empty context, each step normalizes its raw record,
// evaluates its transform against the merged scope, applies its output
// mapping, and folds the result forward. The returned record is the
// final accumulated context.
func evaluateChain(wf Workflow, inputs [][]Record, row int) (Record, error) {
	context := Record{}

	for i, step := range wf.Steps {
		var raw Record
		if step.From.Type == FromPreviousStep {
			raw = context
		} else {
			seq := inputs[i]
			if row >= len(seq) {
				return nil, fmt.Errorf("Step %d: no input record at row %d", i, row)
			}
			raw = seq[row]
		}

		normalized, err := ApplyMapping(raw, step.From.Mapping)
		if err != nil {
			return nil, err
		}

		// The transform's field-resolution scope includes everything
		// accumulated so far plus this step's freshly mapped fields.
		scope := Merge(context, normalized)

		transformed, err := EvaluateTransform(i, step.Transform, scope)
		if err != nil {
			return nil, err
		}

		output, err := ApplyMapping(transformed, step.To.Mapping)
		if err != nil {
			return nil, err
		}

		context = Merge(context, output)
	}

	return context, nil
}
