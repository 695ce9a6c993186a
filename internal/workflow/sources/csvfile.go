package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"masterdata/internal/workflow"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads records from a local CSV file.

type csvFileSource struct{}

func init() { workflow.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() workflow.SourceSpec {
	return workflow.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: []workflow.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path to the CSV file"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Required: false, Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: "hasHeader", Label: "Has Header", Type: "select", Required: false, Options: []string{"true", "false"}, Default: "true", Help: "Whether the first row contains column names"},
		},
	}
}

func (s *csvFileSource) Discover(ctx context.Context, cfg workflow.SourceConfig) (*workflow.Schema, error) {
	headers, _, err := readCSVFile(cfg)
	if err != nil {
		return nil, err
	}

	schema := &workflow.Schema{Fields: make([]workflow.Field, len(headers))}
	for i, h := range headers {
		schema.Fields[i] = workflow.Field{Name: h, Type: "text"}
	}
	return schema, nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg workflow.SourceConfig) (<-chan workflow.Record, <-chan error) {
	out := make(chan workflow.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		headers, rows, err := readCSVFile(cfg)
		if err != nil {
			errCh <- err
			return
		}

		for _, row := range rows {
			rec := make(workflow.Record, len(headers))
			for j, h := range headers {
				if j < len(row) {
					rec[h] = inferCSVValue(row[j])
				}
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func readCSVFile(cfg workflow.SourceConfig) ([]string, [][]string, error) {
	filePath, _ := cfg["filePath"].(string)
	if filePath == "" {
		return nil, nil, fmt.Errorf("filePath is required")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	if delim, ok := cfg["delimiter"].(string); ok && len(delim) > 0 {
		reader.Comma = rune(delim[0])
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv file")
	}

	hasHeader := true
	if h, ok := cfg["hasHeader"].(string); ok {
		hasHeader = strings.ToLower(h) != "false"
	}

	var headers []string
	var rows [][]string
	if hasHeader {
		headers = records[0]
		rows = records[1:]
	} else {
		// Generate column names: col_1, col_2, ...
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		rows = records
	}

	return headers, rows, nil
}

// inferCSVValue tries to parse a cell as a number or bool.
func inferCSVValue(s string) workflow.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return workflow.Null()
	}

	// ParseFloat also accepts Inf, NaN, hex forms, and digit
	// underscores; cells like that stay strings.
	if !strings.ContainsAny(s, "xXnNiI_") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return workflow.Number(f)
		}
	}

	switch strings.ToLower(s) {
	case "true", "yes":
		return workflow.Bool(true)
	case "false", "no":
		return workflow.Bool(false)
	}

	return workflow.String(s)
}
