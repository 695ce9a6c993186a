package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"masterdata/internal/workflow"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches data from a REST API endpoint.

type httpSource struct{}

func init() { workflow.RegisterSource(&httpSource{}) }

func (s *httpSource) Spec() workflow.SourceSpec {
	return workflow.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: []workflow.ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Full URL to fetch (e.g., https://api.example.com/customers)"},
			{Key: "method", Label: "Method", Type: "select", Required: false, Options: []string{"GET", "POST"}, Default: "GET"},
			{Key: "headers", Label: "Headers", Type: "textarea", Required: false, Help: "JSON object of headers (e.g., {\"Authorization\": \"Bearer xxx\"})"},
			{Key: "body", Label: "Body", Type: "textarea", Required: false, Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array in the response (e.g., 'data.items')"},
		},
	}
}

func (s *httpSource) Discover(ctx context.Context, cfg workflow.SourceConfig) (*workflow.Schema, error) {
	records, err := fetchHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *httpSource) Read(ctx context.Context, cfg workflow.SourceConfig) (<-chan workflow.Record, <-chan error) {
	out := make(chan workflow.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := fetchHTTP(ctx, cfg)
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func fetchHTTP(ctx context.Context, cfg workflow.SourceConfig) ([]workflow.Record, error) {
	url, _ := cfg["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	method, _ := cfg["method"].(string)
	if method == "" {
		method = "GET"
	}

	var bodyReader io.Reader
	if body, ok := cfg["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if headersStr, ok := cfg["headers"].(string); ok && headersStr != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(headersStr), &headers); err == nil {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	dataPath, _ := cfg["dataPath"].(string)
	if dataPath != "" {
		raw = navigatePath(raw, dataPath)
	}

	return toRecords(raw), nil
}

// navigatePath walks a dot-separated path into nested maps.
func navigatePath(obj any, path string) any {
	parts := strings.Split(path, ".")
	current := obj
	for _, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			current = v[part]
		default:
			return nil
		}
	}
	return current
}

// toRecords converts a raw JSON value into a slice of Records.
func toRecords(raw any) []workflow.Record {
	switch v := raw.(type) {
	case []any:
		records := make([]workflow.Record, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, workflow.RecordFromAny(m))
			}
		}
		return records
	case map[string]any:
		// Single object → single record.
		return []workflow.Record{workflow.RecordFromAny(v)}
	default:
		return nil
	}
}

// inferSchema infers a Schema from a slice of Records.
func inferSchema(records []workflow.Record) *workflow.Schema {
	fieldSet := make(map[string]string) // name → type
	for _, rec := range records {
		for k, v := range rec {
			if _, exists := fieldSet[k]; !exists {
				fieldSet[k] = inferType(v)
			}
		}
	}

	schema := &workflow.Schema{}
	for name, typ := range fieldSet {
		schema.Fields = append(schema.Fields, workflow.Field{Name: name, Type: typ})
	}
	return schema
}

func inferType(v workflow.Value) string {
	switch v.Kind() {
	case workflow.KindNumber:
		return "number"
	case workflow.KindBool:
		return "boolean"
	default:
		return "text"
	}
}
