package workflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"masterdata/internal/domain"
)

// ── Destination ────────────────────────────────────────────
// The Sink side of a workflow: entity store writes, file output, API
// posts. One DestinationWriter is created per run; Write is safe for
// concurrent use by the evaluation pool.

// DestinationWriter implements Sink over the entity store and the
// local filesystem / HTTP.
type DestinationWriter struct {
	Entities domain.EntityStore
	Client   *http.Client

	mu      sync.Mutex
	files   map[string]*formatFile
	cleared map[string]bool // entity types already cleared in create mode
}

// NewDestinationWriter creates a writer ready for one run.
func NewDestinationWriter(entities domain.EntityStore) *DestinationWriter {
	return &DestinationWriter{
		Entities: entities,
		Client:   &http.Client{Timeout: 30 * time.Second},
		files:    make(map[string]*formatFile),
		cleared:  make(map[string]bool),
	}
}

// Write routes a final accumulated record to the sink named by to.
func (w *DestinationWriter) Write(ctx context.Context, to ToDef, rec Record) error {
	switch to.Type {
	case ToEntity:
		return w.writeEntity(to, rec)
	case ToFormat:
		if to.Target == "api" {
			return w.writeAPI(ctx, to, rec)
		}
		return w.writeFile(to, rec)
	default:
		return &UnsupportedOperationError{What: fmt.Sprintf("sink type %q", to.Type)}
	}
}

// Close flushes and closes any open file outputs.
func (w *DestinationWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for path, f := range w.files {
		if err := f.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", path, err)
		}
		delete(w.files, path)
	}
	return firstErr
}

// ── Entity sink ────────────────────────────────────────────

func (w *DestinationWriter) writeEntity(to ToDef, rec Record) error {
	if w.Entities == nil {
		return fmt.Errorf("entity store not configured")
	}

	// Create mode replaces the type's records: clear once per run.
	if to.Mode == WriteCreate {
		w.mu.Lock()
		if !w.cleared[to.Entity] {
			if err := w.Entities.DeleteEntitiesByType(to.Entity); err != nil {
				w.mu.Unlock()
				return fmt.Errorf("clear entities: %w", err)
			}
			w.cleared[to.Entity] = true
		}
		w.mu.Unlock()
	}

	dataJSON, err := json.Marshal(rec.ToAny())
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}

	entity := &domain.Entity{
		ID:       uuid.New().String(),
		TypeName: to.Entity,
		DataJSON: string(dataJSON),
	}
	if to.KeyField != "" {
		if v, ok := rec[to.KeyField]; ok {
			key, err := ToString(to.KeyField, v)
			if err != nil {
				return err
			}
			entity.Key = key
		}
	}

	if to.Mode == WriteUpdate && entity.Key != "" {
		if err := w.Entities.UpsertEntityByKey(entity); err != nil {
			return fmt.Errorf("upsert entity: %w", err)
		}
		return nil
	}
	if err := w.Entities.CreateEntity(entity); err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

// ── API sink ───────────────────────────────────────────────

func (w *DestinationWriter) writeAPI(ctx context.Context, to ToDef, rec Record) error {
	body, err := json.Marshal(rec.ToAny())
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, to.Path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api sink: http %d", resp.StatusCode)
	}
	return nil
}

// ── File sink ──────────────────────────────────────────────
// CSV gets a header row derived from the first record's sorted field
// names; JSON output is one object per line.

type formatFile struct {
	f       *os.File
	csv     *csv.Writer
	headers []string
}

func (ff *formatFile) close() error {
	if ff.csv != nil {
		ff.csv.Flush()
		if err := ff.csv.Error(); err != nil {
			ff.f.Close()
			return err
		}
	}
	return ff.f.Close()
}

func (w *DestinationWriter) writeFile(to ToDef, rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ff, ok := w.files[to.Path]
	if !ok {
		if err := os.MkdirAll(filepath.Dir(to.Path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(to.Path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		ff = &formatFile{f: f}
		if to.Format == "csv" {
			ff.csv = csv.NewWriter(f)
			ff.headers = sortedFieldNames(rec)
			if err := ff.csv.Write(ff.headers); err != nil {
				return fmt.Errorf("write csv header: %w", err)
			}
		}
		w.files[to.Path] = ff
	}

	switch to.Format {
	case "csv":
		row := make([]string, len(ff.headers))
		for i, h := range ff.headers {
			v, ok := rec[h]
			if !ok || v.IsNull() {
				continue
			}
			s, err := ToString(h, v)
			if err != nil {
				return err
			}
			row[i] = s
		}
		if err := ff.csv.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		return nil
	case "json", "":
		line, err := json.Marshal(rec.ToAny())
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		line = append(line, '\n')
		if _, err := ff.f.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		return nil
	default:
		return &UnsupportedOperationError{What: fmt.Sprintf("output format %q", to.Format)}
	}
}

func sortedFieldNames(rec Record) []string {
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
