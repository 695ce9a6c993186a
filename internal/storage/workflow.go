package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"masterdata/internal/workflow"

	"github.com/google/uuid"
)

// WorkflowStore implements persistence for workflow jobs and run logs.
type WorkflowStore struct {
	db *DB
}

// NewWorkflowStore creates a new WorkflowStore.
func NewWorkflowStore(db *DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// ── Job CRUD ───────────────────────────────────────────────

func (s *WorkflowStore) CreateJob(job *workflow.Job) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	def, err := json.Marshal(job.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	_, err = s.db.conn.Exec(
		`INSERT INTO workflows (id, name, definition, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, string(def),
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *WorkflowStore) GetJob(id string) (*workflow.Job, error) {
	job := &workflow.Job{}
	var def string

	err := s.db.conn.QueryRow(
		`SELECT id, name, definition, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM workflows WHERE id = ?`, id,
	).Scan(
		&job.ID, &job.Name, &def,
		&job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&job.LastRunAt, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(def), &job.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return job, nil
}

func (s *WorkflowStore) UpdateJob(job *workflow.Job) error {
	job.UpdatedAt = time.Now()
	def, err := json.Marshal(job.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	_, err = s.db.conn.Exec(
		`UPDATE workflows SET name=?, definition=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, string(def),
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.UpdatedAt, job.ID,
	)
	return err
}

func (s *WorkflowStore) UpdateJobStatus(id, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`UPDATE workflows SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		time.Now(), status, errMsg, time.Now(), id,
	)
	return err
}

func (s *WorkflowStore) DeleteJob(id string) error {
	// Delete run logs first.
	if _, err := s.db.conn.Exec(`DELETE FROM workflow_run_logs WHERE workflow_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM workflows WHERE id = ?`, id)
	return err
}

func (s *WorkflowStore) ListJobs() ([]workflow.Job, error) {
	return s.queryJobs(
		`SELECT id, name, definition, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM workflows ORDER BY created_at ASC`,
	)
}

// ListEnabledScheduledJobs returns jobs that are enabled with a schedule or watch trigger.
func (s *WorkflowStore) ListEnabledScheduledJobs() ([]workflow.Job, error) {
	return s.queryJobs(
		`SELECT id, name, definition, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM workflows WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at ASC`,
	)
}

func (s *WorkflowStore) queryJobs(query string) ([]workflow.Job, error) {
	rows, err := s.db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []workflow.Job
	for rows.Next() {
		var job workflow.Job
		var def string
		if err := rows.Scan(
			&job.ID, &job.Name, &def,
			&job.TriggerType, &job.TriggerConfig, &job.Enabled,
			&job.LastRunAt, &job.LastStatus, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(def), &job.Definition); err != nil {
			return nil, fmt.Errorf("unmarshal definition for %s: %w", job.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Run Logs ───────────────────────────────────────────────

func (s *WorkflowStore) CreateRunLog(log *workflow.RunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO workflow_run_logs (id, workflow_id, started_at, finished_at, status, rows_read, rows_written, rows_failed, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt, log.FinishedAt, log.Status,
		log.RowsRead, log.RowsWritten, log.RowsFailed, log.Error,
	)
	return err
}

func (s *WorkflowStore) ListRunLogs(jobID string, limit int) ([]workflow.RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, workflow_id, started_at, finished_at, status, rows_read, rows_written, rows_failed, error
		 FROM workflow_run_logs WHERE workflow_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []workflow.RunLog
	for rows.Next() {
		var l workflow.RunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status,
			&l.RowsRead, &l.RowsWritten, &l.RowsFailed, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
