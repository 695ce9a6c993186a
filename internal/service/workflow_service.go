package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"masterdata/internal/domain"
	"masterdata/internal/storage"
	"masterdata/internal/workflow"
)

// ─────────────────────────────────────────────────────────────
// Workflow Service — business logic for workflow jobs
// ─────────────────────────────────────────────────────────────

// WorkflowService manages workflow jobs, scheduling, and file watching.
type WorkflowService struct {
	store       *storage.WorkflowStore
	entities    domain.EntityStore
	emitter     EventEmitter
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewWorkflowService creates a WorkflowService ready for use.
func NewWorkflowService(
	store *storage.WorkflowStore,
	entities domain.EntityStore,
	emitter EventEmitter,
) *WorkflowService {
	return &WorkflowService{
		store:    store,
		entities: entities,
		emitter:  emitter,
	}
}

// ── Job CRUD ───────────────────────────────────────────────

type CreateJobInput struct {
	Name          string            `json:"name"`
	Definition    workflow.Workflow `json:"definition"`
	TriggerType   string            `json:"triggerType"`
	TriggerConfig string            `json:"triggerConfig"`
	Enabled       bool              `json:"enabled"`
}

func (s *WorkflowService) CreateJob(ctx context.Context, input CreateJobInput) (*workflow.Job, error) {
	if errs := workflow.Validate(input.Definition); len(errs) > 0 {
		return nil, fmt.Errorf("invalid workflow: %w", errs[0])
	}

	job := &workflow.Job{
		Name:          input.Name,
		Definition:    input.Definition,
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if job.TriggerType == "" {
		job.TriggerType = "manual"
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	s.RestartWatchers(ctx)
	return job, nil
}

func (s *WorkflowService) GetJob(id string) (*workflow.Job, error) {
	return s.store.GetJob(id)
}

func (s *WorkflowService) ListJobs() ([]workflow.Job, error) {
	return s.store.ListJobs()
}

func (s *WorkflowService) UpdateJob(ctx context.Context, id string, input CreateJobInput) error {
	if errs := workflow.Validate(input.Definition); len(errs) > 0 {
		return fmt.Errorf("invalid workflow: %w", errs[0])
	}

	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	job.Name = input.Name
	job.Definition = input.Definition
	job.TriggerType = input.TriggerType
	job.TriggerConfig = input.TriggerConfig
	job.Enabled = input.Enabled

	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

func (s *WorkflowService) DeleteJob(ctx context.Context, id string) error {
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartWatchers(ctx)
	}
	return err
}

// ValidateWorkflow checks a definition without persisting it.
// Returns the error messages plus static warnings.
func (s *WorkflowService) ValidateWorkflow(wf workflow.Workflow) (errs []string, warnings []string) {
	for _, err := range workflow.Validate(wf) {
		errs = append(errs, err.Error())
	}
	return errs, workflow.Warnings(wf)
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single workflow job synchronously and emits
// events on completion.
func (s *WorkflowService) RunJob(ctx context.Context, id string) (*workflow.RunReport, error) {
	// Prevent concurrent execution of the same job.
	if !s.runningJobs.TryLock(id) {
		return nil, fmt.Errorf("workflow %s is already running", id)
	}
	defer s.runningJobs.Unlock(id)

	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	s.store.UpdateJobStatus(id, "running", "")

	sink := workflow.NewDestinationWriter(s.entities)
	engine := &workflow.Engine{
		Fetcher: workflow.SourceFetcher{},
		Sink:    sink,
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	report, runErr := engine.Run(runCtx, job.Definition)
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
		report.Status = workflow.StatusFailed
	}

	runLog := &workflow.RunLog{
		JobID:       id,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      string(report.Status),
		RowsRead:    report.RowsRead,
		RowsWritten: report.RowsWritten,
		RowsFailed:  report.RowsFailed,
	}
	if runErr != nil {
		runLog.Error = runErr.Error()
	}
	s.store.CreateRunLog(runLog)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	s.store.UpdateJobStatus(id, string(report.Status), errMsg)

	s.emitter.Emit(ctx, "workflow:run-completed", map[string]any{
		"workflowId": id,
		"status":     string(report.Status),
	})
	if report.RowsWritten > 0 {
		s.emitter.Emit(ctx, "entities:updated", map[string]string{"workflowId": id})
	}

	return report, runErr
}

// ListSources returns the available source descriptors.
func (s *WorkflowService) ListSources() []workflow.SourceSpec {
	return workflow.ListSources()
}

// ListRunLogs returns the last 50 run logs for a job.
func (s *WorkflowService) ListRunLogs(jobID string) ([]workflow.RunLog, error) {
	return s.store.ListRunLogs(jobID, 50)
}

// ── Preview / Schema Discovery ─────────────────────────────

// PreviewResult is the response from PreviewSource.
type PreviewResult struct {
	Schema  *workflow.Schema  `json:"schema"`
	Records []workflow.Record `json:"records"`
}

// PreviewSource reads up to limit records from a source without
// persisting anything.
func (s *WorkflowService) PreviewSource(ctx context.Context, sourceType string, cfg workflow.SourceConfig, limit int) (*PreviewResult, error) {
	source, err := workflow.GetSource(sourceType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	schema, err := source.Discover(previewCtx, cfg)
	if err != nil {
		return nil, err
	}

	recCh, errCh := source.Read(previewCtx, cfg)
	var records []workflow.Record
	for rec := range recCh {
		if len(records) < limit {
			records = append(records, rec)
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return &PreviewResult{Schema: schema, Records: records}, nil
}

func (s *WorkflowService) DiscoverSchema(ctx context.Context, sourceType string, cfg workflow.SourceConfig) (*workflow.Schema, error) {
	source, err := workflow.GetSource(sourceType)
	if err != nil {
		return nil, err
	}

	discCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return source.Discover(discCtx, cfg)
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them from scratch.
func (s *WorkflowService) RestartWatchers(ctx context.Context) {
	s.stopWatchers()

	jobs, err := s.store.ListEnabledScheduledJobs()
	if err != nil {
		log.Printf("workflow watcher: failed to list jobs: %v", err)
		return
	}

	// ── Cron jobs ──
	var cronJobs []struct {
		jobID string
		expr  string
	}
	for _, j := range jobs {
		if j.TriggerType == "schedule" && j.TriggerConfig != "" {
			cronJobs = append(cronJobs, struct {
				jobID string
				expr  string
			}{jobID: j.ID, expr: j.TriggerConfig})
		}
	}

	if len(cronJobs) > 0 {
		c := cron.New()
		for _, cj := range cronJobs {
			jid := cj.jobID
			_, err := c.AddFunc(cj.expr, func() {
				log.Printf("workflow cron: running job %s", jid)
				if _, err := s.RunJob(ctx, jid); err != nil {
					log.Printf("workflow cron: job %s failed: %v", jid, err)
				}
			})
			if err != nil {
				log.Printf("workflow cron: invalid expression %q for job %s: %v", cj.expr, cj.jobID, err)
			}
		}
		c.Start()
		s.cronSched = c
		log.Printf("workflow cron: scheduled %d job(s)", len(cronJobs))
	}

	// ── File watchers ──
	type watchEntry struct {
		jobID string
		path  string
	}
	var entries []watchEntry
	for _, j := range jobs {
		if j.TriggerType == "file_watch" && j.TriggerConfig != "" {
			entries = append(entries, watchEntry{jobID: j.ID, path: j.TriggerConfig})
		}
	}

	if len(entries) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("workflow watcher: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	watchedDirs := make(map[string]bool)
	for _, e := range entries {
		absPath, err := filepath.Abs(e.path)
		if err != nil {
			log.Printf("workflow watcher: bad path %q: %v", e.path, err)
			continue
		}
		pathToJob[absPath] = e.jobID

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("workflow watcher: failed to watch dir %q: %v", dir, err)
			} else {
				watchedDirs[dir] = true
			}
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobID, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				if t, exists := timers[jobID]; exists {
					t.Stop()
				}
				jid := jobID
				timers[jobID] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("workflow watcher: file changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(ctx, jid); err != nil {
						log.Printf("workflow watcher: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("workflow watcher: error: %v", err)
			}
		}
	}()

	log.Printf("workflow watcher: watching %d file(s)", len(pathToJob))
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *WorkflowService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *WorkflowService) Stop() {
	s.stopWatchers()
}

func (s *WorkflowService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
