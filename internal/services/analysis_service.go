// Package services implements the application services between the HTTP
// layer and the domain packages. The analysis service owns the job
// lifecycle: submission, asynchronous execution, and status retrieval.
package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qualagents/qualagents/internal/agent"
	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// Runner executes one analysis over normalized input. The orchestrator
// satisfies it; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, scope types.MemoryScope, input []types.TextItem, params types.AnalysisParameters) (*types.FinalReport, error)
}

// StatusListener receives job status transitions. Notification is
// best-effort: a slow or absent listener never affects the run itself.
type StatusListener interface {
	JobUpdated(job *types.AnalysisJob)
}

// AnalysisService submits analysis jobs and tracks their lifecycle.
// Jobs run on background goroutines with their own context; cancelling
// the submitting request does not cancel the analysis.
type AnalysisService struct {
	jobs   storage.JobStore
	runner Runner

	mu        sync.RWMutex
	listeners []StatusListener
	running   sync.WaitGroup
}

// NewAnalysisService creates the analysis service.
func NewAnalysisService(jobs storage.JobStore, runner Runner) *AnalysisService {
	return &AnalysisService{jobs: jobs, runner: runner}
}

// AddListener registers a status listener for all subsequent transitions.
func (s *AnalysisService) AddListener(l StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Submit validates the submission, persists a pending job, and starts the
// analysis in the background. It returns the created job immediately.
func (s *AnalysisService) Submit(ctx context.Context, projectID, agentID int, data map[string]interface{}) (*types.AnalysisJob, error) {
	if projectID == 0 {
		return nil, fmt.Errorf("services: project id is required")
	}

	input, err := agent.ParseInput(data)
	if err != nil {
		return nil, err
	}
	params := agent.ParseParameters(data)

	job := &types.AnalysisJob{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		AgentID:   agentID,
		Data:      data,
		Status:    types.JobPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("services: failed to create job: %w", err)
	}
	s.notify(job)

	s.running.Add(1)
	go s.execute(job, input, params)

	return job, nil
}

// GetJob returns the job with the given ID.
func (s *AnalysisService) GetJob(ctx context.Context, id string) (*types.AnalysisJob, error) {
	return s.jobs.GetJob(ctx, id)
}

// ListJobs returns the most recent jobs for a project.
func (s *AnalysisService) ListJobs(ctx context.Context, projectID, limit int) ([]*types.AnalysisJob, error) {
	return s.jobs.ListJobs(ctx, projectID, limit)
}

// Wait blocks until all in-flight analyses finish. Used on shutdown and in
// tests.
func (s *AnalysisService) Wait() {
	s.running.Wait()
}

// execute drives one job from pending to a terminal status. It runs on its
// own goroutine with a background context so the job's lifecycle is
// decoupled from the submitting request.
func (s *AnalysisService) execute(job *types.AnalysisJob, input []types.TextItem, params types.AnalysisParameters) {
	defer s.running.Done()
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("services: job %s panicked: %v", job.ID, r)
			s.transition(ctx, job, types.JobFailed, nil, fmt.Sprintf("internal error: %v", r))
		}
	}()

	s.transition(ctx, job, types.JobInProgress, nil, "")

	scope := types.MemoryScope{ProjectID: job.ProjectID, AgentID: job.AgentID}
	report, err := s.runner.Run(ctx, scope, input, params)
	if err != nil {
		log.Printf("services: job %s failed: %v", job.ID, err)
		s.transition(ctx, job, types.JobFailed, nil, err.Error())
		return
	}

	s.transition(ctx, job, types.JobCompleted, report, "")
}

// transition persists a status change and notifies listeners. Persistence
// failures are logged; the in-memory job still reflects the transition so
// listeners see a consistent sequence.
func (s *AnalysisService) transition(ctx context.Context, job *types.AnalysisJob, status types.JobStatus, results *types.FinalReport, errMsg string) {
	if err := s.jobs.UpdateJobStatus(ctx, job.ID, status, results, errMsg); err != nil {
		log.Printf("services: failed to update job %s to %s: %v", job.ID, status, err)
	}

	job.Status = status
	job.Results = results
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	if status.IsTerminal() {
		now := time.Now()
		job.CompletedAt = &now
	}
	s.notify(job)
}

func (s *AnalysisService) notify(job *types.AnalysisJob) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, l := range listeners {
		l.JobUpdated(job)
	}
}
