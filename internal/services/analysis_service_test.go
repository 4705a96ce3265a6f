package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualagents/qualagents/internal/storage"
	"github.com/qualagents/qualagents/pkg/types"
)

// memJobStore is an in-memory JobStore.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*types.AnalysisJob
	err  error
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]*types.AnalysisJob)}
}

func (m *memJobStore) CreateJob(ctx context.Context, job *types.AnalysisJob) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memJobStore) GetJob(ctx context.Context, id string) (*types.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memJobStore) UpdateJobStatus(ctx context.Context, id string, status types.JobStatus, results *types.FinalReport, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return storage.ErrNotFound
	}
	job.Status = status
	if results != nil {
		job.Results = results
	}
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	if status.IsTerminal() {
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

func (m *memJobStore) ListJobs(ctx context.Context, projectID, limit int) ([]*types.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.AnalysisJob
	for _, job := range m.jobs {
		if job.ProjectID == projectID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeRunner struct {
	report *types.FinalReport
	err    error
	panics bool

	mu    sync.Mutex
	scope types.MemoryScope
	calls int
}

func (r *fakeRunner) Run(ctx context.Context, scope types.MemoryScope, input []types.TextItem, params types.AnalysisParameters) (*types.FinalReport, error) {
	r.mu.Lock()
	r.scope = scope
	r.calls++
	r.mu.Unlock()
	if r.panics {
		panic("runner exploded")
	}
	return r.report, r.err
}

// recordingListener captures the status sequence a job went through.
type recordingListener struct {
	mu       sync.Mutex
	statuses []types.JobStatus
}

func (l *recordingListener) JobUpdated(job *types.AnalysisJob) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, job.Status)
}

func (l *recordingListener) seen() []types.JobStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.JobStatus(nil), l.statuses...)
}

func submission() map[string]interface{} {
	return map[string]interface{}{"text": "interview transcript"}
}

func TestSubmitCompletes(t *testing.T) {
	store := newMemJobStore()
	runner := &fakeRunner{report: &types.FinalReport{Summary: "done"}}
	listener := &recordingListener{}

	svc := NewAnalysisService(store, runner)
	svc.AddListener(listener)

	job, err := svc.Submit(context.Background(), 7, 2, submission())
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, types.JobPending, job.Status)

	svc.Wait()

	final, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, final.Status)
	require.NotNil(t, final.Results)
	assert.Equal(t, "done", final.Results.Summary)
	assert.NotNil(t, final.CompletedAt)

	assert.Equal(t, []types.JobStatus{types.JobPending, types.JobInProgress, types.JobCompleted}, listener.seen())
	assert.Equal(t, types.MemoryScope{ProjectID: 7, AgentID: 2}, runner.scope)
}

func TestSubmitRunnerFailure(t *testing.T) {
	store := newMemJobStore()
	runner := &fakeRunner{err: errors.New("tool blew up")}
	svc := NewAnalysisService(store, runner)

	job, err := svc.Submit(context.Background(), 1, 0, submission())
	require.NoError(t, err)
	svc.Wait()

	final, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, final.Status)
	assert.Contains(t, final.Error, "tool blew up")
	assert.Nil(t, final.Results)
}

func TestSubmitRunnerPanic(t *testing.T) {
	store := newMemJobStore()
	runner := &fakeRunner{panics: true}
	svc := NewAnalysisService(store, runner)

	job, err := svc.Submit(context.Background(), 1, 0, submission())
	require.NoError(t, err)
	svc.Wait()

	final, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, final.Status)
	assert.Contains(t, final.Error, "internal error")
}

func TestSubmitValidation(t *testing.T) {
	svc := NewAnalysisService(newMemJobStore(), &fakeRunner{})

	_, err := svc.Submit(context.Background(), 0, 0, submission())
	assert.Error(t, err, "missing project id")

	_, err = svc.Submit(context.Background(), 1, 0, map[string]interface{}{"bogus": true})
	assert.Error(t, err, "unrecognized input shape")
}

func TestSubmitStoreFailure(t *testing.T) {
	store := newMemJobStore()
	store.err = errors.New("db down")
	runner := &fakeRunner{}
	svc := NewAnalysisService(store, runner)

	_, err := svc.Submit(context.Background(), 1, 0, submission())
	require.Error(t, err)
	svc.Wait()
	assert.Zero(t, runner.calls)
}
