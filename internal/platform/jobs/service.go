package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	JobPayrollRun = "payroll_run"

	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrQueueFull = errors.New("job queue full")

type RunFunc func(context.Context) (any, error)

// RunStore records job lifecycle rows.
type RunStore interface {
	CreateRun(ctx context.Context, tenantID, jobType, status string) (string, error)
	UpdateRun(ctx context.Context, runID, status string, detailsJSON []byte) error
}

type Service struct {
	store   RunStore
	queue   chan job
	workers int
	wg      sync.WaitGroup
}

type job struct {
	ID       string
	Type     string
	TenantID string
	Run      RunFunc
}

func New(store RunStore, workers, depth int) *Service {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = 128
	}
	return &Service{store: store, queue: make(chan job, depth), workers: workers}
}

func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}
}

// Wait blocks until every worker has exited after the Start context ends.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Enqueue records a queued run and hands it to a worker. The returned ID
// identifies the row in job_runs.
func (s *Service) Enqueue(ctx context.Context, jobType, tenantID string, run RunFunc) (string, error) {
	runID, err := s.store.CreateRun(ctx, tenantID, jobType, StatusQueued)
	if err != nil {
		return "", err
	}
	select {
	case s.queue <- job{ID: runID, Type: jobType, TenantID: tenantID, Run: run}:
		return runID, nil
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		s.finish(context.WithoutCancel(ctx), runID, StatusFailed, map[string]any{"error": ErrQueueFull.Error()})
		return "", ErrQueueFull
	}
}

// RunNow executes run on the caller's goroutine while still recording the run.
func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run RunFunc) (any, error) {
	runID, err := s.store.CreateRun(ctx, tenantID, jobType, StatusRunning)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
	}
	return s.execute(ctx, job{ID: runID, Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if err := s.store.UpdateRun(ctx, j.ID, StatusRunning, nil); err != nil {
				slog.Warn("job run update failed", "runId", j.ID, "err", err)
			}
			if _, err := s.execute(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "runId", j.ID, "err", err)
			}
		}
	}
}

func (s *Service) execute(ctx context.Context, j job) (any, error) {
	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		if details == nil {
			details = map[string]any{"error": err.Error()}
		}
	}
	s.finish(ctx, j.ID, status, details)
	return details, err
}

func (s *Service) finish(ctx context.Context, runID, status string, details any) {
	if runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "err", err)
		detailsJSON = []byte("{}")
	}
	if err := s.store.UpdateRun(ctx, runID, status, detailsJSON); err != nil {
		slog.Warn("job run update failed", "runId", runID, "err", err)
	}
}

type PGRunStore struct {
	DB *pgxpool.Pool
}

func NewPGRunStore(db *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{DB: db}
}

func (s *PGRunStore) CreateRun(ctx context.Context, tenantID, jobType, status string) (string, error) {
	var runID string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, tenantID, jobType, status).Scan(&runID)
	return runID, err
}

func (s *PGRunStore) UpdateRun(ctx context.Context, runID, status string, detailsJSON []byte) error {
	if detailsJSON == nil {
		_, err := s.DB.Exec(ctx, `UPDATE job_runs SET status = $1, started_at = now() WHERE id = $2`, status, runID)
		return err
	}
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID)
	return err
}
