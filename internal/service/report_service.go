package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/dto"
	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/internal/repository"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
	"github.com/fleetcircle/shuttle-ops-api/pkg/jobs"
)

type jobRecordStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	RequeueStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type queueDispatcher interface {
	Enqueue(job jobs.Job) error
}

type resultRenderer interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportServiceConfig tunes retry limits and result retention.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	StaleAfter      time.Duration
	MaxRetries      int
}

// ReportDownload carries an opened export file plus its metadata.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// ReportService orchestrates asynchronous report job lifecycle management.
type ReportService struct {
	repo     jobRecordStore
	queue    queueDispatcher
	exporter *ExportService
	logger   *zap.SugaredLogger
	cfg      ReportServiceConfig
}

// NewReportService wires the job store, queue and exporter together.
func NewReportService(repo jobRecordStore, queue queueDispatcher, exporter *ExportService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ReportService{
		repo:     repo,
		queue:    queue,
		exporter: exporter,
		logger:   logger.Sugar(),
		cfg:      cfg,
	}
}

// statusPatch builds an update that moves a job into the given state.
// Terminal states also stamp finished_at.
func statusPatch(status models.ReportStatus, progress int, errMsg *string) repository.UpdateReportJobParams {
	patch := repository.UpdateReportJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: errMsg,
	}
	if status == models.ReportStatusFinished || status == models.ReportStatusFailed {
		now := time.Now().UTC()
		patch.FinishedAt = &now
	}
	return patch
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actorID string, role models.UserRole) (*dto.ReportJobResponse, error) {
	if err := s.validateRequest(req, role); err != nil {
		return nil, err
	}

	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{Date: req.Date, ShuttleID: req.ShuttleID, CompanyID: req.CompanyID, Format: req.Format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, wrapInternal(err, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		msg := "failed to enqueue job"
		_ = s.repo.Update(ctx, job.ID, statusPatch(models.ReportStatusFailed, 100, &msg))
		return nil, wrapInternal(err, "failed to enqueue report job")
	}

	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients. Non-admin callers may only see
// jobs they created.
func (s *ReportService) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ReportStatusResponse, error) {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}

	resp := &dto.ReportStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}

	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, wrapInternal(err, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, wrapInternal(err, "failed to load report job")
	}
	return job, nil
}

// RecoverPendingJobs requeues queued jobs and flips stale processing jobs
// back to queued, e.g. after a process restart mid-generation.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.StaleAfter)
	if n, err := s.repo.RequeueStaleProcessing(ctx, cutoff); err != nil {
		s.logger.Warnw("failed to requeue stale processing jobs", "error", err)
	} else if n > 0 {
		s.logger.Infow("requeued stale processing jobs", "count", n)
	}

	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warnw("failed to recover queued report jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ReportService) cleanupExpired(ctx context.Context) {
	const batchSize = 100
	cutoff := time.Now().Add(-s.cfg.ResultTTL)

	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, batchSize)
		if err != nil {
			s.logger.Warnw("cleanup list failed", "error", err)
			return
		}
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			token := lastPathSegment(*job.ResultURL)
			if token == "" {
				continue
			}
			// Expired tokens still parse here so stale files get removed.
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(relPath); err != nil {
				s.logger.Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(expired) < batchSize {
			break
		}
	}

	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ReportService) validateRequest(req dto.ReportRequest, role models.UserRole) error {
	if role == models.RoleDriver {
		return appErrors.ErrForbidden
	}

	switch req.Type {
	case models.ReportTypeScheduleManifest, models.ReportTypeMaintenanceHistory, models.ReportTypeDriverRoster:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	if req.Format != models.ReportFormatCSV && req.Format != models.ReportFormatPDF {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}

	if req.Type == models.ReportTypeScheduleManifest {
		if req.Date == "" {
			return appErrors.Clone(appErrors.ErrValidation, "date is required for schedule manifests")
		}
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
		}
	}
	return nil
}

func lastPathSegment(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to the export generator.
type ReportWorker struct {
	repo       jobRecordStore
	exporter   resultRenderer
	logger     *zap.SugaredLogger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo jobRecordStore, exporter resultRenderer, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger.Sugar(),
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job. Failures requeue the job until the attempt
// budget is spent, then mark it failed.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		w.recordFailure(ctx, job, err)
		return err
	}

	cleared := ""
	patch := statusPatch(models.ReportStatusFinished, 100, &cleared)
	patch.ResultURL = &result.URL
	if err := w.repo.Update(ctx, job.ID, patch); err != nil {
		w.logger.Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}

// recordFailure marks the job failed once retries are spent, otherwise
// puts it back in the queue with the error preserved for inspection.
func (w *ReportWorker) recordFailure(ctx context.Context, job jobs.Job, cause error) {
	msg := cause.Error()
	patch := statusPatch(models.ReportStatusQueued, 0, &msg)
	if job.Attempt >= w.maxRetries {
		patch = statusPatch(models.ReportStatusFailed, 100, &msg)
	}
	if err := w.repo.Update(ctx, job.ID, patch); err != nil {
		w.logger.Warnw("failed to record job failure", "job_id", job.ID, "error", err)
	}
}
