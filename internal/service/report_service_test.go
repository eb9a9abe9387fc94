package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/dto"
	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/internal/repository"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
	"github.com/fleetcircle/shuttle-ops-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (r *reportRepoStub) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(_ context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) RequeueStaleProcessing(_ context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *reportRepoStub) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exporterStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (e *exporterStub) Generate(_ context.Context, job *models.ReportJob) (*ExportResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestReportCreateJobEnqueues(t *testing.T) {
	repo := newReportRepoStub()
	queue := &queueStub{}
	svc := NewReportService(repo, queue, nil, nil, ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeScheduleManifest,
		Date:   "2026-09-01",
		Format: models.ReportFormatCSV,
	}, "u1", models.RoleDispatcher)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Equal(t, 0, resp.Progress)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].ID)
}

func TestReportCreateJobRejectsDrivers(t *testing.T) {
	svc := NewReportService(newReportRepoStub(), &queueStub{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeDriverRoster,
		Format: models.ReportFormatCSV,
	}, "u1", models.RoleDriver)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportCreateJobValidation(t *testing.T) {
	svc := NewReportService(newReportRepoStub(), &queueStub{}, nil, nil, ReportServiceConfig{})

	cases := []struct {
		name string
		req  dto.ReportRequest
	}{
		{"unknown type", dto.ReportRequest{Type: "fuel_usage", Format: models.ReportFormatCSV}},
		{"unknown format", dto.ReportRequest{Type: models.ReportTypeDriverRoster, Format: "xlsx"}},
		{"manifest without date", dto.ReportRequest{Type: models.ReportTypeScheduleManifest, Format: models.ReportFormatCSV}},
		{"manifest bad date", dto.ReportRequest{Type: models.ReportTypeScheduleManifest, Date: "01-09-2026", Format: models.ReportFormatCSV}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tc.req, "u1", models.RoleAdmin)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestReportCreateJobMarksFailedWhenEnqueueFails(t *testing.T) {
	repo := newReportRepoStub()
	queue := &queueStub{err: errors.New("queue full")}
	svc := NewReportService(repo, queue, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeDriverRoster,
		Format: models.ReportFormatPDF,
	}, "u1", models.RoleAdmin)
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		require.NotNil(t, job.FinishedAt)
	}
}

func TestReportGetStatusEnforcesOwnership(t *testing.T) {
	repo := newReportRepoStub()
	job := &models.ReportJob{Type: models.ReportTypeDriverRoster, Status: models.ReportStatusQueued, CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), job))
	svc := NewReportService(repo, &queueStub{}, nil, nil, ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), job.ID, "u2", models.RoleDispatcher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	resp, err := svc.GetStatus(context.Background(), job.ID, "u2", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, job.ID, resp.ID)
}

func TestReportWorkerFinishesJob(t *testing.T) {
	repo := newReportRepoStub()
	job := &models.ReportJob{Type: models.ReportTypeDriverRoster, Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	require.NoError(t, repo.Create(context.Background(), job))

	exporter := &exporterStub{result: &ExportResult{URL: "/api/v1/export/tok123", Format: models.ReportFormatCSV}}
	worker := NewReportWorker(repo, exporter, 3, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))
	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/export/tok123", *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerRequeuesUntilRetriesExhausted(t *testing.T) {
	repo := newReportRepoStub()
	job := &models.ReportJob{Type: models.ReportTypeDriverRoster, Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	require.NoError(t, repo.Create(context.Background(), job))

	exporter := &exporterStub{err: errors.New("render blew up")}
	worker := NewReportWorker(repo, exporter, 2, nil)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))
	assert.Equal(t, models.ReportStatusQueued, repo.jobs[job.ID].Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2}))
	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render blew up", *stored.ErrorMessage)
	assert.Equal(t, 2, exporter.calls)
}
