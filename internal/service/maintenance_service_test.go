package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

type maintenanceRepoStub struct {
	records map[string]*models.MaintenanceRecord
}

func newMaintenanceRepoStub() *maintenanceRepoStub {
	return &maintenanceRepoStub{records: map[string]*models.MaintenanceRecord{}}
}

func (r *maintenanceRepoStub) List(_ context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRecord, int, error) {
	var out []models.MaintenanceRecord
	for _, record := range r.records {
		out = append(out, *record)
	}
	return out, len(out), nil
}

func (r *maintenanceRepoStub) FindByID(_ context.Context, id string) (*models.MaintenanceRecord, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (r *maintenanceRepoStub) HasOpenRecord(_ context.Context, shuttleID string) (bool, error) {
	for _, record := range r.records {
		if record.ShuttleID == shuttleID && record.Status == models.MaintenanceStatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (r *maintenanceRepoStub) Create(_ context.Context, record *models.MaintenanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *maintenanceRepoStub) Update(_ context.Context, record *models.MaintenanceRecord) error {
	if _, ok := r.records[record.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *maintenanceRepoStub) Close(_ context.Context, id string, closedAt time.Time) error {
	record, ok := r.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.Status = models.MaintenanceStatusClosed
	record.ClosedAt = &closedAt
	return nil
}

type shuttleStatusStub struct {
	shuttles map[string]*models.Shuttle
}

func (s *shuttleStatusStub) FindByID(_ context.Context, id string) (*models.Shuttle, error) {
	shuttle, ok := s.shuttles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *shuttle
	return &copied, nil
}

func (s *shuttleStatusStub) UpdateStatus(_ context.Context, id string, status models.ShuttleStatus) error {
	shuttle, ok := s.shuttles[id]
	if !ok {
		return sql.ErrNoRows
	}
	shuttle.Status = status
	return nil
}

func newMaintenanceTestService() (*MaintenanceService, *maintenanceRepoStub, *shuttleStatusStub) {
	repo := newMaintenanceRepoStub()
	shuttles := &shuttleStatusStub{shuttles: map[string]*models.Shuttle{
		"v1": {ID: "v1", PlateNumber: "FLT-101", Status: models.ShuttleStatusActive},
		"v2": {ID: "v2", PlateNumber: "FLT-102", Status: models.ShuttleStatusRetired},
	}}
	return NewMaintenanceService(repo, shuttles, nil, nil), repo, shuttles
}

func TestMaintenanceOpenSidelinesShuttle(t *testing.T) {
	svc, repo, shuttles := newMaintenanceTestService()

	record, err := svc.Open(context.Background(), OpenMaintenanceRequest{
		ShuttleID:   "v1",
		Description: "brake pads",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceStatusOpen, record.Status)
	assert.Equal(t, models.ShuttleStatusUnderMaintenance, shuttles.shuttles["v1"].Status)
	assert.Len(t, repo.records, 1)
}

func TestMaintenanceOpenRejectsRetiredShuttle(t *testing.T) {
	svc, repo, _ := newMaintenanceTestService()

	_, err := svc.Open(context.Background(), OpenMaintenanceRequest{
		ShuttleID:   "v2",
		Description: "engine overhaul",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.records)
}

func TestMaintenanceCloseReactivatesWhenLastRecord(t *testing.T) {
	svc, _, shuttles := newMaintenanceTestService()

	record, err := svc.Open(context.Background(), OpenMaintenanceRequest{ShuttleID: "v1", Description: "oil change"})
	require.NoError(t, err)

	cost := 149.90
	closed, err := svc.Close(context.Background(), record.ID, CloseMaintenanceRequest{Cost: &cost})
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.Cost)
	assert.Equal(t, cost, *closed.Cost)
	assert.Equal(t, models.ShuttleStatusActive, shuttles.shuttles["v1"].Status)
}

func TestMaintenanceCloseKeepsShuttleSidelinedWhileOthersOpen(t *testing.T) {
	svc, _, shuttles := newMaintenanceTestService()

	first, err := svc.Open(context.Background(), OpenMaintenanceRequest{ShuttleID: "v1", Description: "tires"})
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), OpenMaintenanceRequest{ShuttleID: "v1", Description: "door sensor"})
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), first.ID, CloseMaintenanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ShuttleStatusUnderMaintenance, shuttles.shuttles["v1"].Status)
}

func TestMaintenanceCloseTwiceFails(t *testing.T) {
	svc, _, _ := newMaintenanceTestService()

	record, err := svc.Open(context.Background(), OpenMaintenanceRequest{ShuttleID: "v1", Description: "wipers"})
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), record.ID, CloseMaintenanceRequest{})
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), record.ID, CloseMaintenanceRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
