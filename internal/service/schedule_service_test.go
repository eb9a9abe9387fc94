package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/conflict"
	"github.com/fleetcircle/shuttle-ops-api/internal/dto"
	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

type scheduleRepoStub struct {
	rows []models.Schedule
	// raceRow, when set, appears for the first time in the locked snapshot
	// handed to the recheck callback, simulating a concurrent writer that
	// committed between the pre-flight and the day lock.
	raceRow *models.Schedule
}

func (r *scheduleRepoStub) List(_ context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	return r.rows, len(r.rows), nil
}

func (r *scheduleRepoStub) FindByID(_ context.Context, id string) (*models.Schedule, error) {
	for i := range r.rows {
		if r.rows[i].ID == id {
			row := r.rows[i]
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *scheduleRepoStub) ListForDate(_ context.Context, date string) ([]models.Schedule, error) {
	return r.dayRows(date), nil
}

func (r *scheduleRepoStub) CreateChecked(_ context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if r.raceRow != nil {
		r.rows = append(r.rows, *r.raceRow)
		r.raceRow = nil
	}
	if recheck != nil {
		if err := recheck(r.dayRows(schedule.Date)); err != nil {
			return err
		}
	}
	r.rows = append(r.rows, *schedule)
	return nil
}

func (r *scheduleRepoStub) UpdateChecked(_ context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error {
	if recheck != nil {
		if err := recheck(r.dayRows(schedule.Date)); err != nil {
			return err
		}
	}
	for i := range r.rows {
		if r.rows[i].ID == schedule.ID {
			r.rows[i] = *schedule
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *scheduleRepoStub) SetStatus(_ context.Context, id string, status models.ScheduleStatus) error {
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *scheduleRepoStub) Delete(_ context.Context, id string) error {
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *scheduleRepoStub) dayRows(date string) []models.Schedule {
	var out []models.Schedule
	for _, row := range r.rows {
		if row.Date == date {
			out = append(out, row)
		}
	}
	return out
}

type fleetLookupStub struct {
	drivers  map[string]*models.Driver
	shuttles map[string]*models.Shuttle
	routes   map[string]*models.Route
}

func (f *fleetLookupStub) driverLookup() scheduleDriverLookup   { return driverLookupStub{f} }
func (f *fleetLookupStub) shuttleLookup() scheduleShuttleLookup { return shuttleLookupStub{f} }
func (f *fleetLookupStub) routeLookup() scheduleRouteLookup     { return routeLookupStub{f} }

type driverLookupStub struct{ f *fleetLookupStub }

func (s driverLookupStub) FindByID(_ context.Context, id string) (*models.Driver, error) {
	if d, ok := s.f.drivers[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type shuttleLookupStub struct{ f *fleetLookupStub }

func (s shuttleLookupStub) FindByID(_ context.Context, id string) (*models.Shuttle, error) {
	if v, ok := s.f.shuttles[id]; ok {
		return v, nil
	}
	return nil, sql.ErrNoRows
}

type routeLookupStub struct{ f *fleetLookupStub }

func (s routeLookupStub) FindByID(_ context.Context, id string) (*models.Route, error) {
	if r, ok := s.f.routes[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

type auditStub struct {
	entries []models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.entries = append(a.entries, *log)
	return nil
}

type noMaintenanceStub struct{}

func (noMaintenanceStub) MaintainedShuttleIDs(context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

type emptyDriverPoolStub struct{}

func (emptyDriverPoolStub) ListActiveDrivers(context.Context) ([]models.Driver, error) {
	return nil, nil
}

type emptyShuttlePoolStub struct{}

func (emptyShuttlePoolStub) ListActiveShuttles(context.Context) ([]models.Shuttle, error) {
	return nil, nil
}

func newScheduleTestService(repo *scheduleRepoStub) (*ScheduleService, *fleetLookupStub, *auditStub) {
	lookups := &fleetLookupStub{
		drivers: map[string]*models.Driver{
			"d1": {ID: "d1", FullName: "Alex Mercer", Active: true},
			"d2": {ID: "d2", FullName: "Robin Vale", Active: true},
		},
		shuttles: map[string]*models.Shuttle{
			"v1": {ID: "v1", PlateNumber: "FLT-101", Status: models.ShuttleStatusActive},
			"v2": {ID: "v2", PlateNumber: "FLT-102", Status: models.ShuttleStatusUnderMaintenance},
		},
		routes: map[string]*models.Route{
			"r1": {ID: "r1", Name: "Airport Express", Active: true},
		},
	}
	audit := &auditStub{}
	resolver := conflict.NewResolver(repo, noMaintenanceStub{}, emptyDriverPoolStub{}, emptyShuttlePoolStub{}, conflict.Config{})
	svc := NewScheduleService(repo, lookups.driverLookup(), lookups.shuttleLookup(), lookups.routeLookup(), audit, resolver, nil, nil, nil, nil)
	return svc, lookups, audit
}

func TestScheduleCreatePersistsAndAudits(t *testing.T) {
	repo := &scheduleRepoStub{}
	svc, _, audit := newScheduleTestService(repo)

	created, details, err := svc.Create(context.Background(), Actor{ID: "u1"}, CreateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		RouteID:   "r1",
		Date:      "2026-09-01",
		Time:      "08:00",
	})
	require.NoError(t, err)
	require.Empty(t, details)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.ScheduleStatusActive, created.Status)
	require.Len(t, repo.rows, 1)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduleCreate, audit.entries[0].Action)
}

func TestScheduleCreateRejectsConflictWithDetails(t *testing.T) {
	repo := &scheduleRepoStub{rows: []models.Schedule{
		{ID: "s1", DriverID: "d1", ShuttleID: "v9", Date: "2026-09-01", Time: "08:15", Status: models.ScheduleStatusActive},
	}}
	svc, _, audit := newScheduleTestService(repo)

	created, details, err := svc.Create(context.Background(), Actor{ID: "u1"}, CreateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		RouteID:   "r1",
		Date:      "2026-09-01",
		Time:      "08:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, created)
	require.Len(t, details, 1)
	assert.Equal(t, conflict.KindDriver, details[0].Kind)
	assert.Equal(t, "s1", details[0].ScheduleID)
	assert.Len(t, repo.rows, 1)
	assert.Empty(t, audit.entries)
}

func TestScheduleCreateCatchesRaceAtRecheck(t *testing.T) {
	repo := &scheduleRepoStub{raceRow: &models.Schedule{
		ID: "sx", DriverID: "d1", ShuttleID: "v9", Date: "2026-09-01", Time: "08:10", Status: models.ScheduleStatusActive,
	}}
	svc, _, _ := newScheduleTestService(repo)

	created, details, err := svc.Create(context.Background(), Actor{ID: "u1"}, CreateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		RouteID:   "r1",
		Date:      "2026-09-01",
		Time:      "08:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, created)
	require.NotEmpty(t, details)
	assert.Equal(t, "sx", details[0].ScheduleID)
	// Only the concurrent writer's row made it in.
	assert.Len(t, repo.rows, 1)
}

func TestScheduleUpdateExcludesOwnRow(t *testing.T) {
	repo := &scheduleRepoStub{rows: []models.Schedule{
		{ID: "s1", DriverID: "d1", ShuttleID: "v1", RouteID: "r1", Date: "2026-09-01", Time: "08:00", Status: models.ScheduleStatusActive},
	}}
	svc, _, audit := newScheduleTestService(repo)

	updated, details, err := svc.Update(context.Background(), Actor{ID: "u1"}, "s1", UpdateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		RouteID:   "r1",
		Date:      "2026-09-01",
		Time:      "08:15",
	})
	require.NoError(t, err)
	require.Empty(t, details)
	require.NotNil(t, updated)
	assert.Equal(t, "08:15", updated.Time)
	assert.Equal(t, "08:15", repo.rows[0].Time)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduleUpdate, audit.entries[0].Action)
}

func TestScheduleCreateRefusesMaintainedShuttle(t *testing.T) {
	repo := &scheduleRepoStub{}
	svc, _, _ := newScheduleTestService(repo)

	_, _, err := svc.Create(context.Background(), Actor{ID: "u1"}, CreateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v2",
		RouteID:   "r1",
		Date:      "2026-09-01",
		Time:      "08:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnderMaintenance.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.rows)
}

func TestScheduleReactivationRunsConflictCheck(t *testing.T) {
	repo := &scheduleRepoStub{rows: []models.Schedule{
		{ID: "s1", DriverID: "d1", ShuttleID: "v1", RouteID: "r1", Date: "2026-09-01", Time: "08:00", Status: models.ScheduleStatusInactive},
		{ID: "s2", DriverID: "d1", ShuttleID: "v9", RouteID: "r1", Date: "2026-09-01", Time: "08:20", Status: models.ScheduleStatusActive},
	}}
	svc, _, _ := newScheduleTestService(repo)

	_, err := svc.SetStatus(context.Background(), Actor{ID: "u1"}, "s1", models.ScheduleStatusActive)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.ScheduleStatusInactive, repo.rows[0].Status)
}

func TestScheduleCheckConflictReportsClean(t *testing.T) {
	repo := &scheduleRepoStub{rows: []models.Schedule{
		{ID: "s1", DriverID: "d2", ShuttleID: "v9", Date: "2026-09-01", Time: "12:00", Status: models.ScheduleStatusActive},
	}}
	svc, _, _ := newScheduleTestService(repo)

	resp, err := svc.CheckConflict(context.Background(), dto.ConflictCheckRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		Date:      "2026-09-01",
		Time:      "08:00",
	})
	require.NoError(t, err)
	assert.False(t, resp.HasConflict)
	assert.NotNil(t, resp.Details)
	assert.Empty(t, resp.Details)
}

func TestScheduleDeleteRemovesAndAudits(t *testing.T) {
	repo := &scheduleRepoStub{rows: []models.Schedule{
		{ID: "s1", DriverID: "d1", ShuttleID: "v1", RouteID: "r1", Date: "2026-09-01", Time: "08:00", Status: models.ScheduleStatusActive},
	}}
	svc, _, audit := newScheduleTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), Actor{ID: "u1"}, "s1"))
	assert.Empty(t, repo.rows)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionScheduleDelete, audit.entries[0].Action)
}
