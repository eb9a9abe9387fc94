package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/conflict"
	"github.com/fleetcircle/shuttle-ops-api/internal/dto"
	"github.com/fleetcircle/shuttle-ops-api/internal/middleware"
	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/internal/service"
)

type handlerScheduleRepo struct {
	rows   []models.Schedule
	nextID int
}

func (r *handlerScheduleRepo) List(_ context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	return r.rows, len(r.rows), nil
}

func (r *handlerScheduleRepo) FindByID(_ context.Context, id string) (*models.Schedule, error) {
	for i := range r.rows {
		if r.rows[i].ID == id {
			row := r.rows[i]
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *handlerScheduleRepo) ListForDate(_ context.Context, date string) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, row := range r.rows {
		if row.Date == date {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *handlerScheduleRepo) CreateChecked(_ context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error {
	if err := recheck(r.rows); err != nil {
		return err
	}
	r.nextID++
	schedule.ID = fmt.Sprintf("s%d", r.nextID)
	r.rows = append(r.rows, *schedule)
	return nil
}

func (r *handlerScheduleRepo) UpdateChecked(_ context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error {
	if err := recheck(r.rows); err != nil {
		return err
	}
	for i := range r.rows {
		if r.rows[i].ID == schedule.ID {
			r.rows[i] = *schedule
		}
	}
	return nil
}

func (r *handlerScheduleRepo) SetStatus(_ context.Context, id string, status models.ScheduleStatus) error {
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Status = status
		}
	}
	return nil
}

func (r *handlerScheduleRepo) Delete(_ context.Context, id string) error {
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type handlerDriverLookup struct{}

func (handlerDriverLookup) FindByID(_ context.Context, id string) (*models.Driver, error) {
	return &models.Driver{ID: id, FullName: "Driver " + id, Active: true}, nil
}

func (handlerDriverLookup) ListActiveDrivers(_ context.Context) ([]models.Driver, error) {
	return nil, nil
}

type handlerShuttleLookup struct{}

func (handlerShuttleLookup) FindByID(_ context.Context, id string) (*models.Shuttle, error) {
	return &models.Shuttle{ID: id, PlateNumber: "B-" + id, Status: models.ShuttleStatusActive}, nil
}

func (handlerShuttleLookup) ListActiveShuttles(_ context.Context) ([]models.Shuttle, error) {
	return nil, nil
}

type handlerRouteLookup struct{}

func (handlerRouteLookup) FindByID(_ context.Context, id string) (*models.Route, error) {
	return &models.Route{ID: id, Name: "Route " + id, Active: true}, nil
}

type handlerMaintenanceSource struct{}

func (handlerMaintenanceSource) MaintainedShuttleIDs(_ context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

type handlerAuditSink struct{}

func (handlerAuditSink) CreateAuditLog(_ context.Context, _ *models.AuditLog) error { return nil }

func newScheduleHandlerForTest(rows []models.Schedule) *ScheduleHandler {
	repo := &handlerScheduleRepo{rows: rows, nextID: len(rows)}
	resolver := conflict.NewResolver(repo, handlerMaintenanceSource{}, handlerDriverLookup{}, handlerShuttleLookup{}, conflict.Config{})
	svc := service.NewScheduleService(repo, handlerDriverLookup{}, handlerShuttleLookup{}, handlerRouteLookup{}, handlerAuditSink{}, resolver, nil, nil, nil, nil)
	return NewScheduleHandler(svc)
}

func withDispatcher(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "disp-1", Role: models.RoleDispatcher})
}

func TestScheduleHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	payload, _ := json.Marshal(service.CreateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		RouteID:   "r1",
		Date:      "2024-06-01",
		Time:      "08:00",
	})
	c, w := newGinContext(http.MethodPost, "/schedules", payload)
	withDispatcher(c)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestScheduleHandlerCreateConflictCarriesDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest([]models.Schedule{
		{ID: "s1", DriverID: "d1", ShuttleID: "v9", RouteID: "r1", Date: "2024-06-01", Time: "08:15", Status: models.ScheduleStatusActive},
	})

	payload, _ := json.Marshal(service.CreateScheduleRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		RouteID:   "r1",
		Date:      "2024-06-01",
		Time:      "08:00",
	})
	c, w := newGinContext(http.MethodPost, "/schedules", payload)
	withDispatcher(c)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Meta map[string]json.RawMessage `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	var details []conflict.Detail
	require.NoError(t, json.Unmarshal(body.Meta["conflicts"], &details))
	require.Len(t, details, 1)
	require.Equal(t, conflict.KindDriver, details[0].Kind)
	require.Equal(t, "s1", details[0].ScheduleID)
}

func TestScheduleHandlerCheckConflictClean(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	payload, _ := json.Marshal(dto.ConflictCheckRequest{
		DriverID:  "d1",
		ShuttleID: "v1",
		Date:      "2024-06-01",
		Time:      "09:00",
	})
	c, w := newGinContext(http.MethodPost, "/schedules/conflict-check", payload)

	handler.CheckConflict(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data dto.ConflictCheckResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Data.HasConflict)
	require.NotNil(t, body.Data.Details)
}

func TestScheduleHandlerCreateRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScheduleHandlerForTest(nil)

	c, w := newGinContext(http.MethodPost, "/schedules", []byte("{"))
	withDispatcher(c)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
