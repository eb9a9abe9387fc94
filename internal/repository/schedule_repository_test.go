package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "driver_id", "shuttle_id", "route_id", "client_id", "date", "time", "status", "notes", "created_at", "updated_at"})
}

func TestScheduleRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("s1", "d1", "v1", "r1", nil, "2024-06-01", "08:00", "ACTIVE", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, driver_id, shuttle_id, route_id, client_id, date, time, status, notes, created_at, updated_at FROM schedules WHERE 1=1 AND date = $1 ORDER BY date ASC, time ASC LIMIT 20 OFFSET 0")).
		WithArgs("2024-06-01").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules WHERE 1=1 AND date = $1")).
		WithArgs("2024-06-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ScheduleFilter{Date: "2024-06-01"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListForDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("s1", "d1", "v1", "r1", nil, "2024-06-01", "08:00", "ACTIVE", nil, time.Now(), time.Now()).
		AddRow("s2", "d2", "v2", "r1", nil, "2024-06-01", "09:30", "ACTIVE", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, driver_id, shuttle_id, route_id, client_id, date, time, status, notes, created_at, updated_at FROM schedules WHERE date = $1 ORDER BY time ASC")).
		WithArgs("2024-06-01").
		WillReturnRows(rows)

	list, err := repo.ListForDate(context.Background(), "2024-06-01")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "08:00", list[0].Time)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateCheckedCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM schedules WHERE date = \\$1 ORDER BY time ASC FOR UPDATE").
		WithArgs("2024-06-01").
		WillReturnRows(scheduleRows())
	mock.ExpectExec("INSERT INTO schedules").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var rechecked bool
	sched := &models.Schedule{DriverID: "d1", ShuttleID: "v1", RouteID: "r1", Date: "2024-06-01", Time: "08:00", Status: models.ScheduleStatusActive}
	err := repo.CreateChecked(context.Background(), sched, func(rows []models.Schedule) error {
		rechecked = true
		assert.Empty(t, rows)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, rechecked)
	assert.NotEmpty(t, sched.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateCheckedRollsBackOnRecheckFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM schedules WHERE date = \\$1 ORDER BY time ASC FOR UPDATE").
		WithArgs("2024-06-01").
		WillReturnRows(scheduleRows().
			AddRow("s1", "d1", "v1", "r1", nil, "2024-06-01", "08:00", "ACTIVE", nil, time.Now(), time.Now()))
	mock.ExpectRollback()

	conflict := errors.New("assignment no longer free")
	sched := &models.Schedule{DriverID: "d1", ShuttleID: "v2", RouteID: "r1", Date: "2024-06-01", Time: "08:10", Status: models.ScheduleStatusActive}
	err := repo.CreateChecked(context.Background(), sched, func(rows []models.Schedule) error {
		require.Len(t, rows, 1)
		return conflict
	})
	require.ErrorIs(t, err, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdateCheckedCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM schedules WHERE date = \\$1 ORDER BY time ASC FOR UPDATE").
		WithArgs("2024-06-01").
		WillReturnRows(scheduleRows())
	mock.ExpectExec("UPDATE schedules SET").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sched := &models.Schedule{ID: "s1", DriverID: "d1", ShuttleID: "v1", RouteID: "r1", Date: "2024-06-01", Time: "09:00", Status: models.ScheduleStatusActive}
	err := repo.UpdateChecked(context.Background(), sched, func([]models.Schedule) error { return nil })
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
