package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

func TestMaintenanceRepositoryMaintainedShuttleIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT shuttle_id FROM maintenance_records WHERE status = 'OPEN'")).
		WillReturnRows(sqlmock.NewRows([]string{"shuttle_id"}).AddRow("v1").AddRow("v3"))

	ids, err := repo.MaintainedShuttleIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	_, ok := ids["v3"]
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryCreateAndClose(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectExec("INSERT INTO maintenance_records").
		WithArgs(sqlmock.AnyArg(), "v1", "brake pads", "OPEN", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.MaintenanceRecord{ShuttleID: "v1", Description: "brake pads", Status: models.MaintenanceStatusOpen}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.StartedAt.IsZero())

	mock.ExpectExec("UPDATE maintenance_records SET status = 'CLOSED'").
		WithArgs(record.ID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Close(context.Background(), record.ID, time.Now().UTC()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryHasOpenRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM maintenance_records WHERE shuttle_id = $1 AND status = 'OPEN'")).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	open, err := repo.HasOpenRecord(context.Background(), "v1")
	require.NoError(t, err)
	assert.True(t, open)
	assert.NoError(t, mock.ExpectationsWereMet())
}
