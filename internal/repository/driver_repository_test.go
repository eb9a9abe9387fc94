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

func TestDriverRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDriverRepository(db)

	rows := sqlmock.NewRows([]string{"id", "company_id", "email", "full_name", "phone", "license_number", "license_expiry", "active", "created_at", "updated_at"}).
		AddRow("d1", "c1", "ana@example.com", "Ana Ruiz", nil, "LIC-100", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, company_id, email, full_name, phone, license_number, license_expiry, active, created_at, updated_at FROM drivers WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM drivers WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.DriverFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverRepositoryListActiveDrivers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDriverRepository(db)

	rows := sqlmock.NewRows([]string{"id", "company_id", "email", "full_name", "phone", "license_number", "license_expiry", "active", "created_at", "updated_at"}).
		AddRow("d1", "c1", "ana@example.com", "Ana Ruiz", nil, "LIC-100", nil, true, time.Now(), time.Now()).
		AddRow("d2", "c1", "ben@example.com", "Ben Osei", nil, "LIC-101", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM drivers WHERE active = TRUE ORDER BY full_name ASC")).
		WillReturnRows(rows)

	list, err := repo.ListActiveDrivers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverRepositoryCreateAndDeactivate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDriverRepository(db)

	mock.ExpectExec("INSERT INTO drivers").
		WithArgs(sqlmock.AnyArg(), "c1", "ana@example.com", "Ana Ruiz", sqlmock.AnyArg(), "LIC-100", sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Driver{CompanyID: "c1", Email: "ana@example.com", FullName: "Ana Ruiz", LicenseNumber: "LIC-100", Active: true})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE drivers SET active = FALSE").
		WithArgs("d1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDriverRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM drivers WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "ana@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
