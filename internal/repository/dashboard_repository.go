package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

// DashboardRepository aggregates counters for the admin dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Overview collects fleet-wide counters for the given calendar date.
func (r *DashboardRepository) Overview(ctx context.Context, date string) (*models.FleetOverview, error) {
	overview := models.FleetOverview{GeneratedAt: time.Now().UTC()}

	shuttleRows := []struct {
		Status models.ShuttleStatus `db:"status"`
		Total  int                  `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &shuttleRows, `SELECT status, COUNT(*) AS total FROM shuttles GROUP BY status`); err != nil {
		return nil, fmt.Errorf("dashboard shuttle counts: %w", err)
	}
	for _, row := range shuttleRows {
		switch row.Status {
		case models.ShuttleStatusActive:
			overview.ActiveShuttles = row.Total
		case models.ShuttleStatusUnderMaintenance:
			overview.ShuttlesInWorkshop = row.Total
		case models.ShuttleStatusRetired:
			overview.RetiredShuttles = row.Total
		}
	}

	if err := r.db.GetContext(ctx, &overview.ActiveDrivers, `SELECT COUNT(*) FROM drivers WHERE active = TRUE`); err != nil {
		return nil, fmt.Errorf("dashboard driver count: %w", err)
	}
	if err := r.db.GetContext(ctx, &overview.SchedulesToday, `SELECT COUNT(*) FROM schedules WHERE date = $1 AND status = 'ACTIVE'`, date); err != nil {
		return nil, fmt.Errorf("dashboard schedule count: %w", err)
	}
	if err := r.db.GetContext(ctx, &overview.OpenMaintenance, `SELECT COUNT(*) FROM maintenance_records WHERE status = 'OPEN'`); err != nil {
		return nil, fmt.Errorf("dashboard maintenance count: %w", err)
	}

	return &overview, nil
}
