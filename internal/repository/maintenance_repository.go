package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

const maintenanceColumns = "id, shuttle_id, description, status, cost, started_at, closed_at, created_at, updated_at"

// MaintenanceRepository persists shuttle maintenance records.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository constructs a MaintenanceRepository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// List returns maintenance records matching filters along with total count.
func (r *MaintenanceRepository) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRecord, int, error) {
	base := "FROM maintenance_records WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ShuttleID != "" {
		conditions = append(conditions, fmt.Sprintf("shuttle_id = $%d", len(args)+1))
		args = append(args, filter.ShuttleID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "started_at"
	}
	allowedSorts := map[string]bool{
		"started_at": true,
		"closed_at":  true,
		"cost":       true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "started_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", maintenanceColumns, base, sortBy, order, size, offset)
	var records []models.MaintenanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list maintenance records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count maintenance records: %w", err)
	}

	return records, total, nil
}

// FindByID fetches a maintenance record by ID.
func (r *MaintenanceRepository) FindByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM maintenance_records WHERE id = $1", maintenanceColumns)
	var record models.MaintenanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// MaintainedShuttleIDs returns the set of shuttles with an open record.
// These shuttles are excluded from scheduling suggestions.
func (r *MaintenanceRepository) MaintainedShuttleIDs(ctx context.Context) (map[string]struct{}, error) {
	const query = `SELECT DISTINCT shuttle_id FROM maintenance_records WHERE status = 'OPEN'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list maintained shuttle ids: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// HasOpenRecord reports whether the shuttle has any open maintenance work.
func (r *MaintenanceRepository) HasOpenRecord(ctx context.Context, shuttleID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM maintenance_records WHERE shuttle_id = $1 AND status = 'OPEN'`
	var total int
	if err := r.db.GetContext(ctx, &total, query, shuttleID); err != nil {
		return false, fmt.Errorf("check open maintenance: %w", err)
	}
	return total > 0, nil
}

// CountOpen returns the total number of open maintenance records.
func (r *MaintenanceRepository) CountOpen(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM maintenance_records WHERE status = 'OPEN'`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count open maintenance: %w", err)
	}
	return total, nil
}

// Create inserts a new maintenance record.
func (r *MaintenanceRepository) Create(ctx context.Context, record *models.MaintenanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	record.UpdatedAt = now

	const query = `INSERT INTO maintenance_records (id, shuttle_id, description, status, cost, started_at, closed_at, created_at, updated_at)
		VALUES (:id, :shuttle_id, :description, :status, :cost, :started_at, :closed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create maintenance record: %w", err)
	}
	return nil
}

// Update modifies a maintenance record.
func (r *MaintenanceRepository) Update(ctx context.Context, record *models.MaintenanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE maintenance_records SET description = :description, status = :status, cost = :cost, started_at = :started_at, closed_at = :closed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update maintenance record: %w", err)
	}
	return nil
}

// Close marks a record CLOSED with the given completion time.
func (r *MaintenanceRepository) Close(ctx context.Context, id string, closedAt time.Time) error {
	const query = `UPDATE maintenance_records SET status = 'CLOSED', closed_at = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, closedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("close maintenance record: %w", err)
	}
	return nil
}
