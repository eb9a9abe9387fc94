package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

// ShuttleRepository manages persistence for fleet vehicles.
type ShuttleRepository struct {
	db *sqlx.DB
}

// NewShuttleRepository constructs a ShuttleRepository.
func NewShuttleRepository(db *sqlx.DB) *ShuttleRepository {
	return &ShuttleRepository{db: db}
}

// List returns shuttles matching filters along with total count.
func (r *ShuttleRepository) List(ctx context.Context, filter models.ShuttleFilter) ([]models.Shuttle, int, error) {
	base := "FROM shuttles WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CompanyID != "" {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(plate_number) LIKE $%d OR LOWER(model) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]bool{
		"plate_number": true,
		"model":        true,
		"capacity":     true,
		"mileage":      true,
		"created_at":   true,
		"updated_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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

	query := fmt.Sprintf("SELECT id, company_id, plate_number, model, capacity, status, mileage, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, sortBy, order, size, offset)
	var shuttles []models.Shuttle
	if err := r.db.SelectContext(ctx, &shuttles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list shuttles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count shuttles: %w", err)
	}

	return shuttles, total, nil
}

// ListActiveShuttles returns every ACTIVE shuttle ordered by plate number.
// The result feeds the suggestion engine's shuttle pool.
func (r *ShuttleRepository) ListActiveShuttles(ctx context.Context) ([]models.Shuttle, error) {
	const query = `SELECT id, company_id, plate_number, model, capacity, status, mileage, created_at, updated_at FROM shuttles WHERE status = 'ACTIVE' ORDER BY plate_number ASC`
	var shuttles []models.Shuttle
	if err := r.db.SelectContext(ctx, &shuttles, query); err != nil {
		return nil, fmt.Errorf("list active shuttles: %w", err)
	}
	return shuttles, nil
}

// FindByID fetches a shuttle by ID.
func (r *ShuttleRepository) FindByID(ctx context.Context, id string) (*models.Shuttle, error) {
	const query = `SELECT id, company_id, plate_number, model, capacity, status, mileage, created_at, updated_at FROM shuttles WHERE id = $1`
	var shuttle models.Shuttle
	if err := r.db.GetContext(ctx, &shuttle, query, id); err != nil {
		return nil, err
	}
	return &shuttle, nil
}

// ExistsByPlate checks if another shuttle uses the same plate number.
func (r *ShuttleRepository) ExistsByPlate(ctx context.Context, plate string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM shuttles WHERE LOWER(plate_number) = LOWER($1)"
	args := []interface{}{plate}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check shuttle plate: %w", err)
	}
	return true, nil
}

// Create inserts a new shuttle record.
func (r *ShuttleRepository) Create(ctx context.Context, shuttle *models.Shuttle) error {
	if shuttle.ID == "" {
		shuttle.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if shuttle.CreatedAt.IsZero() {
		shuttle.CreatedAt = now
	}
	shuttle.UpdatedAt = now

	const query = `INSERT INTO shuttles (id, company_id, plate_number, model, capacity, status, mileage, created_at, updated_at)
		VALUES (:id, :company_id, :plate_number, :model, :capacity, :status, :mileage, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, shuttle); err != nil {
		return fmt.Errorf("create shuttle: %w", err)
	}
	return nil
}

// Update modifies an existing shuttle record.
func (r *ShuttleRepository) Update(ctx context.Context, shuttle *models.Shuttle) error {
	shuttle.UpdatedAt = time.Now().UTC()
	const query = `UPDATE shuttles SET company_id = :company_id, plate_number = :plate_number, model = :model, capacity = :capacity, status = :status, mileage = :mileage, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, shuttle); err != nil {
		return fmt.Errorf("update shuttle: %w", err)
	}
	return nil
}

// UpdateStatus transitions a shuttle to the given availability state.
func (r *ShuttleRepository) UpdateStatus(ctx context.Context, id string, status models.ShuttleStatus) error {
	const query = `UPDATE shuttles SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update shuttle status: %w", err)
	}
	return nil
}

// CountByStatus returns shuttle counts grouped by availability state.
func (r *ShuttleRepository) CountByStatus(ctx context.Context) (map[models.ShuttleStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM shuttles GROUP BY status`
	rows := []struct {
		Status models.ShuttleStatus `db:"status"`
		Total  int                  `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count shuttles by status: %w", err)
	}
	out := make(map[models.ShuttleStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
