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

// RouteRepository manages persistence for shuttle routes.
type RouteRepository struct {
	db *sqlx.DB
}

// NewRouteRepository constructs a RouteRepository.
func NewRouteRepository(db *sqlx.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// List returns routes matching filters along with total count.
func (r *RouteRepository) List(ctx context.Context, filter models.RouteFilter) ([]models.Route, int, error) {
	base := "FROM routes WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(origin) LIKE $%d OR LOWER(destination) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	allowedSorts := map[string]bool{
		"name":         true,
		"origin":       true,
		"destination":  true,
		"distance_km":  true,
		"duration_min": true,
		"created_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT id, name, origin, destination, distance_km, duration_min, active, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, sortBy, order, size, offset)
	var routes []models.Route
	if err := r.db.SelectContext(ctx, &routes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list routes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count routes: %w", err)
	}

	return routes, total, nil
}

// FindByID fetches a route by ID.
func (r *RouteRepository) FindByID(ctx context.Context, id string) (*models.Route, error) {
	const query = `SELECT id, name, origin, destination, distance_km, duration_min, active, created_at, updated_at FROM routes WHERE id = $1`
	var route models.Route
	if err := r.db.GetContext(ctx, &route, query, id); err != nil {
		return nil, err
	}
	return &route, nil
}

// Create inserts a new route record.
func (r *RouteRepository) Create(ctx context.Context, route *models.Route) error {
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if route.CreatedAt.IsZero() {
		route.CreatedAt = now
	}
	route.UpdatedAt = now

	const query = `INSERT INTO routes (id, name, origin, destination, distance_km, duration_min, active, created_at, updated_at)
		VALUES (:id, :name, :origin, :destination, :distance_km, :duration_min, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, route); err != nil {
		return fmt.Errorf("create route: %w", err)
	}
	return nil
}

// Update modifies an existing route record.
func (r *RouteRepository) Update(ctx context.Context, route *models.Route) error {
	route.UpdatedAt = time.Now().UTC()
	const query = `UPDATE routes SET name = :name, origin = :origin, destination = :destination, distance_km = :distance_km, duration_min = :duration_min, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, route); err != nil {
		return fmt.Errorf("update route: %w", err)
	}
	return nil
}

// Deactivate sets a route's active flag to false.
func (r *RouteRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE routes SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate route: %w", err)
	}
	return nil
}
