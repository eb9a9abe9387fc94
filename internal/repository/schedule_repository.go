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

const scheduleColumns = "id, driver_id, shuttle_id, route_id, client_id, date, time, status, notes, created_at, updated_at"

// ScheduleRepository provides persistence for driver/shuttle assignments.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DriverID != "" {
		conditions = append(conditions, fmt.Sprintf("driver_id = $%d", len(args)+1))
		args = append(args, filter.DriverID)
	}
	if filter.ShuttleID != "" {
		conditions = append(conditions, fmt.Sprintf("shuttle_id = $%d", len(args)+1))
		args = append(args, filter.ShuttleID)
	}
	if filter.RouteID != "" {
		conditions = append(conditions, fmt.Sprintf("route_id = $%d", len(args)+1))
		args = append(args, filter.RouteID)
	}
	if filter.Date != "" {
		conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, filter.Date)
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
		sortBy = "date"
	}
	allowedSorts := map[string]bool{
		"date":       true,
		"time":       true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "date"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, time ASC LIMIT %d OFFSET %d", scheduleColumns, base, sortBy, order, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListForDate returns every schedule on a calendar date ordered by time.
// This is the row set the conflict detector scans.
func (r *ScheduleRepository) ListForDate(ctx context.Context, date string) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE date = $1 ORDER BY time ASC", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, date); err != nil {
		return nil, fmt.Errorf("list schedules for date: %w", err)
	}
	return schedules, nil
}

// CreateChecked inserts a schedule after locking the day's rows and
// re-running the caller's conflict check inside the same transaction.
// A concurrent insert on the same date blocks until this transaction
// finishes, so a clean recheck guarantees the row is still conflict
// free at commit time.
func (r *ScheduleRepository) CreateChecked(ctx context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.recheckDay(ctx, tx, schedule.Date, recheck); err != nil {
		return err
	}

	const query = `INSERT INTO schedules (id, driver_id, shuttle_id, route_id, client_id, date, time, status, notes, created_at, updated_at)
		VALUES (:id, :driver_id, :shuttle_id, :route_id, :client_id, :date, :time, :status, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create schedule: %w", err)
	}
	return nil
}

// UpdateChecked modifies a schedule under the same day lock and recheck
// discipline as CreateChecked.
func (r *ScheduleRepository) UpdateChecked(ctx context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error {
	schedule.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update schedule: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.recheckDay(ctx, tx, schedule.Date, recheck); err != nil {
		return err
	}

	const query = `UPDATE schedules SET driver_id = :driver_id, shuttle_id = :shuttle_id, route_id = :route_id, client_id = :client_id, date = :date, time = :time, status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) recheckDay(ctx context.Context, tx *sqlx.Tx, date string, recheck func([]models.Schedule) error) error {
	if recheck == nil {
		return nil
	}
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE date = $1 ORDER BY time ASC FOR UPDATE", scheduleColumns)
	var rows []models.Schedule
	if err := tx.SelectContext(ctx, &rows, query, date); err != nil {
		return fmt.Errorf("lock schedules for date: %w", err)
	}
	return recheck(rows)
}

// SetStatus transitions a schedule between ACTIVE and INACTIVE.
func (r *ScheduleRepository) SetStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	const query = `UPDATE schedules SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set schedule status: %w", err)
	}
	return nil
}

// Delete removes a schedule by id.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// CountForDate returns how many active schedules exist on a date.
func (r *ScheduleRepository) CountForDate(ctx context.Context, date string) (int, error) {
	const query = `SELECT COUNT(*) FROM schedules WHERE date = $1 AND status = 'ACTIVE'`
	var total int
	if err := r.db.GetContext(ctx, &total, query, date); err != nil {
		return 0, fmt.Errorf("count schedules for date: %w", err)
	}
	return total, nil
}
