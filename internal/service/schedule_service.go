package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/conflict"
	"github.com/fleetcircle/shuttle-ops-api/internal/dto"
	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListForDate(ctx context.Context, date string) ([]models.Schedule, error)
	CreateChecked(ctx context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error
	UpdateChecked(ctx context.Context, schedule *models.Schedule, recheck func([]models.Schedule) error) error
	SetStatus(ctx context.Context, id string, status models.ScheduleStatus) error
	Delete(ctx context.Context, id string) error
}

type scheduleDriverLookup interface {
	FindByID(ctx context.Context, id string) (*models.Driver, error)
}

type scheduleShuttleLookup interface {
	FindByID(ctx context.Context, id string) (*models.Shuttle, error)
}

type scheduleRouteLookup interface {
	FindByID(ctx context.Context, id string) (*models.Route, error)
}

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies the authenticated user performing a mutation, for audit
// logging.
type Actor struct {
	ID        string
	IP        string
	UserAgent string
}

// CreateScheduleRequest represents payload for creating a schedule entry.
type CreateScheduleRequest struct {
	DriverID  string  `json:"driver_id" validate:"required"`
	ShuttleID string  `json:"shuttle_id" validate:"required"`
	RouteID   string  `json:"route_id" validate:"required"`
	ClientID  *string `json:"client_id"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string  `json:"time" validate:"required"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateScheduleRequest represents payload for rescheduling an entry.
type UpdateScheduleRequest struct {
	DriverID  string  `json:"driver_id" validate:"required"`
	ShuttleID string  `json:"shuttle_id" validate:"required"`
	RouteID   string  `json:"route_id" validate:"required"`
	ClientID  *string `json:"client_id"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string  `json:"time" validate:"required"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// ScheduleService orchestrates schedule CRUD with conflict detection on
// every write. Reads of a full day are served from cache when available.
type ScheduleService struct {
	repo      scheduleRepository
	drivers   scheduleDriverLookup
	shuttles  scheduleShuttleLookup
	routes    scheduleRouteLookup
	audit     auditLogWriter
	resolver  *conflict.Resolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(
	repo scheduleRepository,
	drivers scheduleDriverLookup,
	shuttles scheduleShuttleLookup,
	routes scheduleRouteLookup,
	audit auditLogWriter,
	resolver *conflict.Resolver,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:      repo,
		drivers:   drivers,
		shuttles:  shuttles,
		routes:    routes,
		audit:     audit,
		resolver:  resolver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func scheduleDayCacheKey(date string) string {
	return "schedules:day:" + date
}

// List returns schedules matching the filter plus pagination data.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListForDay returns every schedule on the given date ordered by time.
// The day view is the dispatcher's hot path, so it is cached.
func (s *ScheduleService) ListForDay(ctx context.Context, date string) ([]models.Schedule, error) {
	key := scheduleDayCacheKey(date)
	var cached []models.Schedule
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	schedules, err := s.repo.ListForDate(ctx, date)
	if err != nil {
		return nil, wrapInternal(err, "failed to list schedules for date")
	}
	if err := s.cache.Set(ctx, key, schedules, 0); err != nil {
		s.logger.Warn("failed to cache day schedules", zap.String("date", date), zap.Error(err))
	}
	return schedules, nil
}

// Get returns a schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, wrapInternal(err, "failed to load schedule")
	}
	return schedule, nil
}

// Create validates the assignment, runs a conflict pre-flight and persists
// the schedule under a day lock with a second conflict check against the
// locked rows. When a conflict is found the colliding details are returned
// alongside the error so callers can render them.
func (s *ScheduleService) Create(ctx context.Context, actor Actor, req CreateScheduleRequest) (*models.Schedule, []conflict.Detail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if err := s.verifyAssignees(ctx, req.DriverID, req.ShuttleID, req.RouteID); err != nil {
		return nil, nil, err
	}

	cand := conflict.Candidate{
		DriverID:  req.DriverID,
		ShuttleID: req.ShuttleID,
		Date:      req.Date,
		Time:      req.Time,
	}
	if details, err := s.preflight(ctx, cand); err != nil || len(details) > 0 {
		return nil, details, err
	}

	schedule := &models.Schedule{
		DriverID:  req.DriverID,
		ShuttleID: req.ShuttleID,
		RouteID:   req.RouteID,
		ClientID:  normalizeOptional(req.ClientID),
		Date:      req.Date,
		Time:      req.Time,
		Status:    models.ScheduleStatusActive,
		Notes:     normalizeOptional(req.Notes),
	}

	details, err := s.writeChecked(ctx, cand, func(recheck func([]models.Schedule) error) error {
		return s.repo.CreateChecked(ctx, schedule, recheck)
	})
	if err != nil {
		return nil, details, err
	}

	s.invalidateDay(ctx, req.Date)
	s.recordAudit(ctx, actor, models.AuditActionScheduleCreate, schedule.ID)
	return schedule, nil, nil
}

// Update reschedules an entry. The schedule's own id is excluded from the
// conflict checks so it does not collide with itself.
func (s *ScheduleService) Update(ctx context.Context, actor Actor, id string, req UpdateScheduleRequest) (*models.Schedule, []conflict.Detail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.verifyAssignees(ctx, req.DriverID, req.ShuttleID, req.RouteID); err != nil {
		return nil, nil, err
	}

	cand := conflict.Candidate{
		DriverID:  req.DriverID,
		ShuttleID: req.ShuttleID,
		Date:      req.Date,
		Time:      req.Time,
		ExcludeID: id,
	}
	if details, err := s.preflight(ctx, cand); err != nil || len(details) > 0 {
		return nil, details, err
	}

	previousDate := existing.Date
	updated := *existing
	updated.DriverID = req.DriverID
	updated.ShuttleID = req.ShuttleID
	updated.RouteID = req.RouteID
	updated.ClientID = normalizeOptional(req.ClientID)
	updated.Date = req.Date
	updated.Time = req.Time
	updated.Notes = normalizeOptional(req.Notes)

	details, err := s.writeChecked(ctx, cand, func(recheck func([]models.Schedule) error) error {
		return s.repo.UpdateChecked(ctx, &updated, recheck)
	})
	if err != nil {
		return nil, details, err
	}

	s.invalidateDay(ctx, req.Date)
	if previousDate != req.Date {
		s.invalidateDay(ctx, previousDate)
	}
	s.recordAudit(ctx, actor, models.AuditActionScheduleUpdate, id)
	return &updated, nil, nil
}

// SetStatus transitions a schedule between ACTIVE and INACTIVE. Inactive
// schedules are invisible to conflict detection.
func (s *ScheduleService) SetStatus(ctx context.Context, actor Actor, id string, status models.ScheduleStatus) (*models.Schedule, error) {
	if status != models.ScheduleStatusActive && status != models.ScheduleStatusInactive {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid schedule status %q", status))
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reactivating a schedule can reintroduce a conflict, so it goes
	// through the same check as a fresh assignment.
	if status == models.ScheduleStatusActive && existing.Status != models.ScheduleStatusActive {
		cand := conflict.Candidate{
			DriverID:  existing.DriverID,
			ShuttleID: existing.ShuttleID,
			Date:      existing.Date,
			Time:      existing.Time,
			ExcludeID: id,
		}
		details, err := s.preflight(ctx, cand)
		if err != nil {
			return nil, err
		}
		if len(details) > 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule conflict detected")
		}
	}

	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return nil, wrapInternal(err, "failed to update schedule status")
	}
	existing.Status = status
	s.invalidateDay(ctx, existing.Date)
	s.recordAudit(ctx, actor, models.AuditActionScheduleUpdate, id)
	return existing, nil
}

// Delete removes a schedule entry.
func (s *ScheduleService) Delete(ctx context.Context, actor Actor, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return wrapInternal(err, "failed to delete schedule")
	}
	s.invalidateDay(ctx, existing.Date)
	s.recordAudit(ctx, actor, models.AuditActionScheduleDelete, id)
	return nil
}

// CheckConflict evaluates an assignment without persisting anything.
func (s *ScheduleService) CheckConflict(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ConflictCheckResponse, error) {
	details, err := s.resolver.ConflictDetails(ctx, conflict.Candidate{
		DriverID:  req.DriverID,
		ShuttleID: req.ShuttleID,
		Date:      req.Date,
		Time:      req.Time,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConflictCheck(len(details) > 0)
	if details == nil {
		details = []conflict.Detail{}
	}
	return &dto.ConflictCheckResponse{HasConflict: len(details) > 0, Details: details}, nil
}

// Suggest proposes alternative shuttles, drivers and time slots that would
// clear the conflict for the given assignment. An empty resolution means no
// automatic fix exists and manual scheduling is required.
func (s *ScheduleService) Suggest(ctx context.Context, req dto.ConflictCheckRequest) (*conflict.Resolution, error) {
	resolution, err := s.resolver.Resolve(ctx, conflict.Candidate{
		DriverID:  req.DriverID,
		ShuttleID: req.ShuttleID,
		Date:      req.Date,
		Time:      req.Time,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		return nil, err
	}
	return &resolution, nil
}

// preflight runs the conflict check against committed data before the
// transaction is opened. It keeps the common case cheap: a conflicting
// request is rejected without ever taking the day lock.
func (s *ScheduleService) preflight(ctx context.Context, cand conflict.Candidate) ([]conflict.Detail, error) {
	details, err := s.resolver.ConflictDetails(ctx, cand)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConflictCheck(len(details) > 0)
	if len(details) > 0 {
		return details, appErrors.Clone(appErrors.ErrConflict, "schedule conflict detected")
	}
	return nil, nil
}

// writeChecked invokes the repository write with a recheck closure that
// re-evaluates the candidate against the rows locked inside the
// transaction. A concurrent writer that slipped in between the pre-flight
// and the lock is caught here.
func (s *ScheduleService) writeChecked(ctx context.Context, cand conflict.Candidate, write func(recheck func([]models.Schedule) error) error) ([]conflict.Detail, error) {
	var lockedDetails []conflict.Detail
	recheck := func(rows []models.Schedule) error {
		probe := s.resolver.WithScheduleSource(conflict.StaticSource(rows))
		details, err := probe.ConflictDetails(ctx, cand)
		if err != nil {
			return err
		}
		if len(details) > 0 {
			lockedDetails = details
			return appErrors.Clone(appErrors.ErrConflict, "schedule conflict detected")
		}
		return nil
	}

	if err := write(recheck); err != nil {
		if len(lockedDetails) > 0 {
			s.logger.Info("schedule write lost race to concurrent conflicting write", zap.String("date", cand.Date))
			return lockedDetails, appErrors.FromError(err)
		}
		return nil, wrapInternal(err, "failed to persist schedule")
	}
	return nil, nil
}

// verifyAssignees ensures the referenced driver, shuttle and route exist
// and are eligible for scheduling.
func (s *ScheduleService) verifyAssignees(ctx context.Context, driverID, shuttleID, routeID string) error {
	driver, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "driver not found")
		}
		return wrapInternal(err, "failed to load driver")
	}
	if !driver.Active {
		return appErrors.Clone(appErrors.ErrValidation, "driver is inactive")
	}

	shuttle, err := s.shuttles.FindByID(ctx, shuttleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "shuttle not found")
		}
		return wrapInternal(err, "failed to load shuttle")
	}
	switch shuttle.Status {
	case models.ShuttleStatusActive:
	case models.ShuttleStatusUnderMaintenance:
		return appErrors.Clone(appErrors.ErrUnderMaintenance, "shuttle is under maintenance")
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shuttle is %s and cannot be scheduled", shuttle.Status))
	}

	route, err := s.routes.FindByID(ctx, routeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "route not found")
		}
		return wrapInternal(err, "failed to load route")
	}
	if !route.Active {
		return appErrors.Clone(appErrors.ErrValidation, "route is inactive")
	}
	return nil
}

func (s *ScheduleService) invalidateDay(ctx context.Context, date string) {
	if err := s.cache.Invalidate(ctx, scheduleDayCacheKey(date)); err != nil {
		s.logger.Warn("failed to invalidate day schedule cache", zap.String("date", date), zap.Error(err))
	}
}

func (s *ScheduleService) recordAudit(ctx context.Context, actor Actor, action, scheduleID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "schedules",
		ResourceID: &scheduleID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.ID != "" {
		log.UserID = &actor.ID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record schedule audit log", zap.Error(err))
	}
}
