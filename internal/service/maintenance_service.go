package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

type maintenanceRepository interface {
	List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.MaintenanceRecord, error)
	HasOpenRecord(ctx context.Context, shuttleID string) (bool, error)
	Create(ctx context.Context, record *models.MaintenanceRecord) error
	Update(ctx context.Context, record *models.MaintenanceRecord) error
	Close(ctx context.Context, id string, closedAt time.Time) error
}

type maintenanceShuttleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Shuttle, error)
	UpdateStatus(ctx context.Context, id string, status models.ShuttleStatus) error
}

// OpenMaintenanceRequest represents payload for opening a maintenance record.
type OpenMaintenanceRequest struct {
	ShuttleID   string   `json:"shuttle_id" validate:"required"`
	Description string   `json:"description" validate:"required,max=500"`
	Cost        *float64 `json:"cost" validate:"omitempty,gte=0"`
}

// CloseMaintenanceRequest represents payload for closing a maintenance record.
type CloseMaintenanceRequest struct {
	Cost *float64 `json:"cost" validate:"omitempty,gte=0"`
}

// MaintenanceService manages maintenance records and keeps shuttle status
// in step with them: opening a record sidelines the shuttle, closing the
// last open record returns it to service.
type MaintenanceService struct {
	repo      maintenanceRepository
	shuttles  maintenanceShuttleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaintenanceService constructs a MaintenanceService.
func NewMaintenanceService(repo maintenanceRepository, shuttles maintenanceShuttleRepository, validate *validator.Validate, logger *zap.Logger) *MaintenanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{repo: repo, shuttles: shuttles, validator: validate, logger: logger}
}

// List returns maintenance records plus pagination data.
func (s *MaintenanceService) List(ctx context.Context, filter models.MaintenanceFilter) ([]models.MaintenanceRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list maintenance records")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a maintenance record by id.
func (s *MaintenanceService) Get(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "maintenance record not found")
		}
		return nil, wrapInternal(err, "failed to load maintenance record")
	}
	return record, nil
}

// Open creates an OPEN maintenance record and moves the shuttle to
// UNDER_MAINTENANCE so the scheduler stops offering it.
func (s *MaintenanceService) Open(ctx context.Context, req OpenMaintenanceRequest) (*models.MaintenanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maintenance payload")
	}

	shuttle, err := s.shuttles.FindByID(ctx, req.ShuttleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shuttle not found")
		}
		return nil, wrapInternal(err, "failed to load shuttle")
	}
	if shuttle.Status == models.ShuttleStatusRetired {
		return nil, appErrors.Clone(appErrors.ErrValidation, "retired shuttles cannot enter maintenance")
	}

	record := &models.MaintenanceRecord{
		ShuttleID:   req.ShuttleID,
		Description: req.Description,
		Status:      models.MaintenanceStatusOpen,
		Cost:        req.Cost,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, wrapInternal(err, "failed to create maintenance record")
	}

	if shuttle.Status != models.ShuttleStatusUnderMaintenance {
		if err := s.shuttles.UpdateStatus(ctx, req.ShuttleID, models.ShuttleStatusUnderMaintenance); err != nil {
			return nil, wrapInternal(err, "failed to sideline shuttle")
		}
	}
	s.logger.Info("maintenance opened",
		zap.String("record_id", record.ID),
		zap.String("shuttle_id", req.ShuttleID))
	return record, nil
}

// Close finishes a maintenance record. The shuttle returns to ACTIVE only
// when no other open record remains for it.
func (s *MaintenanceService) Close(ctx context.Context, id string, req CloseMaintenanceRequest) (*models.MaintenanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid maintenance payload")
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.MaintenanceStatusClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "maintenance record already closed")
	}

	if req.Cost != nil {
		record.Cost = req.Cost
		if err := s.repo.Update(ctx, record); err != nil {
			return nil, wrapInternal(err, "failed to update maintenance record")
		}
	}

	closedAt := time.Now().UTC()
	if err := s.repo.Close(ctx, id, closedAt); err != nil {
		return nil, wrapInternal(err, "failed to close maintenance record")
	}
	record.Status = models.MaintenanceStatusClosed
	record.ClosedAt = &closedAt

	stillOpen, err := s.repo.HasOpenRecord(ctx, record.ShuttleID)
	if err != nil {
		return nil, wrapInternal(err, "failed to check open maintenance records")
	}
	if !stillOpen {
		if err := s.shuttles.UpdateStatus(ctx, record.ShuttleID, models.ShuttleStatusActive); err != nil {
			return nil, wrapInternal(err, "failed to reactivate shuttle")
		}
	}
	s.logger.Info("maintenance closed",
		zap.String("record_id", id),
		zap.String("shuttle_id", record.ShuttleID),
		zap.Bool("shuttle_reactivated", !stillOpen))
	return record, nil
}
