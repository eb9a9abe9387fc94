package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

type shuttleRepository interface {
	List(ctx context.Context, filter models.ShuttleFilter) ([]models.Shuttle, int, error)
	FindByID(ctx context.Context, id string) (*models.Shuttle, error)
	ExistsByPlate(ctx context.Context, plate, excludeID string) (bool, error)
	Create(ctx context.Context, shuttle *models.Shuttle) error
	Update(ctx context.Context, shuttle *models.Shuttle) error
	UpdateStatus(ctx context.Context, id string, status models.ShuttleStatus) error
}

type shuttleMaintenanceChecker interface {
	HasOpenRecord(ctx context.Context, shuttleID string) (bool, error)
}

// CreateShuttleRequest represents payload for registering vehicles.
type CreateShuttleRequest struct {
	CompanyID   string `json:"company_id" validate:"required"`
	PlateNumber string `json:"plate_number" validate:"required,max=20"`
	Model       string `json:"model" validate:"required,max=100"`
	Capacity    int    `json:"capacity" validate:"required,min=1,max=100"`
	Mileage     int    `json:"mileage" validate:"min=0"`
}

// UpdateShuttleRequest represents payload for updating vehicles.
type UpdateShuttleRequest struct {
	CompanyID   string `json:"company_id" validate:"required"`
	PlateNumber string `json:"plate_number" validate:"required,max=20"`
	Model       string `json:"model" validate:"required,max=100"`
	Capacity    int    `json:"capacity" validate:"required,min=1,max=100"`
	Mileage     int    `json:"mileage" validate:"min=0"`
}

// ShuttleService orchestrates fleet vehicle operations.
type ShuttleService struct {
	repo        shuttleRepository
	maintenance shuttleMaintenanceChecker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewShuttleService constructs a ShuttleService.
func NewShuttleService(repo shuttleRepository, maintenance shuttleMaintenanceChecker, validate *validator.Validate, logger *zap.Logger) *ShuttleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShuttleService{repo: repo, maintenance: maintenance, validator: validate, logger: logger}
}

// List returns shuttles plus pagination data.
func (s *ShuttleService) List(ctx context.Context, filter models.ShuttleFilter) ([]models.Shuttle, *models.Pagination, error) {
	shuttles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list shuttles")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return shuttles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a shuttle by id.
func (s *ShuttleService) Get(ctx context.Context, id string) (*models.Shuttle, error) {
	shuttle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shuttle not found")
		}
		return nil, wrapInternal(err, "failed to load shuttle")
	}
	return shuttle, nil
}

// Create registers a new fleet vehicle.
func (s *ShuttleService) Create(ctx context.Context, req CreateShuttleRequest) (*models.Shuttle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shuttle payload")
	}
	plate := strings.TrimSpace(req.PlateNumber)
	exists, err := s.repo.ExistsByPlate(ctx, plate, "")
	if err != nil {
		return nil, wrapInternal(err, "failed to check plate uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plate number already registered")
	}

	shuttle := &models.Shuttle{
		CompanyID:   req.CompanyID,
		PlateNumber: plate,
		Model:       strings.TrimSpace(req.Model),
		Capacity:    req.Capacity,
		Status:      models.ShuttleStatusActive,
		Mileage:     req.Mileage,
	}
	if err := s.repo.Create(ctx, shuttle); err != nil {
		return nil, wrapInternal(err, "failed to create shuttle")
	}
	return shuttle, nil
}

// Update modifies an existing shuttle. Status transitions go through
// SetStatus so maintenance bookkeeping stays consistent.
func (s *ShuttleService) Update(ctx context.Context, id string, req UpdateShuttleRequest) (*models.Shuttle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shuttle payload")
	}

	shuttle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shuttle not found")
		}
		return nil, wrapInternal(err, "failed to load shuttle")
	}

	plate := strings.TrimSpace(req.PlateNumber)
	exists, err := s.repo.ExistsByPlate(ctx, plate, id)
	if err != nil {
		return nil, wrapInternal(err, "failed to check plate uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plate number already registered")
	}

	shuttle.CompanyID = req.CompanyID
	shuttle.PlateNumber = plate
	shuttle.Model = strings.TrimSpace(req.Model)
	shuttle.Capacity = req.Capacity
	shuttle.Mileage = req.Mileage

	if err := s.repo.Update(ctx, shuttle); err != nil {
		return nil, wrapInternal(err, "failed to update shuttle")
	}
	return shuttle, nil
}

// SetStatus transitions a shuttle's availability state. Returning a
// shuttle to ACTIVE is refused while it still has open maintenance work.
func (s *ShuttleService) SetStatus(ctx context.Context, id string, status models.ShuttleStatus) (*models.Shuttle, error) {
	switch status {
	case models.ShuttleStatusActive, models.ShuttleStatusUnderMaintenance, models.ShuttleStatusRetired:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown shuttle status")
	}

	shuttle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "shuttle not found")
		}
		return nil, wrapInternal(err, "failed to load shuttle")
	}

	if status == models.ShuttleStatusActive && s.maintenance != nil {
		open, err := s.maintenance.HasOpenRecord(ctx, id)
		if err != nil {
			return nil, wrapInternal(err, "failed to check maintenance state")
		}
		if open {
			return nil, appErrors.Clone(appErrors.ErrUnderMaintenance, "shuttle has open maintenance work")
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, wrapInternal(err, "failed to update shuttle status")
	}
	shuttle.Status = status
	return shuttle, nil
}
