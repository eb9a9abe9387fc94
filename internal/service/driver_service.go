package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

type driverRepository interface {
	List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, int, error)
	FindByID(ctx context.Context, id string) (*models.Driver, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByLicense(ctx context.Context, license, excludeID string) (bool, error)
	Create(ctx context.Context, driver *models.Driver) error
	Update(ctx context.Context, driver *models.Driver) error
	Deactivate(ctx context.Context, id string) error
}

// CreateDriverRequest represents payload for creating drivers.
type CreateDriverRequest struct {
	CompanyID     string     `json:"company_id" validate:"required"`
	Email         string     `json:"email" validate:"required,email"`
	FullName      string     `json:"full_name" validate:"required"`
	Phone         *string    `json:"phone" validate:"omitempty,max=50"`
	LicenseNumber string     `json:"license_number" validate:"required,max=50"`
	LicenseExpiry *time.Time `json:"license_expiry"`
}

// UpdateDriverRequest represents payload for updating drivers.
type UpdateDriverRequest struct {
	CompanyID     string     `json:"company_id" validate:"required"`
	Email         string     `json:"email" validate:"required,email"`
	FullName      string     `json:"full_name" validate:"required"`
	Phone         *string    `json:"phone" validate:"omitempty,max=50"`
	LicenseNumber string     `json:"license_number" validate:"required,max=50"`
	LicenseExpiry *time.Time `json:"license_expiry"`
	Active        *bool      `json:"active"`
}

// DriverService orchestrates driver roster operations.
type DriverService struct {
	repo      driverRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDriverService constructs a DriverService.
func NewDriverService(repo driverRepository, validate *validator.Validate, logger *zap.Logger) *DriverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverService{repo: repo, validator: validate, logger: logger}
}

// List returns drivers plus pagination data.
func (s *DriverService) List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, *models.Pagination, error) {
	drivers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list drivers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return drivers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a driver by id.
func (s *DriverService) Get(ctx context.Context, id string) (*models.Driver, error) {
	driver, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driver not found")
		}
		return nil, wrapInternal(err, "failed to load driver")
	}
	return driver, nil
}

// Create registers a new driver record.
func (s *DriverService) Create(ctx context.Context, req CreateDriverRequest) (*models.Driver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid driver payload")
	}
	if err := s.ensureUniqueFields(ctx, req.Email, req.LicenseNumber, ""); err != nil {
		return nil, err
	}

	driver := &models.Driver{
		CompanyID:     req.CompanyID,
		Email:         strings.TrimSpace(req.Email),
		FullName:      strings.TrimSpace(req.FullName),
		Phone:         normalizeOptional(req.Phone),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		LicenseExpiry: req.LicenseExpiry,
		Active:        true,
	}
	if err := s.repo.Create(ctx, driver); err != nil {
		return nil, wrapInternal(err, "failed to create driver")
	}
	return driver, nil
}

// Update modifies an existing driver.
func (s *DriverService) Update(ctx context.Context, id string, req UpdateDriverRequest) (*models.Driver, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid driver payload")
	}

	driver, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driver not found")
		}
		return nil, wrapInternal(err, "failed to load driver")
	}

	if err := s.ensureUniqueFields(ctx, req.Email, req.LicenseNumber, id); err != nil {
		return nil, err
	}

	driver.CompanyID = req.CompanyID
	driver.Email = strings.TrimSpace(req.Email)
	driver.FullName = strings.TrimSpace(req.FullName)
	driver.Phone = normalizeOptional(req.Phone)
	driver.LicenseNumber = strings.TrimSpace(req.LicenseNumber)
	driver.LicenseExpiry = req.LicenseExpiry
	if req.Active != nil {
		driver.Active = *req.Active
	}

	if err := s.repo.Update(ctx, driver); err != nil {
		return nil, wrapInternal(err, "failed to update driver")
	}
	return driver, nil
}

// Deactivate marks a driver inactive, removing them from the active pool.
func (s *DriverService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "driver not found")
		}
		return wrapInternal(err, "failed to load driver")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return wrapInternal(err, "failed to deactivate driver")
	}
	return nil
}

func (s *DriverService) ensureUniqueFields(ctx context.Context, email, license, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return wrapInternal(err, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	exists, err = s.repo.ExistsByLicense(ctx, strings.TrimSpace(license), excludeID)
	if err != nil {
		return wrapInternal(err, "failed to check license uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "license number already used")
	}
	return nil
}
