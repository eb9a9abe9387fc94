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

type companyRepository interface {
	List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error)
	FindByID(ctx context.Context, id string) (*models.Company, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
	Deactivate(ctx context.Context, id string) error
}

// CreateCompanyRequest represents payload for creating companies.
type CreateCompanyRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

// UpdateCompanyRequest represents payload for updating companies.
type UpdateCompanyRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Active  *bool   `json:"active"`
}

// CompanyService orchestrates company operations.
type CompanyService struct {
	repo      companyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCompanyService constructs a CompanyService.
func NewCompanyService(repo companyRepository, validate *validator.Validate, logger *zap.Logger) *CompanyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{repo: repo, validator: validate, logger: logger}
}

// List returns companies plus pagination data.
func (s *CompanyService) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, *models.Pagination, error) {
	companies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list companies")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return companies, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a company by id.
func (s *CompanyService) Get(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, wrapInternal(err, "failed to load company")
	}
	return company, nil
}

// Create registers a new operator company.
func (s *CompanyService) Create(ctx context.Context, req CreateCompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}
	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, wrapInternal(err, "failed to check company name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "company name already used")
	}

	company := &models.Company{
		Name:    name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   normalizeOptional(req.Phone),
		Address: normalizeOptional(req.Address),
		Active:  true,
	}
	if err := s.repo.Create(ctx, company); err != nil {
		return nil, wrapInternal(err, "failed to create company")
	}
	return company, nil
}

// Update modifies an existing company.
func (s *CompanyService) Update(ctx context.Context, id string, req UpdateCompanyRequest) (*models.Company, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid company payload")
	}

	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return nil, wrapInternal(err, "failed to load company")
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, wrapInternal(err, "failed to check company name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "company name already used")
	}

	company.Name = name
	company.Email = strings.TrimSpace(req.Email)
	company.Phone = normalizeOptional(req.Phone)
	company.Address = normalizeOptional(req.Address)
	if req.Active != nil {
		company.Active = *req.Active
	}

	if err := s.repo.Update(ctx, company); err != nil {
		return nil, wrapInternal(err, "failed to update company")
	}
	return company, nil
}

// Deactivate marks a company inactive.
func (s *CompanyService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "company not found")
		}
		return wrapInternal(err, "failed to load company")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return wrapInternal(err, "failed to deactivate company")
	}
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
