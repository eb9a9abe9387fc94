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

type routeRepository interface {
	List(ctx context.Context, filter models.RouteFilter) ([]models.Route, int, error)
	FindByID(ctx context.Context, id string) (*models.Route, error)
	Create(ctx context.Context, route *models.Route) error
	Update(ctx context.Context, route *models.Route) error
	Deactivate(ctx context.Context, id string) error
}

// CreateRouteRequest represents payload for creating routes.
type CreateRouteRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Origin      string  `json:"origin" validate:"required,max=200"`
	Destination string  `json:"destination" validate:"required,max=200"`
	DistanceKM  float64 `json:"distance_km" validate:"required,gt=0"`
	DurationMin int     `json:"duration_min" validate:"required,gt=0"`
}

// UpdateRouteRequest represents payload for updating routes.
type UpdateRouteRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Origin      string  `json:"origin" validate:"required,max=200"`
	Destination string  `json:"destination" validate:"required,max=200"`
	DistanceKM  float64 `json:"distance_km" validate:"required,gt=0"`
	DurationMin int     `json:"duration_min" validate:"required,gt=0"`
	Active      *bool   `json:"active"`
}

// RouteService orchestrates route operations.
type RouteService struct {
	repo      routeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRouteService constructs a RouteService.
func NewRouteService(repo routeRepository, validate *validator.Validate, logger *zap.Logger) *RouteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteService{repo: repo, validator: validate, logger: logger}
}

// List returns routes plus pagination data.
func (s *RouteService) List(ctx context.Context, filter models.RouteFilter) ([]models.Route, *models.Pagination, error) {
	routes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list routes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return routes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a route by id.
func (s *RouteService) Get(ctx context.Context, id string) (*models.Route, error) {
	route, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return nil, wrapInternal(err, "failed to load route")
	}
	return route, nil
}

// Create registers a new route.
func (s *RouteService) Create(ctx context.Context, req CreateRouteRequest) (*models.Route, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid route payload")
	}

	route := &models.Route{
		Name:        strings.TrimSpace(req.Name),
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		DistanceKM:  req.DistanceKM,
		DurationMin: req.DurationMin,
		Active:      true,
	}
	if err := s.repo.Create(ctx, route); err != nil {
		return nil, wrapInternal(err, "failed to create route")
	}
	return route, nil
}

// Update modifies an existing route.
func (s *RouteService) Update(ctx context.Context, id string, req UpdateRouteRequest) (*models.Route, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid route payload")
	}

	route, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return nil, wrapInternal(err, "failed to load route")
	}

	route.Name = strings.TrimSpace(req.Name)
	route.Origin = strings.TrimSpace(req.Origin)
	route.Destination = strings.TrimSpace(req.Destination)
	route.DistanceKM = req.DistanceKM
	route.DurationMin = req.DurationMin
	if req.Active != nil {
		route.Active = *req.Active
	}

	if err := s.repo.Update(ctx, route); err != nil {
		return nil, wrapInternal(err, "failed to update route")
	}
	return route, nil
}

// Deactivate marks a route inactive.
func (s *RouteService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return wrapInternal(err, "failed to load route")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return wrapInternal(err, "failed to deactivate route")
	}
	return nil
}
