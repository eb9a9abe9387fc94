package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/internal/service"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
	"github.com/fleetcircle/shuttle-ops-api/pkg/response"
)

// ShuttleHandler manages fleet vehicle endpoints.
type ShuttleHandler struct {
	service *service.ShuttleService
}

// NewShuttleHandler constructs handler.
func NewShuttleHandler(svc *service.ShuttleService) *ShuttleHandler {
	return &ShuttleHandler{service: svc}
}

// List godoc
// @Summary List shuttles
// @Tags Shuttles
// @Produce json
// @Param companyId query string false "Filter by company"
// @Param status query string false "Filter by status"
// @Param search query string false "Search by plate or model"
// @Success 200 {object} response.Envelope
// @Router /shuttles [get]
func (h *ShuttleHandler) List(c *gin.Context) {
	var filter models.ShuttleFilter
	filter.CompanyID = c.Query("companyId")
	if status := c.Query("status"); status != "" {
		typed := models.ShuttleStatus(status)
		filter.Status = &typed
	}
	filter.Search = c.Query("search")
	filter.Page, filter.PageSize = paginationFromQuery(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	shuttles, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shuttles, pagination)
}

// Get godoc
// @Summary Get shuttle by id
// @Tags Shuttles
// @Produce json
// @Param id path string true "Shuttle ID"
// @Success 200 {object} response.Envelope
// @Router /shuttles/{id} [get]
func (h *ShuttleHandler) Get(c *gin.Context) {
	shuttle, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shuttle, nil)
}

// Create godoc
// @Summary Register shuttle
// @Tags Shuttles
// @Accept json
// @Produce json
// @Param payload body service.CreateShuttleRequest true "Shuttle payload"
// @Success 201 {object} response.Envelope
// @Router /shuttles [post]
func (h *ShuttleHandler) Create(c *gin.Context) {
	var req service.CreateShuttleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	shuttle, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, shuttle)
}

// Update godoc
// @Summary Update shuttle
// @Tags Shuttles
// @Accept json
// @Produce json
// @Param id path string true "Shuttle ID"
// @Param payload body service.UpdateShuttleRequest true "Shuttle payload"
// @Success 200 {object} response.Envelope
// @Router /shuttles/{id} [put]
func (h *ShuttleHandler) Update(c *gin.Context) {
	var req service.UpdateShuttleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	shuttle, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shuttle, nil)
}

// SetStatus godoc
// @Summary Transition shuttle status
// @Tags Shuttles
// @Accept json
// @Produce json
// @Param id path string true "Shuttle ID"
// @Success 200 {object} response.Envelope
// @Router /shuttles/{id}/status [put]
func (h *ShuttleHandler) SetStatus(c *gin.Context) {
	var payload struct {
		Status models.ShuttleStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	shuttle, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shuttle, nil)
}
