package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	"github.com/fleetcircle/shuttle-ops-api/internal/service"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
	"github.com/fleetcircle/shuttle-ops-api/pkg/response"
)

// MaintenanceHandler manages maintenance record endpoints.
type MaintenanceHandler struct {
	service *service.MaintenanceService
}

// NewMaintenanceHandler constructs handler.
func NewMaintenanceHandler(svc *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: svc}
}

// List godoc
// @Summary List maintenance records
// @Tags Maintenance
// @Produce json
// @Param shuttleId query string false "Filter by shuttle"
// @Param status query string false "Filter by status (OPEN or CLOSED)"
// @Success 200 {object} response.Envelope
// @Router /maintenance [get]
func (h *MaintenanceHandler) List(c *gin.Context) {
	var filter models.MaintenanceFilter
	filter.ShuttleID = c.Query("shuttleId")
	if status := c.Query("status"); status != "" {
		typed := models.MaintenanceStatus(status)
		filter.Status = &typed
	}
	filter.Page, filter.PageSize = paginationFromQuery(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get maintenance record by id
// @Tags Maintenance
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id} [get]
func (h *MaintenanceHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Open godoc
// @Summary Open a maintenance record and sideline the shuttle
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body service.OpenMaintenanceRequest true "Maintenance payload"
// @Success 201 {object} response.Envelope
// @Router /maintenance [post]
func (h *MaintenanceHandler) Open(c *gin.Context) {
	var req service.OpenMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Close godoc
// @Summary Close a maintenance record
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body service.CloseMaintenanceRequest true "Close payload"
// @Success 200 {object} response.Envelope
// @Router /maintenance/{id}/close [put]
func (h *MaintenanceHandler) Close(c *gin.Context) {
	var req service.CloseMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.Close(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
