package dto

import "github.com/fleetcircle/shuttle-ops-api/internal/conflict"

// ConflictCheckRequest captures POST /schedules/conflict-check payload.
type ConflictCheckRequest struct {
	DriverID  string `json:"driver_id"`
	ShuttleID string `json:"shuttle_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	ExcludeID string `json:"exclude_id,omitempty"`
}

// ConflictCheckResponse reports whether the assignment collides and with what.
type ConflictCheckResponse struct {
	HasConflict bool              `json:"has_conflict"`
	Details     []conflict.Detail `json:"details"`
}
