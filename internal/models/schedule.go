package models

import "time"

// ScheduleStatus enumerates assignment lifecycle states. Only active
// schedules participate in conflict checks.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "ACTIVE"
	ScheduleStatusInactive ScheduleStatus = "INACTIVE"
)

// Schedule represents a driver/shuttle assignment on a route for a given
// date and departure time. Date uses the 2006-01-02 layout, Time the
// 15:04 layout; both are local wall-clock values.
type Schedule struct {
	ID        string         `db:"id" json:"id"`
	DriverID  string         `db:"driver_id" json:"driver_id"`
	ShuttleID string         `db:"shuttle_id" json:"shuttle_id"`
	RouteID   string         `db:"route_id" json:"route_id"`
	ClientID  *string        `db:"client_id" json:"client_id,omitempty"`
	Date      string         `db:"date" json:"date"`
	Time      string         `db:"time" json:"time"`
	Status    ScheduleStatus `db:"status" json:"status"`
	Notes     *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	DriverID  string
	ShuttleID string
	RouteID   string
	Date      string
	Status    *ScheduleStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
