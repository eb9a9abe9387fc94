package models

import "time"

// MaintenanceStatus enumerates maintenance record lifecycle states.
type MaintenanceStatus string

const (
	MaintenanceStatusOpen   MaintenanceStatus = "OPEN"
	MaintenanceStatusClosed MaintenanceStatus = "CLOSED"
)

// MaintenanceRecord tracks service work performed on a shuttle. An open
// record marks the shuttle unavailable for scheduling.
type MaintenanceRecord struct {
	ID          string            `db:"id" json:"id"`
	ShuttleID   string            `db:"shuttle_id" json:"shuttle_id"`
	Description string            `db:"description" json:"description"`
	Status      MaintenanceStatus `db:"status" json:"status"`
	Cost        *float64          `db:"cost" json:"cost,omitempty"`
	StartedAt   time.Time         `db:"started_at" json:"started_at"`
	ClosedAt    *time.Time        `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// MaintenanceFilter captures filtering options for listing maintenance records.
type MaintenanceFilter struct {
	ShuttleID string
	Status    *MaintenanceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
