package models

import "time"

// ShuttleStatus enumerates vehicle availability states.
type ShuttleStatus string

const (
	ShuttleStatusActive           ShuttleStatus = "ACTIVE"
	ShuttleStatusUnderMaintenance ShuttleStatus = "UNDER_MAINTENANCE"
	ShuttleStatusRetired          ShuttleStatus = "RETIRED"
)

// Shuttle represents a fleet vehicle.
type Shuttle struct {
	ID           string        `db:"id" json:"id"`
	CompanyID    string        `db:"company_id" json:"company_id"`
	PlateNumber  string        `db:"plate_number" json:"plate_number"`
	Model        string        `db:"model" json:"model"`
	Capacity     int           `db:"capacity" json:"capacity"`
	Status       ShuttleStatus `db:"status" json:"status"`
	Mileage      int           `db:"mileage" json:"mileage"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ShuttleFilter captures filtering options for listing shuttles.
type ShuttleFilter struct {
	CompanyID string
	Status    *ShuttleStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
