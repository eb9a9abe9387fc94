package models

import "time"

// Driver represents a shuttle driver on the fleet roster.
type Driver struct {
	ID            string     `db:"id" json:"id"`
	CompanyID     string     `db:"company_id" json:"company_id"`
	Email         string     `db:"email" json:"email"`
	FullName      string     `db:"full_name" json:"full_name"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	LicenseNumber string     `db:"license_number" json:"license_number"`
	LicenseExpiry *time.Time `db:"license_expiry" json:"license_expiry,omitempty"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// DriverFilter captures filtering options for listing drivers.
type DriverFilter struct {
	CompanyID string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
