package models

import "time"

// Route represents a shuttle route between two endpoints.
type Route struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Origin      string    `db:"origin" json:"origin"`
	Destination string    `db:"destination" json:"destination"`
	DistanceKM  float64   `db:"distance_km" json:"distance_km"`
	DurationMin int       `db:"duration_min" json:"duration_min"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RouteFilter captures filtering options for listing routes.
type RouteFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
