package models

import "time"

// FleetOverview aggregates counters shown on the admin dashboard.
type FleetOverview struct {
	ActiveShuttles     int       `json:"active_shuttles"`
	ShuttlesInWorkshop int       `json:"shuttles_in_workshop"`
	RetiredShuttles    int       `json:"retired_shuttles"`
	ActiveDrivers      int       `json:"active_drivers"`
	SchedulesToday     int       `json:"schedules_today"`
	OpenMaintenance    int       `json:"open_maintenance"`
	GeneratedAt        time.Time `json:"generated_at"`
}
