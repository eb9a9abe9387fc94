// Package conflict implements schedule conflict detection and resolution
// for driver/shuttle assignments. It is stateless: every check runs against
// snapshots supplied by the data sources, and all outcomes are structured
// values rather than errors.
package conflict

import (
	"context"
	"time"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

// Candidate describes an intended assignment under evaluation. ExcludeID
// carries the schedule's own id during updates so a record does not
// conflict with itself.
type Candidate struct {
	DriverID  string `json:"driver_id"`
	ShuttleID string `json:"shuttle_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	ExcludeID string `json:"exclude_id,omitempty"`
}

// Kind identifies which dimension of a candidate collided.
type Kind string

const (
	KindDriver  Kind = "driver"
	KindShuttle Kind = "shuttle"
)

// Detail describes a single collision against a pre-existing schedule.
type Detail struct {
	Kind            Kind   `json:"kind"`
	ScheduleID      string `json:"schedule_id"`
	ConflictingTime string `json:"conflicting_time"`
}

// SuggestionType identifies which axis of the candidate was varied.
type SuggestionType string

const (
	SuggestionShuttleAlternative SuggestionType = "shuttle_alternative"
	SuggestionDriverAlternative  SuggestionType = "driver_alternative"
	SuggestionTimeEarlier        SuggestionType = "time_alternative_earlier"
	SuggestionTimeLater          SuggestionType = "time_alternative_later"
)

// Suggestion proposes one change that clears the detected conflict.
// Exactly one payload field is set depending on Type.
type Suggestion struct {
	Type    SuggestionType  `json:"type"`
	Message string          `json:"message"`
	Shuttle *models.Shuttle `json:"shuttle,omitempty"`
	Driver  *models.Driver  `json:"driver,omitempty"`
	Time    string          `json:"time,omitempty"`
}

// Resolution is the suggestion engine outcome. Found=false with an empty
// list means manual scheduling is required; it is not an error.
type Resolution struct {
	Found       bool         `json:"found"`
	Suggestions []Suggestion `json:"suggestions"`
}

// ScheduleSource supplies all schedule rows for one calendar date.
type ScheduleSource interface {
	ListForDate(ctx context.Context, date string) ([]models.Schedule, error)
}

// StaticSource serves a fixed slice of schedules as a ScheduleSource. It is
// used for re-checking a candidate against rows already locked inside a
// transaction, so the check and the write see the same snapshot.
type StaticSource []models.Schedule

func (s StaticSource) ListForDate(_ context.Context, date string) ([]models.Schedule, error) {
	out := make([]models.Schedule, 0, len(s))
	for _, row := range s {
		if row.Date == date {
			out = append(out, row)
		}
	}
	return out, nil
}

// MaintenanceSource reports which shuttles are currently under maintenance.
type MaintenanceSource interface {
	MaintainedShuttleIDs(ctx context.Context) (map[string]struct{}, error)
}

// DriverDirectory supplies the active driver pool for alternatives.
type DriverDirectory interface {
	ListActiveDrivers(ctx context.Context) ([]models.Driver, error)
}

// ShuttleDirectory supplies the shuttle pool for alternatives.
type ShuttleDirectory interface {
	ListActiveShuttles(ctx context.Context) ([]models.Shuttle, error)
}

// Config tunes the resolver. Zero values fall back to the defaults below.
type Config struct {
	// Tolerance is the symmetric proximity window: two assignments whose
	// times are at most this far apart collide. Inclusive boundary.
	Tolerance time.Duration
	// TimeStep is the increment used when probing alternate time slots.
	TimeStep time.Duration
	// SearchRadius bounds how far from the requested time slots are probed.
	SearchRadius time.Duration
	// MaxPerAxis caps the suggestions each pass may contribute.
	MaxPerAxis int
}

const (
	DefaultTolerance    = 30 * time.Minute
	DefaultTimeStep     = 15 * time.Minute
	DefaultSearchRadius = 2 * time.Hour
	DefaultMaxPerAxis   = 3
)

func (c Config) withDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.TimeStep <= 0 {
		c.TimeStep = DefaultTimeStep
	}
	if c.SearchRadius <= 0 {
		c.SearchRadius = DefaultSearchRadius
	}
	if c.MaxPerAxis <= 0 {
		c.MaxPerAxis = DefaultMaxPerAxis
	}
	return c
}
