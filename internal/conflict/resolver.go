package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

// Resolver evaluates candidate assignments against existing schedules.
type Resolver struct {
	schedules   ScheduleSource
	maintenance MaintenanceSource
	drivers     DriverDirectory
	shuttles    ShuttleDirectory
	cfg         Config
}

// NewResolver wires the resolver with its read-only data sources.
func NewResolver(schedules ScheduleSource, maintenance MaintenanceSource, drivers DriverDirectory, shuttles ShuttleDirectory, cfg Config) *Resolver {
	return &Resolver{
		schedules:   schedules,
		maintenance: maintenance,
		drivers:     drivers,
		shuttles:    shuttles,
		cfg:         cfg.withDefaults(),
	}
}

// WithScheduleSource returns a copy of the resolver that reads schedules
// from src instead of the wired source. Configuration and the remaining
// sources are shared with the receiver.
func (r *Resolver) WithScheduleSource(src ScheduleSource) *Resolver {
	clone := *r
	clone.schedules = src
	return &clone
}

// HasConflict reports whether the candidate collides with any active
// schedule on the same date within the tolerance window. Short-circuits on
// the first collision.
func (r *Resolver) HasConflict(ctx context.Context, cand Candidate) (bool, error) {
	candMin, err := validateCandidate(cand, true)
	if err != nil {
		return false, err
	}

	rows, err := r.schedules.ListForDate(ctx, cand.Date)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules for date")
	}

	for i := range rows {
		if len(r.collisions(cand, candMin, &rows[i])) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ConflictDetails collects every collision for the candidate, one Detail
// per dimension per colliding schedule. It shares the matching predicate
// with HasConflict, so the two can never disagree: HasConflict is true
// exactly when ConflictDetails is non-empty.
func (r *Resolver) ConflictDetails(ctx context.Context, cand Candidate) ([]Detail, error) {
	candMin, err := validateCandidate(cand, true)
	if err != nil {
		return nil, err
	}

	rows, err := r.schedules.ListForDate(ctx, cand.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules for date")
	}

	details := make([]Detail, 0)
	for i := range rows {
		row := &rows[i]
		for _, kind := range r.collisions(cand, candMin, row) {
			details = append(details, Detail{
				Kind:            kind,
				ScheduleID:      row.ID,
				ConflictingTime: row.Time,
			})
		}
	}
	return details, nil
}

// collisions is the single matching predicate used by detection, reporting
// and suggestion probing. A row may collide on both dimensions at once.
func (r *Resolver) collisions(cand Candidate, candMin int, row *models.Schedule) []Kind {
	if row.Status != models.ScheduleStatusActive {
		return nil
	}
	if cand.ExcludeID != "" && row.ID == cand.ExcludeID {
		return nil
	}

	rowMin, err := parseClock(row.Time)
	if err != nil {
		// Unparseable stored times cannot be compared; skip rather than block.
		return nil
	}
	if !withinTolerance(candMin, rowMin, r.cfg.Tolerance) {
		return nil
	}

	var kinds []Kind
	if cand.DriverID != "" && row.DriverID == cand.DriverID {
		kinds = append(kinds, KindDriver)
	}
	if cand.ShuttleID != "" && row.ShuttleID == cand.ShuttleID {
		kinds = append(kinds, KindShuttle)
	}
	return kinds
}

func withinTolerance(a, b int, tolerance time.Duration) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= int(tolerance.Minutes())
}

// validateCandidate checks date/time syntax and id presence, returning the
// candidate time as minutes since midnight. With requireBoth set the
// candidate must name a driver and a shuttle; the suggestion engine relaxes
// this to at least one of the two.
func validateCandidate(cand Candidate, requireBoth bool) (int, error) {
	if requireBoth && (cand.DriverID == "" || cand.ShuttleID == "") {
		return 0, appErrors.Clone(appErrors.ErrValidation, "driver_id and shuttle_id are required")
	}
	if cand.DriverID == "" && cand.ShuttleID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "at least one of driver_id or shuttle_id is required")
	}
	if cand.Date == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if _, err := time.Parse("2006-01-02", cand.Date); err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", cand.Date))
	}
	if cand.Time == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "time is required")
	}
	candMin, err := parseClock(cand.Time)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid time %q, expected HH:MM", cand.Time))
	}
	return candMin, nil
}

// parseClock converts a wall-clock string to minutes since midnight.
// Accepts HH:MM and HH:MM:SS; seconds are ignored.
func parseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		t, err = time.Parse("15:04:05", raw)
		if err != nil {
			return 0, fmt.Errorf("parse clock %q: %w", raw, err)
		}
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
