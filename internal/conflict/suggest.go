package conflict

import (
	"context"
	"fmt"

	appErrors "github.com/fleetcircle/shuttle-ops-api/pkg/errors"
)

// Resolve searches for alternatives that clear the conflict along three
// axes: substitute shuttle, substitute driver, and nearby time slots.
// Results are grouped in that order, each pass capped at MaxPerAxis. An
// empty resolution is a normal outcome meaning manual scheduling is needed.
func (r *Resolver) Resolve(ctx context.Context, cand Candidate) (Resolution, error) {
	candMin, err := validateCandidate(cand, false)
	if err != nil {
		return Resolution{}, err
	}

	suggestions := make([]Suggestion, 0)

	pass, err := r.shuttleAlternatives(ctx, cand)
	if err != nil {
		return Resolution{}, err
	}
	suggestions = append(suggestions, pass...)

	pass, err = r.driverAlternatives(ctx, cand)
	if err != nil {
		return Resolution{}, err
	}
	suggestions = append(suggestions, pass...)

	pass, err = r.timeAlternatives(ctx, cand, candMin)
	if err != nil {
		return Resolution{}, err
	}
	suggestions = append(suggestions, pass...)

	return Resolution{Found: len(suggestions) > 0, Suggestions: suggestions}, nil
}

// shuttleAlternatives probes the shuttle pool for a replacement vehicle.
// Shuttles under maintenance never qualify.
func (r *Resolver) shuttleAlternatives(ctx context.Context, cand Candidate) ([]Suggestion, error) {
	if cand.DriverID == "" {
		// Changing the shuttle cannot help unless a driver is fixed.
		return nil, nil
	}

	maintained, err := r.maintenance.MaintainedShuttleIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load maintained shuttles")
	}
	pool, err := r.shuttles.ListActiveShuttles(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load shuttle pool")
	}

	out := make([]Suggestion, 0, r.cfg.MaxPerAxis)
	for i := range pool {
		shuttle := pool[i]
		if shuttle.ID == cand.ShuttleID {
			continue
		}
		if _, down := maintained[shuttle.ID]; down {
			continue
		}

		probe := cand
		probe.ShuttleID = shuttle.ID
		conflicted, err := r.HasConflict(ctx, probe)
		if err != nil {
			return nil, err
		}
		if conflicted {
			continue
		}

		out = append(out, Suggestion{
			Type:    SuggestionShuttleAlternative,
			Message: fmt.Sprintf("Shuttle %s (%s) is free at %s on %s", shuttle.PlateNumber, shuttle.Model, cand.Time, cand.Date),
			Shuttle: &shuttle,
		})
		if len(out) >= r.cfg.MaxPerAxis {
			break
		}
	}
	return out, nil
}

// driverAlternatives probes the active driver roster for a replacement.
func (r *Resolver) driverAlternatives(ctx context.Context, cand Candidate) ([]Suggestion, error) {
	if cand.ShuttleID == "" {
		return nil, nil
	}

	pool, err := r.drivers.ListActiveDrivers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load driver pool")
	}

	out := make([]Suggestion, 0, r.cfg.MaxPerAxis)
	for i := range pool {
		driver := pool[i]
		if driver.ID == cand.DriverID {
			continue
		}

		probe := cand
		probe.DriverID = driver.ID
		conflicted, err := r.HasConflict(ctx, probe)
		if err != nil {
			return nil, err
		}
		if conflicted {
			continue
		}

		out = append(out, Suggestion{
			Type:    SuggestionDriverAlternative,
			Message: fmt.Sprintf("Driver %s is available at %s on %s", driver.FullName, cand.Time, cand.Date),
			Driver:  &driver,
		})
		if len(out) >= r.cfg.MaxPerAxis {
			break
		}
	}
	return out, nil
}

// timeAlternatives steps outward from the requested time in TimeStep
// increments, earlier and later alternately, keeping the original driver
// and shuttle. Probes are clamped to the same calendar day; there is no
// cross-midnight wraparound.
func (r *Resolver) timeAlternatives(ctx context.Context, cand Candidate, candMin int) ([]Suggestion, error) {
	if cand.DriverID == "" || cand.ShuttleID == "" {
		return nil, nil
	}

	const dayMinutes = 24 * 60
	stepMin := int(r.cfg.TimeStep.Minutes())
	radiusMin := int(r.cfg.SearchRadius.Minutes())

	out := make([]Suggestion, 0, r.cfg.MaxPerAxis)
	for offset := stepMin; offset <= radiusMin && len(out) < r.cfg.MaxPerAxis; offset += stepMin {
		for _, dir := range []int{-1, +1} {
			probeMin := candMin + dir*offset
			if probeMin < 0 || probeMin >= dayMinutes {
				continue
			}

			probe := cand
			probe.Time = formatClock(probeMin)
			conflicted, err := r.HasConflict(ctx, probe)
			if err != nil {
				return nil, err
			}
			if conflicted {
				continue
			}

			kind := SuggestionTimeLater
			word := "later"
			if dir < 0 {
				kind = SuggestionTimeEarlier
				word = "earlier"
			}
			out = append(out, Suggestion{
				Type:    kind,
				Message: fmt.Sprintf("Slot %s (%d min %s) is free for the same driver and shuttle", probe.Time, offset, word),
				Time:    probe.Time,
			})
			if len(out) >= r.cfg.MaxPerAxis {
				break
			}
		}
	}
	return out, nil
}
