package conflict

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

type fakeSchedules struct {
	rows []models.Schedule
	err  error
}

func (f *fakeSchedules) ListForDate(_ context.Context, date string) ([]models.Schedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Schedule
	for _, row := range f.rows {
		if row.Date == date {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeMaintenance struct {
	ids []string
}

func (f *fakeMaintenance) MaintainedShuttleIDs(context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(f.ids))
	for _, id := range f.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

type fakeDrivers struct {
	pool []models.Driver
}

func (f *fakeDrivers) ListActiveDrivers(context.Context) ([]models.Driver, error) {
	return f.pool, nil
}

type fakeShuttles struct {
	pool []models.Shuttle
}

func (f *fakeShuttles) ListActiveShuttles(context.Context) ([]models.Shuttle, error) {
	return f.pool, nil
}

func newTestResolver(rows []models.Schedule) *Resolver {
	return NewResolver(&fakeSchedules{rows: rows}, &fakeMaintenance{}, &fakeDrivers{}, &fakeShuttles{}, Config{})
}

func active(id, driverID, shuttleID, date, clock string) models.Schedule {
	return models.Schedule{
		ID:        id,
		DriverID:  driverID,
		ShuttleID: shuttleID,
		RouteID:   "r1",
		Date:      date,
		Time:      clock,
		Status:    models.ScheduleStatusActive,
	}
}

func TestDetectorDriverConflictWithinTolerance(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
	})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	assert.True(t, conflicted)

	details, err := resolver.ConflictDetails(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, KindDriver, details[0].Kind)
	assert.Equal(t, "08:00", details[0].ConflictingTime)
}

func TestDetectorClearOutsideTolerance(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
	})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d2", ShuttleID: "v1", Date: "2024-06-01", Time: "09:00",
	})
	require.NoError(t, err)
	assert.False(t, conflicted)
}

func TestDetectorToleranceBoundaryInclusive(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
	})

	atBoundary, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:30",
	})
	require.NoError(t, err)
	assert.True(t, atBoundary, "30 minutes apart must still conflict")

	pastBoundary, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:31",
	})
	require.NoError(t, err)
	assert.False(t, pastBoundary, "31 minutes apart must be clear")
}

func TestDetectorExcludeIDSkipsSelf(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
	})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:00", ExcludeID: "s1",
	})
	require.NoError(t, err)
	assert.False(t, conflicted)
}

func TestDetectorIgnoresInactiveSchedules(t *testing.T) {
	row := active("s1", "d1", "v1", "2024-06-01", "08:00")
	row.Status = models.ScheduleStatusInactive
	resolver := newTestResolver([]models.Schedule{row})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:00",
	})
	require.NoError(t, err)
	assert.False(t, conflicted)
}

func TestDetectorIgnoresOtherDates(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-02", "08:00"),
	})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:00",
	})
	require.NoError(t, err)
	assert.False(t, conflicted)
}

func TestReporterCollectsBothDimensions(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
		active("s2", "d2", "v2", "2024-06-01", "08:20"),
	})

	details, err := resolver.ConflictDetails(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:10",
	})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, KindDriver, details[0].Kind)
	assert.Equal(t, "s1", details[0].ScheduleID)
	assert.Equal(t, KindShuttle, details[1].Kind)
	assert.Equal(t, "s2", details[1].ScheduleID)
}

func TestReporterSameRowBothDimensions(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
	})

	details, err := resolver.ConflictDetails(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:00",
	})
	require.NoError(t, err)
	require.Len(t, details, 2)
}

// The detector and reporter share one predicate; this sweeps a range of
// candidates and checks the two always agree.
func TestDetectorReporterConsistency(t *testing.T) {
	rows := []models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "06:00"),
		active("s2", "d2", "v2", "2024-06-01", "08:00"),
		active("s3", "d1", "v3", "2024-06-01", "12:45"),
	}
	rows[2].Status = models.ScheduleStatusInactive
	resolver := newTestResolver(rows)

	for hour := 5; hour <= 13; hour++ {
		for _, minute := range []string{"00", "15", "29", "30", "31", "45"} {
			cand := Candidate{
				DriverID:  "d1",
				ShuttleID: "v2",
				Date:      "2024-06-01",
				Time:      fmt.Sprintf("%02d:%s", hour, minute),
			}
			conflicted, err := resolver.HasConflict(context.Background(), cand)
			require.NoError(t, err)
			details, err := resolver.ConflictDetails(context.Background(), cand)
			require.NoError(t, err)
			assert.Equal(t, conflicted, len(details) > 0, "time %s", cand.Time)
		}
	}
}

func TestDetectorValidatesInput(t *testing.T) {
	resolver := newTestResolver(nil)

	cases := []Candidate{
		{ShuttleID: "v1", Date: "2024-06-01", Time: "08:00"},
		{DriverID: "d1", Date: "2024-06-01", Time: "08:00"},
		{DriverID: "d1", ShuttleID: "v1", Time: "08:00"},
		{DriverID: "d1", ShuttleID: "v1", Date: "06/01/2024", Time: "08:00"},
		{DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01"},
		{DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "8 o'clock"},
	}
	for _, cand := range cases {
		_, err := resolver.HasConflict(context.Background(), cand)
		assert.Error(t, err, "candidate %+v", cand)
	}
}

func TestDetectorAcceptsSecondsInStoredTimes(t *testing.T) {
	resolver := newTestResolver([]models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00:00"),
	})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:25",
	})
	require.NoError(t, err)
	assert.True(t, conflicted)
}

func TestConfigurableTolerance(t *testing.T) {
	resolver := NewResolver(&fakeSchedules{rows: []models.Schedule{
		active("s1", "d1", "v1", "2024-06-01", "08:00"),
	}}, &fakeMaintenance{}, &fakeDrivers{}, &fakeShuttles{}, Config{Tolerance: 10 * time.Minute})

	conflicted, err := resolver.HasConflict(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	assert.False(t, conflicted, "15 minutes apart clears a 10 minute tolerance")
}
