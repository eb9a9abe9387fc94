package conflict

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcircle/shuttle-ops-api/internal/models"
)

func shuttle(id, plate string) models.Shuttle {
	return models.Shuttle{ID: id, CompanyID: "c1", PlateNumber: plate, Model: "Sprinter", Capacity: 12, Status: models.ShuttleStatusActive}
}

func driver(id, name string) models.Driver {
	return models.Driver{ID: id, CompanyID: "c1", FullName: name, Active: true}
}

func TestResolveProposesFreeShuttle(t *testing.T) {
	resolver := NewResolver(
		&fakeSchedules{rows: []models.Schedule{
			active("s1", "d1", "v1", "2024-06-01", "08:00"),
		}},
		&fakeMaintenance{},
		&fakeDrivers{},
		&fakeShuttles{pool: []models.Shuttle{shuttle("v1", "FL-001"), shuttle("v3", "FL-003")}},
		Config{},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d2", ShuttleID: "v1", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	assert.True(t, res.Found)

	var shuttleIDs []string
	for _, s := range res.Suggestions {
		if s.Type == SuggestionShuttleAlternative {
			require.NotNil(t, s.Shuttle)
			shuttleIDs = append(shuttleIDs, s.Shuttle.ID)
		}
	}
	assert.Contains(t, shuttleIDs, "v3")
}

func TestResolveNeverProposesMaintainedShuttle(t *testing.T) {
	resolver := NewResolver(
		&fakeSchedules{rows: []models.Schedule{
			active("s1", "d1", "v1", "2024-06-01", "08:00"),
		}},
		&fakeMaintenance{ids: []string{"v3"}},
		&fakeDrivers{},
		&fakeShuttles{pool: []models.Shuttle{shuttle("v1", "FL-001"), shuttle("v3", "FL-003")}},
		Config{},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d2", ShuttleID: "v1", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)

	for _, s := range res.Suggestions {
		if s.Type == SuggestionShuttleAlternative {
			assert.NotEqual(t, "v3", s.Shuttle.ID, "maintained shuttle must never be suggested")
		}
	}
}

func TestResolveProposesFreeDriver(t *testing.T) {
	resolver := NewResolver(
		&fakeSchedules{rows: []models.Schedule{
			active("s1", "d1", "v1", "2024-06-01", "08:00"),
		}},
		&fakeMaintenance{},
		&fakeDrivers{pool: []models.Driver{driver("d1", "Ana Ruiz"), driver("d2", "Ben Osei")}},
		&fakeShuttles{},
		Config{},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v2", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	require.True(t, res.Found)

	var found bool
	for _, s := range res.Suggestions {
		if s.Type == SuggestionDriverAlternative {
			require.NotNil(t, s.Driver)
			assert.Equal(t, "d2", s.Driver.ID)
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolveProposesNearbyTimeSlots(t *testing.T) {
	resolver := NewResolver(
		&fakeSchedules{rows: []models.Schedule{
			active("s1", "d1", "v1", "2024-06-01", "08:00"),
		}},
		&fakeMaintenance{},
		&fakeDrivers{},
		&fakeShuttles{},
		Config{},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	require.True(t, res.Found)

	var times []Suggestion
	for _, s := range res.Suggestions {
		if s.Type == SuggestionTimeEarlier || s.Type == SuggestionTimeLater {
			times = append(times, s)
		}
	}
	// Slots within 30 minutes of the 08:00 booking (08:00, 08:30, 07:45,
	// 07:30) must be skipped; the nearest clearing slot is 08:45.
	require.Len(t, times, 3)
	assert.Equal(t, SuggestionTimeLater, times[0].Type)
	assert.Equal(t, "08:45", times[0].Time)
	assert.Equal(t, SuggestionTimeLater, times[1].Type)
	assert.Equal(t, "09:00", times[1].Time)
	assert.Equal(t, SuggestionTimeEarlier, times[2].Type)
	assert.Equal(t, "07:15", times[2].Time)
}

func TestResolveGroupsAxesInStableOrder(t *testing.T) {
	resolver := NewResolver(
		&fakeSchedules{rows: []models.Schedule{
			active("s1", "d1", "v1", "2024-06-01", "08:00"),
		}},
		&fakeMaintenance{},
		&fakeDrivers{pool: []models.Driver{driver("d2", "Ben Osei")}},
		&fakeShuttles{pool: []models.Shuttle{shuttle("v3", "FL-003")}},
		Config{},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)
	require.True(t, res.Found)

	rank := func(s SuggestionType) int {
		switch s {
		case SuggestionShuttleAlternative:
			return 0
		case SuggestionDriverAlternative:
			return 1
		default:
			return 2
		}
	}
	for i := 1; i < len(res.Suggestions); i++ {
		assert.LessOrEqual(t, rank(res.Suggestions[i-1].Type), rank(res.Suggestions[i].Type))
	}
}

func TestResolveCapsSuggestionsPerAxis(t *testing.T) {
	pool := []models.Shuttle{}
	for _, id := range []string{"v2", "v3", "v4", "v5", "v6"} {
		pool = append(pool, shuttle(id, "FL-"+id))
	}
	resolver := NewResolver(
		&fakeSchedules{rows: []models.Schedule{
			active("s1", "d1", "v1", "2024-06-01", "08:00"),
		}},
		&fakeMaintenance{},
		&fakeDrivers{},
		&fakeShuttles{pool: pool},
		Config{MaxPerAxis: 2},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d2", ShuttleID: "v1", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err)

	var count int
	for _, s := range res.Suggestions {
		if s.Type == SuggestionShuttleAlternative {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestResolveNoResolutionIsNotAnError(t *testing.T) {
	// Every shuttle, driver and nearby slot is blocked: d1 and v1 are
	// booked solid across the whole search radius, the only other shuttle
	// is in the workshop and the only other driver is booked too.
	rows := []models.Schedule{}
	id := 0
	for minute := 6 * 60; minute <= 11*60; minute += 30 {
		id++
		rows = append(rows,
			active(sid("a", id), "d1", "v9", "2024-06-01", formatClock(minute)),
			active(sid("b", id), "d9", "v1", "2024-06-01", formatClock(minute)),
			active(sid("c", id), "d2", "v8", "2024-06-01", formatClock(minute)),
		)
	}
	resolver := NewResolver(
		&fakeSchedules{rows: rows},
		&fakeMaintenance{ids: []string{"v2"}},
		&fakeDrivers{pool: []models.Driver{driver("d2", "Ben Osei")}},
		&fakeShuttles{pool: []models.Shuttle{shuttle("v2", "FL-002")}},
		Config{},
	)

	res, err := resolver.Resolve(context.Background(), Candidate{
		DriverID: "d1", ShuttleID: "v1", Date: "2024-06-01", Time: "08:15",
	})
	require.NoError(t, err, "exhausted search must not be an error")
	assert.False(t, res.Found)
	assert.Empty(t, res.Suggestions)
}

func TestResolveValidatesInput(t *testing.T) {
	resolver := newTestResolver(nil)

	_, err := resolver.Resolve(context.Background(), Candidate{Date: "2024-06-01", Time: "08:00"})
	assert.Error(t, err, "driver and shuttle both missing")

	_, err = resolver.Resolve(context.Background(), Candidate{DriverID: "d1", Time: "08:00"})
	assert.Error(t, err, "missing date")
}

func sid(prefix string, n int) string {
	return prefix + "-" + strconv.Itoa(n)
}
