package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTimeSlotHourly(t *testing.T) {
	assert.Equal(t, []string{"08:00", "09:00"}, ExpandTimeSlot("08:00-09:59", time.Hour))
	assert.Equal(t, []string{"08:00", "09:00", "10:00"}, ExpandTimeSlot("08:00-10:00", time.Hour))
	assert.Equal(t, []string{"07:15"}, ExpandTimeSlot("07:15-07:15", time.Hour))
}

func TestExpandTimeSlotCustomInterval(t *testing.T) {
	got := ExpandTimeSlot("06:00-07:00", 30*time.Minute)
	assert.Equal(t, []string{"06:00", "06:30", "07:00"}, got)
}

func TestExpandTimeSlotZeroPadsSingleDigitHours(t *testing.T) {
	assert.Equal(t, []string{"08:00", "09:00"}, ExpandTimeSlot("8:00-9:30", time.Hour))
}

func TestExpandTimeSlotMalformed(t *testing.T) {
	for _, slot := range []string{
		"",
		"morning",
		"08:00",
		"08:00-",
		"-09:00",
		"08:00-09:00-10:00",
		"25:00-26:00",
		"08:00 to 09:00",
	} {
		assert.Nil(t, ExpandTimeSlot(slot, time.Hour), "slot %q", slot)
	}
}

func TestExpandTimeSlotStartAfterEnd(t *testing.T) {
	assert.Empty(t, ExpandTimeSlot("10:00-08:00", time.Hour))
}

func TestParseClock(t *testing.T) {
	got, ok := ParseClock("8:05")
	require.True(t, ok)
	assert.Equal(t, "08:05", got)

	got, ok = ParseClock(" 14:30 ")
	require.True(t, ok)
	assert.Equal(t, "14:30", got)

	for _, input := range []string{"", "24:00", "12:60", "8.30", "eight", "08:0"} {
		_, ok := ParseClock(input)
		assert.False(t, ok, "input %q", input)
	}
}

func TestBuildGroupsAndUnions(t *testing.T) {
	records := []RawRecord{
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 1, Direction: "N", TimeSlot: "08:00-09:59"},
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 1, Direction: "N", TimeSlot: "09:00-10:00"},
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 2, Direction: "N", TimeSlot: "12:00-12:30"},
	}

	services := Build(records, time.Hour)
	require.Len(t, services, 2)

	first := services[0]
	assert.Equal(t, "BUS-1", first.ID)
	assert.Equal(t, "Route A", first.RouteName)
	assert.Equal(t, 1, first.BusTypeNumber)
	assert.Equal(t, DefaultCapacity, first.Capacity)
	assert.Equal(t, []string{"08:00", "09:00", "10:00"}, first.DepartureTimes)

	second := services[1]
	assert.Equal(t, "BUS-2", second.ID)
	assert.Equal(t, 2, second.BusTypeNumber)
	assert.Equal(t, []string{"12:00"}, second.DepartureTimes)
}

func TestBuildDropsGroupsWithoutDepartures(t *testing.T) {
	records := []RawRecord{
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 1, Direction: "N", TimeSlot: "bogus"},
		{RouteID: "2", RouteName: "Route B", BusTypeNumber: 1, Direction: "S", TimeSlot: "06:00-06:30"},
	}

	services := Build(records, time.Hour)
	require.Len(t, services, 1)
	// The surviving group takes the first identifier.
	assert.Equal(t, "BUS-1", services[0].ID)
	assert.Equal(t, "Route B", services[0].RouteName)
}

func TestBuildKeepsFirstAppearanceOrder(t *testing.T) {
	records := []RawRecord{
		{RouteID: "9", RouteName: "Route Z", BusTypeNumber: 1, Direction: "N", TimeSlot: "07:00-07:00"},
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 1, Direction: "N", TimeSlot: "08:00-08:00"},
	}
	services := Build(records, time.Hour)
	require.Len(t, services, 2)
	assert.Equal(t, "Route Z", services[0].RouteName)
	assert.Equal(t, "Route A", services[1].RouteName)
}

func TestNewRejectsEmptyCatalog(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestScheduleLookups(t *testing.T) {
	services := Build([]RawRecord{
		{RouteID: "1", RouteName: "Route B", BusTypeNumber: 1, Direction: "N", TimeSlot: "08:00-09:00"},
		{RouteID: "2", RouteName: "Route A", BusTypeNumber: 1, Direction: "S", TimeSlot: "08:00-08:00"},
	}, time.Hour)
	sched, err := New(services)
	require.NoError(t, err)

	assert.Equal(t, []string{"Route A", "Route B"}, sched.RouteNames())
	assert.Equal(t, 2, sched.Len())

	name, ok := sched.CanonicalRoute("  route a ")
	require.True(t, ok)
	assert.Equal(t, "Route A", name)
	_, ok = sched.CanonicalRoute("Route C")
	assert.False(t, ok)

	svc, ok := sched.ByID("BUS-1")
	require.True(t, ok)
	assert.Equal(t, "Route B", svc.RouteName)
	_, ok = sched.ByID("BUS-99")
	assert.False(t, ok)
}

func TestScheduleMatchExact(t *testing.T) {
	services := Build([]RawRecord{
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 1, Direction: "N", TimeSlot: "08:00-09:59"},
		{RouteID: "1", RouteName: "Route A", BusTypeNumber: 2, Direction: "N", TimeSlot: "08:00-08:00"},
		{RouteID: "2", RouteName: "Route B", BusTypeNumber: 1, Direction: "S", TimeSlot: "08:00-09:00"},
	}, time.Hour)
	sched, err := New(services)
	require.NoError(t, err)

	matches := sched.Match("Route A", "08:00")
	require.Len(t, matches, 2)

	assert.Empty(t, sched.Match("Route A", "08:30"))
	assert.Empty(t, sched.Match("Route C", "08:00"))
}

func TestReadCSV(t *testing.T) {
	src := strings.Join([]string{
		"route_id,bus_route,bus_type_num,direction,time_slot,notes",
		"1,Route A,1,N,08:00-09:59,express",
		"1,Route A,not-a-number,N,10:00-11:00,skipped",
		"2,Route B,2,S,06:00-06:30,local",
	}, "\n")

	records, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, RawRecord{RouteID: "1", RouteName: "Route A", BusTypeNumber: 1, Direction: "N", TimeSlot: "08:00-09:59"}, records[0])
	assert.Equal(t, "Route B", records[1].RouteName)
}

func TestReadCSVSkipsShortRows(t *testing.T) {
	src := strings.Join([]string{
		"route_id,bus_route,bus_type_num,direction,time_slot",
		"1,Route A",
		"2,Route B,1,S,07:00-07:30",
	}, "\n")

	records, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Route B", records[0].RouteName)
}

func TestReadCSVMissingColumn(t *testing.T) {
	src := "route_id,bus_route,direction,time_slot\n1,Route A,N,08:00-09:00"
	_, err := Read(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus_type_num")
}
