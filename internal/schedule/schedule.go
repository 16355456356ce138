package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultCapacity is the seat count every derived service operates with.
const DefaultCapacity = 50

// RawRecord is one row of the schedule source file.
type RawRecord struct {
	RouteID       string
	RouteName     string
	BusTypeNumber int
	Direction     string
	TimeSlot      string
}

// BusService is a bookable service derived from grouped raw records.
// DepartureTimes are distinct, zero-padded "HH:MM" strings in ascending order.
type BusService struct {
	ID             string   `json:"bus_id"`
	RouteID        string   `json:"route_id"`
	RouteName      string   `json:"bus_route"`
	BusTypeNumber  int      `json:"bus_type_num"`
	Direction      string   `json:"direction"`
	Capacity       int      `json:"capacity"`
	DepartureTimes []string `json:"departure_times"`
}

type groupKey struct {
	routeID   string
	routeName string
	busType   int
	direction string
}

// Build groups raw records by (route id, route name, bus type, direction)
// in first-appearance order, expands every time slot and unions the results
// per group. Groups whose slots all fail to parse are dropped; surviving
// groups receive sequential BUS-<n> identifiers.
func Build(records []RawRecord, interval time.Duration) []BusService {
	if interval <= 0 {
		interval = time.Hour
	}

	order := make([]groupKey, 0, len(records))
	departures := make(map[groupKey]map[string]struct{}, len(records))

	for _, rec := range records {
		key := groupKey{
			routeID:   rec.RouteID,
			routeName: rec.RouteName,
			busType:   rec.BusTypeNumber,
			direction: rec.Direction,
		}
		set, ok := departures[key]
		if !ok {
			set = make(map[string]struct{})
			departures[key] = set
			order = append(order, key)
		}
		for _, t := range ExpandTimeSlot(rec.TimeSlot, interval) {
			set[t] = struct{}{}
		}
	}

	services := make([]BusService, 0, len(order))
	for _, key := range order {
		set := departures[key]
		if len(set) == 0 {
			continue
		}
		times := make([]string, 0, len(set))
		for t := range set {
			times = append(times, t)
		}
		sort.Strings(times)
		services = append(services, BusService{
			ID:             fmt.Sprintf("BUS-%d", len(services)+1),
			RouteID:        key.routeID,
			RouteName:      key.routeName,
			BusTypeNumber:  key.busType,
			Direction:      key.direction,
			Capacity:       DefaultCapacity,
			DepartureTimes: times,
		})
	}
	return services
}

// Schedule is the immutable service catalog shared by all handlers.
// It is built once at startup and safe for concurrent reads.
type Schedule struct {
	services   []BusService
	byID       map[string]int
	routeNames []string
}

// New wraps built services into a catalog. A catalog without services is
// refused: the bot cannot serve bookings against an empty schedule.
func New(services []BusService) (*Schedule, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("schedule: no bookable services derived from source data")
	}

	byID := make(map[string]int, len(services))
	nameSet := make(map[string]struct{})
	for i, svc := range services {
		byID[svc.ID] = i
		nameSet[svc.RouteName] = struct{}{}
	}
	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Schedule{
		services:   services,
		byID:       byID,
		routeNames: names,
	}, nil
}

// Load reads, groups and expands the schedule source in one step.
func Load(path string, interval time.Duration) (*Schedule, error) {
	records, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(Build(records, interval))
}

// Services returns the full catalog. Callers must treat it as read-only.
func (s *Schedule) Services() []BusService {
	return s.services
}

// Len reports the number of bookable services.
func (s *Schedule) Len() int {
	return len(s.services)
}

// RouteNames returns the sorted distinct route names of the catalog.
func (s *Schedule) RouteNames() []string {
	return s.routeNames
}

// CanonicalRoute resolves user-typed input to a stored route name,
// ignoring case and surrounding whitespace.
func (s *Schedule) CanonicalRoute(input string) (string, bool) {
	needle := strings.TrimSpace(input)
	for _, name := range s.routeNames {
		if strings.EqualFold(name, needle) {
			return name, true
		}
	}
	return "", false
}

// ByID returns the service with the given identifier.
func (s *Schedule) ByID(id string) (BusService, bool) {
	i, ok := s.byID[id]
	if !ok {
		return BusService{}, false
	}
	return s.services[i], true
}

// Match returns the services operating the route with a departure exactly
// equal to the requested time. Both sides are compared in the canonical
// zero-padded "HH:MM" form.
func (s *Schedule) Match(routeName, departure string) []BusService {
	var out []BusService
	for _, svc := range s.services {
		if svc.RouteName != routeName {
			continue
		}
		for _, t := range svc.DepartureTimes {
			if t == departure {
				out = append(out, svc)
				break
			}
		}
	}
	return out
}
