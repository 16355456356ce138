package store

import "sync"

// BookingStore is the append-only record of confirmed bookings, written
// through to its JSON file as a single array.
type BookingStore struct {
	mu       sync.Mutex
	path     string
	bookings []Booking
}

// OpenBookings loads existing bookings from path. A missing, empty or
// unreadable file yields an empty store.
func OpenBookings(path string) *BookingStore {
	s := &BookingStore{path: path}
	readJSONFile(path, &s.bookings)
	return s
}

// Append records a confirmed booking and persists the store.
func (s *BookingStore) Append(b Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, b)
	writeJSONFile(s.path, s.bookings)
}

// All returns a copy of every booking recorded so far.
func (s *BookingStore) All() []Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Booking, len(s.bookings))
	copy(out, s.bookings)
	return out
}

// Count reports how many bookings have been recorded.
func (s *BookingStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}
