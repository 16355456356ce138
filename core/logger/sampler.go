package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler passes the first num events out of every den. A zero ratio
// means no sampling and every event passes.
type ratioSampler struct {
	mu      sync.Mutex
	num     int
	den     int
	counter int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set configures the sampling ratio.
func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		s.num, s.den, s.counter = 0, 0, 0
		return
	}
	if num > den {
		num = den
	}
	s.num = num
	s.den = den
	s.counter = 0
}

// Allow reports whether the current event passes the sampling window.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.num <= 0 || s.den <= 0 {
		return true
	}
	pos := s.counter
	s.counter++
	if s.counter >= s.den {
		s.counter = 0
	}
	return pos < s.num
}

// parseRatioSpec understands "n/m" and bare "m" (meaning 1/m). A zero or
// unparseable spec disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if numPart, denPart, found := strings.Cut(spec, "/"); found {
		num, err1 := strconv.Atoi(strings.TrimSpace(numPart))
		den, err2 := strconv.Atoi(strings.TrimSpace(denPart))
		if err1 == nil && err2 == nil {
			return num, den
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
