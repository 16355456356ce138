// Package predict produces fare estimates for booking drafts. The real
// backend is a deployed Vertex AI tabular model; when its settings are
// absent every estimate fails with ErrNotConfigured so the dialogue can
// abort the search instead of inventing a price.
package predict

import (
	"context"
	"errors"
	"math"
)

// Feature values assumed when the rider never picked an option.
const (
	DefaultDistanceKm   = 1.0
	DefaultBusType      = 1
	DefaultAgeGroup     = 2 // Adult (20-59)
	DefaultTrafficLevel = 1 // Low (1)
)

// MinFare is the floor applied to every model estimate.
const MinFare = 5.0

// ErrNotConfigured reports that no prediction backend is available.
var ErrNotConfigured = errors.New("predict: fare predictor is not configured")

// Features is the model input for a single fare estimate.
type Features struct {
	DistanceKm        float64
	BusTypeNumber     int
	AgeGroupIndex     int
	TrafficLevelIndex int
}

// Predictor produces a raw fare estimate for one set of features.
type Predictor interface {
	Predict(ctx context.Context, f Features) (float64, error)
}

// Unconfigured is a Predictor that always fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Predict(context.Context, Features) (float64, error) {
	return 0, ErrNotConfigured
}

// ClampFare rounds a raw estimate to two decimals and applies the floor.
func ClampFare(raw float64) float64 {
	fare := math.Round(raw*100) / 100
	if fare < MinFare {
		return MinFare
	}
	return fare
}
