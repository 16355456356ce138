package predict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestClampFare(t *testing.T) {
	assert.InDelta(t, 12.35, ClampFare(12.3456), 1e-9)
	assert.InDelta(t, 7.13, ClampFare(7.125), 1e-9)
	assert.Equal(t, 20.0, ClampFare(20.0))
	assert.Equal(t, 5.0, ClampFare(3.2))
	assert.Equal(t, 5.0, ClampFare(0))
	assert.Equal(t, 5.0, ClampFare(-4))
}

func TestUnconfiguredPredictor(t *testing.T) {
	_, err := Unconfigured{}.Predict(context.Background(), Features{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewVertexPredictorRequiresSettings(t *testing.T) {
	for _, opts := range []VertexOptions{
		{},
		{EndpointID: "123"},
		{EndpointID: "123", Project: "demo"},
		{Project: "demo", Location: "asia-south1"},
	} {
		_, err := NewVertexPredictor(context.Background(), opts)
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
}

func TestDecodePrediction(t *testing.T) {
	got, err := decodePrediction(structpb.NewNumberValue(17.4))
	require.NoError(t, err)
	assert.Equal(t, 17.4, got)

	got, err = decodePrediction(structpb.NewStringValue("22.50"))
	require.NoError(t, err)
	assert.Equal(t, 22.5, got)

	wrapped, err := structpb.NewValue(map[string]any{"value": 9.75})
	require.NoError(t, err)
	got, err = decodePrediction(wrapped)
	require.NoError(t, err)
	assert.Equal(t, 9.75, got)

	_, err = decodePrediction(structpb.NewStringValue("cheap"))
	assert.Error(t, err)

	_, err = decodePrediction(structpb.NewBoolValue(true))
	assert.Error(t, err)
}
