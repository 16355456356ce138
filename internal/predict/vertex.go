package predict

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/busly/routafare/core/logger"
)

// VertexOptions identify a deployed Vertex AI prediction endpoint.
type VertexOptions struct {
	EndpointID string
	Project    string
	Location   string
}

// VertexPredictor submits feature rows to a deployed tabular model.
type VertexPredictor struct {
	client   *aiplatform.PredictionClient
	endpoint string
}

// NewVertexPredictor dials the regional prediction service. It fails with
// ErrNotConfigured when any of the endpoint settings is missing.
func NewVertexPredictor(ctx context.Context, opts VertexOptions) (*VertexPredictor, error) {
	if opts.EndpointID == "" || opts.Project == "" || opts.Location == "" {
		return nil, ErrNotConfigured
	}
	apiEndpoint := fmt.Sprintf("%s-aiplatform.googleapis.com:443", opts.Location)
	client, err := aiplatform.NewPredictionClient(ctx, option.WithEndpoint(apiEndpoint))
	if err != nil {
		return nil, fmt.Errorf("predict: create vertex client: %w", err)
	}
	return &VertexPredictor{
		client: client,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/endpoints/%s",
			opts.Project, opts.Location, opts.EndpointID),
	}, nil
}

// Predict sends one instance and decodes the first returned prediction.
func (p *VertexPredictor) Predict(ctx context.Context, f Features) (float64, error) {
	instance, err := structpb.NewValue(map[string]any{
		"distance_km":       f.DistanceKm,
		"bus_type_num":      f.BusTypeNumber,
		"age_group_num":     f.AgeGroupIndex,
		"traffic_level_num": f.TrafficLevelIndex,
	})
	if err != nil {
		return 0, fmt.Errorf("predict: encode instance: %w", err)
	}

	resp, err := p.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  p.endpoint,
		Instances: []*structpb.Value{instance},
	})
	if err != nil {
		return 0, fmt.Errorf("predict: vertex predict: %w", err)
	}
	predictions := resp.GetPredictions()
	if len(predictions) == 0 {
		return 0, fmt.Errorf("predict: vertex returned no predictions")
	}

	raw, err := decodePrediction(predictions[0])
	if err != nil {
		return 0, err
	}
	logger.Debug(ctx, "predict", "vertex.predicted", slog.Float64("fare", raw))
	return raw, nil
}

// Close releases the underlying gRPC connection.
func (p *VertexPredictor) Close() error {
	return p.client.Close()
}

// decodePrediction extracts a numeric fare from one model output value.
// Tabular endpoints answer a bare number, a numeric string, or an object
// carrying the number under "value".
func decodePrediction(v *structpb.Value) (float64, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, nil
	case *structpb.Value_StringValue:
		fare, err := strconv.ParseFloat(kind.StringValue, 64)
		if err != nil {
			return 0, fmt.Errorf("predict: non-numeric prediction %q", kind.StringValue)
		}
		return fare, nil
	case *structpb.Value_StructValue:
		if inner, ok := kind.StructValue.GetFields()["value"]; ok {
			return decodePrediction(inner)
		}
	}
	return 0, fmt.Errorf("predict: unsupported prediction shape %T", v.GetKind())
}
