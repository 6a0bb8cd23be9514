package embedding

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mohammadjaf013/findlanqbot/internal/providers"
)

const DefaultVertexModel = "text-multilingual-embedding-002"

// VertexEmbedding calls the Vertex AI text-embedding publisher models.
type VertexEmbedding struct {
	client   *aiplatform.PredictionClient
	endpoint string
	dim      int

	TaskType string
}

func NewVertexEmbedding(ctx context.Context, projectID, location, model string, dim int) (*VertexEmbedding, error) {
	if projectID == "" || location == "" {
		return nil, errors.New("vertex embedding: project and location are required")
	}
	if model == "" {
		model = DefaultVertexModel
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vertex embedding: invalid dimension %d", dim)
	}

	c, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)))
	if err != nil {
		return nil, err
	}
	return &VertexEmbedding{
		client:   c,
		endpoint: fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", projectID, location, model),
		dim:      dim,
		TaskType: "SEMANTIC_SIMILARITY",
	}, nil
}

func (v *VertexEmbedding) Dim() int     { return v.dim }
func (v *VertexEmbedding) Close() error { return v.client.Close() }

func (v *VertexEmbedding) EmbedContent(ctx context.Context, text string) ([]float32, error) {
	instance, err := structpb.NewValue(map[string]any{
		"content":   text,
		"task_type": v.TaskType,
	})
	if err != nil {
		return nil, err
	}
	params, err := structpb.NewValue(map[string]any{
		"outputDimensionality": v.dim,
	})
	if err != nil {
		return nil, err
	}

	resp, err := v.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GetPredictions()) == 0 {
		return nil, &providers.StatusError{Provider: "vertex-embedding", StatusCode: 502, Message: "empty prediction"}
	}

	values := resp.GetPredictions()[0].GetStructValue().GetFields()["embeddings"].
		GetStructValue().GetFields()["values"].GetListValue().GetValues()
	out := make([]float32, len(values))
	for i, val := range values {
		out[i] = float32(val.GetNumberValue())
	}
	return out, nil
}
