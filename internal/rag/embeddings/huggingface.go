package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ReckonAssist/internal/rag/interfaces"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co/pipeline/feature-extraction/"

// HuggingFaceModel calls the HuggingFace Inference API feature-extraction
// pipeline for a hosted embedding model.
type HuggingFaceModel struct {
	client  *http.Client
	model   string
	apiKey  string
	baseURL string
}

// NewHuggingFaceModel creates a HuggingFace embedding client. An empty
// baseURL selects the public Inference API endpoint.
func NewHuggingFaceModel(apiKey, modelName, baseURL string) (*HuggingFaceModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("huggingface api key is required")
	}
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	return &HuggingFaceModel{
		client:  &http.Client{Timeout: 30 * time.Second},
		model:   modelName,
		apiKey:  apiKey,
		baseURL: baseURL,
	}, nil
}

type hfRequest struct {
	Inputs  string    `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Embed requests an embedding for a single text. The API answers with a
// flat numeric array, or a single-element nested array for some models;
// both shapes are accepted.
func (m *HuggingFaceModel) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(hfRequest{
		Inputs:  text,
		Options: hfOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+m.model, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	return decodeVector(body)
}

func decodeVector(body []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	return nil, fmt.Errorf("malformed embedding response: %s", truncateForError(body))
}

func truncateForError(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

var _ interfaces.EmbeddingModel = (*HuggingFaceModel)(nil)
