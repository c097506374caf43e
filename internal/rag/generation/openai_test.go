package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI("gpt-4o-mini", "")
	require.Error(t, err)

	client, err := NewOpenAI("gpt-4o-mini", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.ModelName())
}

func TestOpenAIGenerateSendsSamplingParams(t *testing.T) {
	var body struct {
		Model       string   `json:"model"`
		Temperature *float32 `json:"temperature"`
		MaxTokens   int      `json:"max_tokens"`
		TopP        float32  `json:"top_p"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Open the billing module. "}}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	o := &OpenAI{client: openai.NewClientWithConfig(cfg), model: "gpt-4o-mini"}

	text, err := o.Generate(context.Background(), "how do I create an invoice?")
	require.NoError(t, err)
	assert.Equal(t, "Open the billing module.", text)

	assert.Equal(t, "gpt-4o-mini", body.Model)
	require.NotNil(t, body.Temperature)
	assert.InDelta(t, 0.7, float64(*body.Temperature), 1e-6)
	assert.Equal(t, 800, body.MaxTokens)
	assert.InDelta(t, 0.9, float64(body.TopP), 1e-6)
}
