package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldano/reagent/internal/config"
)

func TestOllamaGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "say hi", req.Prompt)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "hi", Done: true})
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "test-model")
	out, err := provider.GenerateText(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestOllamaGenerateText_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "m").GenerateText(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 500")
}

func TestOllamaDefaults(t *testing.T) {
	p := NewOllamaProvider("", "")
	assert.Equal(t, "http://localhost:11434", p.baseURL)
	assert.Equal(t, "qwen2.5:latest", p.model)
}

func TestOpenAIGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "say hi", req.Messages[0].Content)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hi from openai"}},
			},
		})
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "sk-test", "gpt-4o")
	out, err := provider.GenerateText(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hi from openai", out)
}

func TestOpenAIGenerateText_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(srv.URL, "", "m").GenerateText(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestBuild(t *testing.T) {
	p, err := Build(config.Config{LLMProvider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)

	p, err = Build(config.Config{LLMProvider: ""})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)

	p, err = Build(config.Config{LLMProvider: "openai", LLMBaseURL: "https://api.openai.com/v1"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	_, err = Build(config.Config{LLMProvider: "claude-desktop"})
	require.Error(t, err)
}
