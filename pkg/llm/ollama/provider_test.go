package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "hola"}, Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "persona"},
		{Role: "model", Content: "antes"},
		{Role: llm.RoleUser, Content: "pregunta"},
	}, llm.WithJSON(), llm.WithMaxTokens(50))

	require.NoError(t, err)
	assert.Equal(t, "hola", out)
	assert.False(t, got.Stream)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, 50, got.Options.NumPredict)
	assert.Equal(t, llm.RoleAssistant, got.Messages[1].Role)
}

func TestOllamaProvider_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range []string{"Una ", "variable ", "guarda datos."} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	var deltas []string
	p := NewOllamaProvider(srv.URL, "llama3")
	full, err := p.Stream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "x"}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Una variable guarda datos.", full)
	assert.Equal(t, []string{"Una ", "variable ", "guarda datos."}, deltas)
}

func TestOllamaProvider_StatusIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "llama3").Generate(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrRateLimited)
}
