package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTutorProfile(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		profile, err := LoadTutorProfile("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPersona, profile.Persona)
		assert.Empty(t, profile.Intents.Advance)
	})

	t.Run("file overrides only what it sets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tutor.yaml")
		body := "persona: Eres Ada, tutora de Python.\nintents:\n  advance:\n    - dale\n    - next\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		profile, err := LoadTutorProfile(path)
		require.NoError(t, err)
		assert.Equal(t, "Eres Ada, tutora de Python.", profile.Persona)
		assert.Equal(t, []string{"dale", "next"}, profile.Intents.Advance)
		assert.Equal(t, DefaultNoContextMessage, profile.NoContextMessage)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTutorProfile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("persona: [unclosed"), 0o600))
		_, err := LoadTutorProfile(path)
		assert.Error(t, err)
	})
}

func TestLoad_ReadsTypedValues(t *testing.T) {
	t.Setenv("RAG_MIN_SCORE", "0.4")
	t.Setenv("RAG_TOP_K", "8")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RAG_VECTOR_WEIGHT", "not-a-number")

	cfg := Load()
	assert.Equal(t, 0.4, cfg.Rag.MinScore)
	assert.Equal(t, 8, cfg.Rag.TopK)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "30s", cfg.Rag.RateLimitWindow.String())
	assert.Equal(t, 0.7, cfg.Rag.VectorWeight)
}
