package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Intent
	}{
		{"plain advance", "siguiente", Advance},
		{"case and spaces", "  SIGUIENTE  ", Advance},
		{"accent and punctuation", "¡Continúa!", Advance},
		{"english advance", "Next", Advance},
		{"collapsed whitespace", "go \t  on", Advance},
		{"location", "¿Dónde estoy?", Location},
		{"english location", "where am I", Location},
		{"keyword inside sentence is a question", "que es lo siguiente que debo estudiar", Question},
		{"question", "¿Qué es una variable?", Question},
		{"empty defaults to question", "   ", Question},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestNewClassifier_CustomKeywords(t *testing.T) {
	c := NewClassifier([]string{"Más"}, []string{})

	assert.Equal(t, Advance, c.Classify("mas"))
	assert.Equal(t, Question, c.Classify("siguiente"))
	assert.Equal(t, Question, c.Classify("donde estoy"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "en que tema voy", Normalize("¿En qué   tema voy?"))
	assert.Equal(t, "nino", Normalize("Niño"))
}
