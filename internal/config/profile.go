package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPersona = "You are a patient tutor. Explain only what the provided book excerpts say, " +
		"in the student's language, with short examples when the excerpt has code."
	DefaultNoContextMessage = "No encuentro ese tema en tu libro. Prueba a preguntar por otra parte del contenido " +
		"o pide continuar con la lección."
)

// TutorProfile is the operator-tunable part of the tutor. The persona is
// passed to the model as is.
type TutorProfile struct {
	Persona          string         `yaml:"persona"`
	NoContextMessage string         `yaml:"no_context_message"`
	ExplainPrompt    string         `yaml:"explain_prompt"`
	Intents          IntentKeywords `yaml:"intents"`
}

// IntentKeywords replace the built-in phrase sets when non-empty.
type IntentKeywords struct {
	Advance  []string `yaml:"advance"`
	Location []string `yaml:"location"`
}

func DefaultTutorProfile() *TutorProfile {
	return &TutorProfile{
		Persona:          DefaultPersona,
		NoContextMessage: DefaultNoContextMessage,
		ExplainPrompt:    "Explica este fragmento del libro paso a paso.",
	}
}

// LoadTutorProfile reads the YAML profile at path. An empty path yields the
// defaults; fields missing from the file keep their default values.
func LoadTutorProfile(path string) (*TutorProfile, error) {
	profile := DefaultTutorProfile()
	if path == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tutor profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, profile); err != nil {
		return nil, fmt.Errorf("parse tutor profile %s: %w", path, err)
	}
	return profile, nil
}
