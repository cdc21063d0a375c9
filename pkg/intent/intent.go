// Package intent maps a student message onto one of three closed intents by
// exact keyword membership after normalisation.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Intent string

const (
	Advance  Intent = "ADVANCE"
	Location Intent = "LOCATION"
	Question Intent = "QUESTION"
)

var (
	DefaultAdvanceKeywords = []string{
		"siguiente", "continuar", "continua", "sigue", "seguir", "avanzar", "avanza",
		"adelante", "ok siguiente", "vale siguiente", "listo", "proximo",
		"next", "continue", "go on", "go ahead", "move on", "keep going",
	}
	DefaultLocationKeywords = []string{
		"donde estoy", "en que tema estoy", "en que tema voy", "que tema estoy viendo",
		"por donde voy", "mi progreso", "ubicacion",
		"where am i", "what topic am i on", "my progress",
	}
)

// Classifier holds the normalised keyword sets.
type Classifier struct {
	advance  map[string]struct{}
	location map[string]struct{}
}

// NewClassifier builds a classifier; nil keyword lists fall back to the defaults.
func NewClassifier(advance, location []string) *Classifier {
	if advance == nil {
		advance = DefaultAdvanceKeywords
	}
	if location == nil {
		location = DefaultLocationKeywords
	}
	return &Classifier{
		advance:  toSet(advance),
		location: toSet(location),
	}
}

// Classify returns Advance or Location when the whole normalised message is a
// known keyword, and Question otherwise.
func (c *Classifier) Classify(text string) Intent {
	key := Normalize(text)
	if key == "" {
		return Question
	}
	if _, ok := c.advance[key]; ok {
		return Advance
	}
	if _, ok := c.location[key]; ok {
		return Location
	}
	return Question
}

var defaultClassifier = NewClassifier(nil, nil)

// Classify uses the default keyword sets.
func Classify(text string) Intent {
	return defaultClassifier.Classify(text)
}

// Normalize lower-cases, strips accents and surrounding punctuation, and
// collapses internal whitespace.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	folded = strings.TrimFunc(folded, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
	return strings.Join(strings.Fields(folded), " ")
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if k := Normalize(w); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
