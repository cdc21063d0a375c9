package chunking

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxTokens     = 450
	DefaultOverlapTokens = 70
)

// sentence end punctuation followed by whitespace, or a blank line
var boundaryRe = regexp.MustCompile(`[.!?]\s+|\n\n+`)

// Chunk is one emitted fragment. The first Overlap sentences are carried over
// from the previous chunk.
type Chunk struct {
	Text      string
	Sentences []string
	Overlap   int
	Tokens    int
}

type Chunker struct {
	tokenizer     Tokenizer
	maxTokens     int
	overlapTokens int
}

func NewChunker(tokenizer Tokenizer, maxTokens, overlapTokens int) *Chunker {
	if tokenizer == nil {
		tokenizer = EstimateTokenizer{}
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &Chunker{
		tokenizer:     tokenizer,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
	}
}

func (c *Chunker) Tokenizer() Tokenizer {
	return c.tokenizer
}

// Split returns the fragment texts for text.
func (c *Chunker) Split(text string) []string {
	chunks := c.SplitDetailed(text)
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}

// SplitDetailed splits text into sentence-aligned chunks of at most maxTokens,
// each seeded with trailing sentences of its predecessor worth at least
// overlapTokens. A sentence longer than maxTokens becomes its own chunk.
// Overlap is best-effort next to such a sentence: the seed is dropped both
// before and after it, so those neighbours share nothing.
func (c *Chunker) SplitDetailed(text string) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if c.tokenizer.Count(trimmed) <= c.maxTokens {
		return []Chunk{{
			Text:      trimmed,
			Sentences: []string{trimmed},
			Tokens:    c.tokenizer.Count(trimmed),
		}}
	}

	sentences := SplitSentences(trimmed)
	counts := make(map[string]int, len(sentences))
	count := func(s string) int {
		if n, ok := counts[s]; ok {
			return n
		}
		n := c.tokenizer.Count(s)
		counts[s] = n
		return n
	}

	var (
		chunks  []Chunk
		current []string
		tokens  int
		seeded  int
	)

	for _, sentence := range sentences {
		st := count(sentence)

		if len(current) > 0 && tokens+st > c.maxTokens {
			if len(current) > seeded {
				chunks = append(chunks, c.newChunk(current, seeded))
				current = c.overlapTail(current, count)
				seeded = len(current)
				tokens = 0
				for _, s := range current {
					tokens += count(s)
				}
			}
			// drop leading seed sentences until the new sentence fits
			for len(current) > 0 && tokens+st > c.maxTokens {
				tokens -= count(current[0])
				current = current[1:]
				seeded--
			}
		}

		current = append(current, sentence)
		tokens += st
	}

	if len(current) > seeded {
		chunks = append(chunks, c.newChunk(current, seeded))
	}

	if n := len(chunks); n > 1 && chunks[n-1].Text == chunks[n-2].Text {
		chunks = chunks[:n-1]
	}
	return chunks
}

func (c *Chunker) newChunk(sentences []string, overlap int) Chunk {
	kept := make([]string, len(sentences))
	copy(kept, sentences)
	text := strings.Join(kept, " ")
	return Chunk{
		Text:      text,
		Sentences: kept,
		Overlap:   overlap,
		Tokens:    c.tokenizer.Count(text),
	}
}

// overlapTail walks backwards from the end of sentences until the collected
// sentences reach overlapTokens, or every sentence has been taken.
func (c *Chunker) overlapTail(sentences []string, count func(string) int) []string {
	if c.overlapTokens == 0 {
		return nil
	}
	acc := 0
	start := len(sentences)
	for start > 0 && acc < c.overlapTokens {
		start--
		acc += count(sentences[start])
	}
	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail
}

// SplitSentences splits on sentence punctuation followed by whitespace and on
// blank lines. The punctuation stays with its sentence; empty pieces are dropped.
func SplitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range boundaryRe.FindAllStringIndex(text, -1) {
		end := loc[0]
		if text[loc[0]] != '\n' {
			end++
		}
		if s := strings.TrimSpace(text[last:end]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}
