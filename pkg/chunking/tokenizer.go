package chunking

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens for a piece of text.
type Tokenizer interface {
	Count(text string) int
}

// EstimateTokenizer approximates tokens as one token per four characters.
// It is not exact; it is only used when a real encoding is unavailable.
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// TiktokenTokenizer counts tokens with a BPE encoding (cl100k_base by default).
type TiktokenTokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// NewDefaultTokenizer returns the cl100k_base tokenizer, or the estimator when
// the encoding cannot be loaded (offline hosts, missing BPE cache).
func NewDefaultTokenizer() Tokenizer {
	tok, err := NewTiktokenTokenizer("cl100k_base")
	if err != nil {
		return EstimateTokenizer{}
	}
	return tok
}
