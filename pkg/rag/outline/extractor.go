// Package outline asks the model for a book's table of contents and falls
// back to a single root topic when it cannot get one.
package outline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/topictree"
)

// IndexPages is how many leading pages are sent as the table of contents.
const IndexPages = 10

const systemPrompt = `You convert the table of contents of a book into JSON.
Rules:
- Chapters are level 1, sections level 2, subsections level 3.
- Give the page where each entry starts.
- Keep the reading order.
Answer only with: {"topics":[{"name":"Title","level":1,"page":5}]}`

type response struct {
	Topics []topictree.OutlineEntry `json:"topics"`
}

type Extractor struct {
	llm    llm.LLMProvider
	logger logger.ILogger
}

func NewExtractor(provider llm.LLMProvider, log logger.ILogger) *Extractor {
	return &Extractor{llm: provider, logger: log}
}

// Extract never fails: model errors and unusable answers yield
// topictree.DefaultOutline.
func (e *Extractor) Extract(ctx context.Context, indexText string) []topictree.OutlineEntry {
	if strings.TrimSpace(indexText) == "" || e.llm == nil {
		return topictree.DefaultOutline()
	}

	raw, err := e.llm.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: "TABLE OF CONTENTS:\n" + indexText},
	}, llm.WithJSON(), llm.WithTemperature(0))
	if err != nil {
		e.logger.Warn("OutlineExtractor", "Outline request failed, using default outline", map[string]interface{}{"error": err.Error()})
		return topictree.DefaultOutline()
	}

	entries, err := Parse(raw)
	if err != nil || len(entries) == 0 {
		e.logger.Warn("OutlineExtractor", "Unusable outline, using default outline", map[string]interface{}{"error": fmt.Sprint(err)})
		return topictree.DefaultOutline()
	}
	return entries
}

// Parse reads the model answer, tolerating a surrounding code fence. Entries
// without a name are dropped; missing levels and pages become 1.
func Parse(raw string) ([]topictree.OutlineEntry, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}

	out := make([]topictree.OutlineEntry, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		if t.Level < 1 {
			t.Level = 1
		}
		if t.Page < 1 {
			t.Page = 1
		}
		out = append(out, t)
	}
	return out, nil
}
