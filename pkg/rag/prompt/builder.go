package prompt

import (
	"fmt"
	"strings"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/pkg/llm"
)

// NoContextMarker fills the reference block when nothing relevant was found.
// The system guidelines tell the model what it means.
const NoContextMarker = "NO_CONTEXT"

// Builder turns retrieved fragments and chat memory into model messages.
type Builder struct {
	persona string
}

func NewBuilder(persona string) *Builder {
	return &Builder{persona: persona}
}

// Answer builds the messages for a question: system persona and rules, the
// prior turns, then the reference material followed by the question.
func (b *Builder) Answer(history []llm.Message, question string, fragments []*entity.ScoredFragment) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.system()})
	messages = append(messages, history...)

	var user strings.Builder
	user.WriteString(BuildContext(fragments))
	user.WriteString("<student_question>\n")
	user.WriteString(strings.TrimSpace(question))
	user.WriteString("\n</student_question>")

	return append(messages, llm.Message{Role: llm.RoleUser, Content: user.String()})
}

// Explain builds the messages that present one fragment the student just
// advanced to.
func (b *Builder) Explain(topic *entity.Topic, fragment *entity.KnowledgeFragment, instruction string) []llm.Message {
	scored := &entity.ScoredFragment{Fragment: fragment, TopicName: topic.Name, BookId: topic.BookId, Sequence: topic.Sequence}

	var user strings.Builder
	user.WriteString(BuildContext([]*entity.ScoredFragment{scored}))
	user.WriteString("<task>\n")
	user.WriteString(instruction)
	user.WriteString("\n</task>")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: b.system()},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

func (b *Builder) system() string {
	var s strings.Builder
	s.WriteString(b.persona)
	s.WriteString("\n\n<guidelines>\n")
	s.WriteString("- Answer only with what the reference material says.\n")
	s.WriteString("- Cite the topic of the excerpt you rely on.\n")
	s.WriteString("- Keep code exactly as written in the excerpts.\n")
	s.WriteString("- If the reference material is " + NoContextMarker + ", say the book does not cover it and suggest continuing the lesson. Do not answer from general knowledge.\n")
	s.WriteString("</guidelines>")
	return s.String()
}

// BuildContext renders fragments in the given order, each headed by its
// outline breadcrumb. An empty list renders the no-context marker.
func BuildContext(fragments []*entity.ScoredFragment) string {
	var s strings.Builder
	s.WriteString("<reference_material>\n")
	if len(fragments) == 0 {
		s.WriteString(NoContextMarker)
		s.WriteString("\n</reference_material>\n\n")
		return s.String()
	}

	for i, f := range fragments {
		fmt.Fprintf(&s, "[%d] %s\n", i+1, heading(f))
		if f.Fragment.ContentType == entity.ContentTypeCode {
			s.WriteString("```\n")
			s.WriteString(f.Fragment.Content)
			s.WriteString("\n```\n")
		} else {
			s.WriteString(f.Fragment.Content)
			s.WriteString("\n")
		}
		if i < len(fragments)-1 {
			s.WriteString("\n")
		}
	}
	s.WriteString("</reference_material>\n\n")
	return s.String()
}

func heading(f *entity.ScoredFragment) string {
	if crumb, ok := f.Fragment.Metadata["breadcrumb"].(string); ok && crumb != "" {
		return crumb
	}
	if f.TopicName != "" {
		return f.TopicName
	}
	return "Fragment"
}

// History maps stored chat messages to model messages, dropping anything
// that is neither a user nor an assistant turn.
func History(messages []*entity.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleUser, llm.RoleAssistant:
			out = append(out, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return out
}
