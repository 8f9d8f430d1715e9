package llm

import (
	"fmt"
	"strings"

	"github.com/spark-corp/redshadow/pkg/models"
)

// estimateTokens uses a 4-chars-per-token heuristic when no tokenizer is
// wired in, matching the Router's documented fallback.
func estimateTokens(messages []models.Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
		for _, tc := range m.ToolCalls {
			chars += len(tc.Name) + len(tc.Input)
		}
		for _, tr := range m.ToolResults {
			chars += len(tr.Content)
		}
	}
	return chars / 4
}

const keepTailNonSystem = 8

// CompactConversation replaces the middle span of a conversation with one
// synthetic user message once the estimated token count exceeds
// ratio*contextLimit. System messages and the last keepTailNonSystem
// non-system messages are always preserved. Idempotent: if there are too few
// messages to shrink below the threshold, compaction is skipped.
func CompactConversation(messages []models.Message, contextLimit int, ratio float64) []models.Message {
	if contextLimit <= 0 {
		contextLimit = 128_000
	}
	if ratio <= 0 {
		ratio = 0.85
	}
	threshold := int(float64(contextLimit) * ratio)
	if estimateTokens(messages) <= threshold {
		return messages
	}

	var systemMsgs []models.Message
	var nonSystem []models.Message
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			systemMsgs = append(systemMsgs, m)
		} else {
			nonSystem = append(nonSystem, m)
		}
	}

	if len(nonSystem) <= keepTailNonSystem {
		// Too few non-system messages to usefully compact; skip.
		return messages
	}

	splitAt := len(nonSystem) - keepTailNonSystem
	dropped := nonSystem[:splitAt]
	tail := nonSystem[splitAt:]

	summary := summarizeDropped(dropped)

	out := make([]models.Message, 0, len(systemMsgs)+1+len(tail))
	out = append(out, systemMsgs...)
	out = append(out, models.Message{
		Role:    models.RoleUser,
		Content: summary,
	})
	out = append(out, tail...)
	return out
}

func summarizeDropped(dropped []models.Message) string {
	var b strings.Builder
	b.WriteString("[conversation compacted — prior messages summarized]\n")
	for _, m := range dropped {
		text := m.Content
		if len(text) > 100 {
			text = text[:100]
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, text)
	}
	fmt.Fprintf(&b, "(%d messages omitted)", len(dropped))
	return b.String()
}
