package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spark-corp/redshadow/pkg/models"
)

// renderPromptToolsRequest embeds every tool schema as a textual description
// in the system message and strips the native tools/tool_choice fields, for
// providers that rejected native tool calling.
func renderPromptToolsRequest(req ChatRequest) ChatRequest {
	if len(req.Tools) == 0 {
		return ChatRequest{Messages: req.Messages, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	}

	var b strings.Builder
	b.WriteString("\n\nYou have access to the following tools. To use one, respond with a JSON object ")
	b.WriteString(`of the form {"tool_call": {"name": "TOOL_NAME", "arguments": {...}}}.` + "\n\n")
	for _, t := range req.Tools {
		b.WriteString(renderToolDescription(t))
		b.WriteString("\n")
	}
	instructions := b.String()

	messages := append([]models.Message(nil), req.Messages...)
	injected := false
	for i := range messages {
		if messages[i].Role == models.RoleSystem {
			messages[i].Content += instructions
			injected = true
			break
		}
	}
	if !injected {
		messages = append([]models.Message{{Role: models.RoleSystem, Content: strings.TrimSpace(instructions)}}, messages...)
	}

	return ChatRequest{Messages: messages, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
}

func renderToolDescription(t models.ToolSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", t.Name, t.Description)
	var schema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(t.Parameters, &schema); err == nil && len(schema.Properties) > 0 {
		required := make(map[string]bool, len(schema.Required))
		for _, r := range schema.Required {
			required[r] = true
		}
		b.WriteString("; params: ")
		first := true
		for name, prop := range schema.Properties {
			if !first {
				b.WriteString(", ")
			}
			first = false
			req := "optional"
			if required[name] {
				req = "REQUIRED"
			}
			fmt.Fprintf(&b, "%s: %s (%s) — %s", name, prop.Type, req, prop.Description)
		}
	}
	return b.String()
}

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
var toolResponseSpan = regexp.MustCompile(`(?s)<tool_response>.*?</tool_response>`)

type promptToolCall struct {
	ToolCall *struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"tool_call"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// parsePromptToolCalls parses tool calls out of a free-text completion:
// first from any fenced ```json``` block, otherwise from every balanced
// top-level {...} JSON object found via a quote/escape-aware brace counter.
// Matched spans (and any hallucinated <tool_response>...</tool_response>
// spans) are stripped from the content.
func parsePromptToolCalls(resp ChatResponse) ChatResponse {
	text := resp.Content
	var calls []models.ToolCall

	if m := fencedJSONBlock.FindStringSubmatchIndex(text); m != nil {
		block := text[m[2]:m[3]]
		if call, ok := decodePromptToolCall(block); ok {
			calls = append(calls, call)
			text = text[:m[0]] + text[m[1]:]
		}
	}

	if len(calls) == 0 {
		spans := findBalancedJSONObjects(text)
		// Iterate in reverse so earlier byte offsets stay valid as we cut.
		for i := len(spans) - 1; i >= 0; i-- {
			sp := spans[i]
			candidate := text[sp.start:sp.end]
			if call, ok := decodePromptToolCall(candidate); ok {
				calls = append([]models.ToolCall{call}, calls...)
				text = text[:sp.start] + text[sp.end:]
			}
		}
	}

	text = toolResponseSpan.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	resp.Content = text
	resp.ToolCalls = append(resp.ToolCalls, calls...)
	return resp
}

func decodePromptToolCall(raw string) (models.ToolCall, bool) {
	var parsed promptToolCall
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.ToolCall{}, false
	}
	name := ""
	var args map[string]any
	if parsed.ToolCall != nil && parsed.ToolCall.Name != "" {
		name = parsed.ToolCall.Name
		args = parsed.ToolCall.Arguments
	} else if parsed.Name != "" {
		name = parsed.Name
		args = parsed.Arguments
	} else {
		return models.ToolCall{}, false
	}
	input, err := json.Marshal(args)
	if err != nil {
		input = []byte("{}")
	}
	return models.ToolCall{ID: uuid.NewString(), Name: name, Input: input}, true
}

type span struct{ start, end int }

// findBalancedJSONObjects scans text for top-level {...} spans using a brace
// counter that ignores braces inside quoted strings and respects escaping.
func findBalancedJSONObjects(text string) []span {
	var spans []span
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, span{start: start, end: i + 1})
					start = -1
				}
			}
		}
	}
	return spans
}
