package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spark-corp/redshadow/internal/tools"
)

// compressOutput implements spec §4.3's per-call tool-output compression,
// bounded by maxChars. Error results are passed through as their error
// string, since the LLM needs to see the failure reason verbatim to
// self-correct.
func compressOutput(result tools.Result, maxChars int) string {
	if !result.Success {
		if result.Error != "" {
			return result.Error
		}
		return "tool execution failed"
	}

	raw := result.RawOutput
	if raw == "" {
		return raw
	}

	if isJSON(raw) {
		pretty, err := prettyJSON(raw)
		if err == nil {
			if len(pretty) <= maxChars {
				return pretty
			}
			return fmt.Sprintf("%s\n[JSON TRUNCATED: %d total chars]", pretty[:maxChars], len(pretty))
		}
	}

	lines := strings.Split(raw, "\n")
	if len(lines) <= 100 {
		if len(raw) <= maxChars {
			return raw
		}
		return fmt.Sprintf("%s\n[TRUNCATED: %d total chars]", raw[:maxChars], len(raw))
	}

	head := strings.Join(lines[:30], "\n")
	tail := strings.Join(lines[len(lines)-30:], "\n")
	header := fmt.Sprintf("[%s] %d lines, %d chars — first 30 + last 30:\n", result.Tool, len(lines), len(raw))
	return header + head + "\n... [MIDDLE OMITTED] ...\n" + tail
}

func isJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func prettyJSON(s string) (string, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
