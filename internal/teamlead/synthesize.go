package teamlead

import (
	"context"
	"fmt"
	"strings"

	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/pkg/models"
)

// synthesize asks the Router to turn completed-task results into an
// executive summary, per spec §4.8 step 5.
func (tl *TeamLead) synthesize(ctx context.Context, allTasks []*models.Task) (string, error) {
	var b strings.Builder
	for _, t := range allTasks {
		switch t.Status {
		case models.TaskComplete:
			fmt.Fprintf(&b, "- [%s] %s: %s\n", t.Type, t.ID, truncate(t.Result, 800))
		case models.TaskFailed:
			fmt.Fprintf(&b, "- [%s] %s FAILED: %s\n", t.Type, t.ID, truncate(t.Error, 400))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no terminal tasks to synthesize")
	}

	resp, err := tl.router.Chat(ctx, llm.ChatRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: synthesisSystemPrompt},
			{Role: models.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("synthesis returned empty content")
	}
	return resp.Content, nil
}

const synthesisSystemPrompt = `Summarize the following penetration-test task results into a concise
executive summary for a non-technical stakeholder: what was tested, what was
found (ranked by severity), and what remains unresolved. Do not invent
findings not present in the input.`

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
