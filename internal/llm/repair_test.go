package llm

import (
	"testing"

	"github.com/spark-corp/redshadow/pkg/models"
)

func assistantWithCall(id string) models.Message {
	return models.Message{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: id, Name: "nmap_scan"}}}
}

func toolResultFor(id string) models.Message {
	return models.Message{Role: models.RoleTool, ToolResults: []models.ToolResult{{ToolCallID: id, Content: "ok"}}}
}

func TestRepairTranscriptConsistentInputUnchanged(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "go"},
		assistantWithCall("call-1"),
		toolResultFor("call-1"),
		{Role: models.RoleAssistant, Content: "done"},
	}
	repaired := RepairTranscript(history)
	if len(repaired) != len(history) {
		t.Fatalf("expected consistent history to pass through unchanged, got %d vs %d messages", len(repaired), len(history))
	}
}

func TestRepairTranscriptSynthesizesUnresolvedToolCall(t *testing.T) {
	history := []models.Message{
		assistantWithCall("call-1"),
		{Role: models.RoleAssistant, Content: "moving on"},
	}
	repaired := RepairTranscript(history)

	assertEveryToolCallResolved(t, repaired)
}

func TestRepairTranscriptDemotesOrphanToolResult(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleTool, ToolResults: []models.ToolResult{{ToolCallID: "ghost", Content: "x"}}},
	}
	repaired := RepairTranscript(history)
	if len(repaired) != 1 {
		t.Fatalf("expected orphan demoted, not dropped, got %d messages", len(repaired))
	}
	if repaired[0].Role != models.RoleSystem {
		t.Errorf("orphan demoted role = %v, want system", repaired[0].Role)
	}
}

func TestRepairTranscriptDropsEmptyRoleMessages(t *testing.T) {
	history := []models.Message{
		{Role: "", Content: "junk"},
		{Role: models.RoleUser, Content: "hi"},
	}
	repaired := RepairTranscript(history)
	if len(repaired) != 1 {
		t.Fatalf("expected empty-role message dropped, got %d", len(repaired))
	}
}

func TestRepairTranscriptIsIdempotent(t *testing.T) {
	history := []models.Message{
		assistantWithCall("call-1"),
		{Role: models.RoleTool, ToolResults: []models.ToolResult{{ToolCallID: "orphan", Content: "x"}}},
		{Role: models.RoleAssistant, Content: "done"},
	}
	once := RepairTranscript(history)
	twice := RepairTranscript(once)
	if len(once) != len(twice) {
		t.Fatalf("not idempotent: %d vs %d messages", len(once), len(twice))
	}
	for i := range once {
		if once[i].Role != twice[i].Role || once[i].Content != twice[i].Content {
			t.Errorf("message %d differs between passes: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

// assertEveryToolCallResolved checks invariant 6: every assistant tool_call
// has a matching tool message earlier than the next assistant message.
func assertEveryToolCallResolved(t *testing.T, history []models.Message) {
	t.Helper()
	pending := map[string]bool{}
	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			for id := range pending {
				t.Errorf("tool_call %s unresolved before next assistant message", id)
			}
			pending = map[string]bool{}
			for _, c := range msg.ToolCalls {
				pending[c.ID] = true
			}
		case models.RoleTool:
			for _, r := range msg.ToolResults {
				delete(pending, r.ToolCallID)
			}
		}
	}
}
