package llm

import "github.com/spark-corp/redshadow/pkg/models"

// RepairTranscript enforces conversation consistency (fix_message_list):
// empty-role messages are dropped; tool_call ids emitted by an assistant
// message are tracked until a matching tool message arrives; orphan tool
// results (no matching pending call) are demoted to system informational
// notes instead of being dropped; and any tool_call left pending when the
// next assistant message starts is paired with a synthetic tool message
// before that boundary, so every tool_call has a response preceding the
// next assistant turn.
//
// RepairTranscript is idempotent: running it twice returns the same result.
func RepairTranscript(history []models.Message) []models.Message {
	if len(history) == 0 {
		return history
	}

	pending := make(map[string]bool)
	pendingOrder := make([]string, 0)
	repaired := make([]models.Message, 0, len(history))

	flushUnresolved := func() {
		for _, id := range pendingOrder {
			repaired = append(repaired, models.Message{
				Role: models.RoleTool,
				ToolResults: []models.ToolResult{{
					ToolCallID: id,
					Content:    "execution interrupted — no response for " + id,
					IsError:    true,
				}},
			})
		}
		pending = make(map[string]bool)
		pendingOrder = pendingOrder[:0]
	}

	for _, msg := range history {
		if msg.Role == "" {
			continue
		}

		switch msg.Role {
		case models.RoleAssistant:
			flushUnresolved()
			if len(msg.ToolCalls) > 0 {
				for _, call := range msg.ToolCalls {
					if call.ID == "" {
						continue
					}
					pending[call.ID] = true
					pendingOrder = append(pendingOrder, call.ID)
				}
			}
			repaired = append(repaired, msg)

		case models.RoleTool:
			if len(msg.ToolResults) == 0 {
				continue
			}
			var matched []models.ToolResult
			var orphaned []models.ToolResult
			for _, result := range msg.ToolResults {
				res := result
				if res.ToolCallID == "" && len(pendingOrder) > 0 {
					res.ToolCallID = pendingOrder[0]
				}
				if res.ToolCallID != "" && pending[res.ToolCallID] {
					delete(pending, res.ToolCallID)
					pendingOrder = removePendingID(pendingOrder, res.ToolCallID)
					matched = append(matched, res)
				} else {
					orphaned = append(orphaned, res)
				}
			}
			if len(matched) > 0 {
				copied := msg
				copied.ToolResults = matched
				repaired = append(repaired, copied)
			}
			for _, o := range orphaned {
				repaired = append(repaired, models.Message{
					Role:    models.RoleSystem,
					Content: "informational: orphaned tool result for " + o.ToolCallID + ": " + o.Content,
				})
			}

		default:
			repaired = append(repaired, msg)
		}
	}

	// Any tool_calls still pending at the end of history get synthetic
	// responses too, so a subsequent Router call always sees a consistent
	// sequence.
	flushUnresolved()

	return repaired
}

func removePendingID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			copy(ids[i:], ids[i+1:])
			return ids[:len(ids)-1]
		}
	}
	return ids
}
