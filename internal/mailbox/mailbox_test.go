package mailbox

import (
	"context"
	"testing"

	"github.com/spark-corp/redshadow/pkg/models"
)

func TestSendThenReceiveIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.Register("lead")
	m.Register("worker-1")

	_ = m.Send(ctx, "worker-1", "lead", models.MsgTaskComplete, map[string]any{"task_id": "T1"})

	first, _ := m.Receive(ctx, "lead", true)
	if len(first) != 1 {
		t.Fatalf("first receive = %d messages, want 1", len(first))
	}

	second, _ := m.Receive(ctx, "lead", true)
	if len(second) != 0 {
		t.Fatalf("second receive = %d messages, want 0 (exactly-once)", len(second))
	}
}

func TestOrderingPreservedPerSender(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.Register("lead")
	m.Register("worker-1")

	_ = m.Send(ctx, "worker-1", "lead", models.MsgTaskComplete, map[string]any{"n": 1})
	_ = m.Send(ctx, "worker-1", "lead", models.MsgTaskComplete, map[string]any{"n": 2})

	msgs, _ := m.Receive(ctx, "lead", true)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Payload["n"] != 1 || msgs[1].Payload["n"] != 2 {
		t.Errorf("messages out of order: %+v", msgs)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.Register("a")
	m.Register("b")
	m.Register("c")

	_ = m.Broadcast(ctx, "a", models.MsgBroadcast, nil)

	if !m.HasMessages("b") {
		t.Errorf("b should have received the broadcast")
	}
	if !m.HasMessages("c") {
		t.Errorf("c should have received the broadcast")
	}
	if m.HasMessages("a") {
		t.Errorf("sender a should not receive its own broadcast")
	}
}

func TestReceiveWithoutMarkReadAllowsRedelivery(t *testing.T) {
	ctx := context.Background()
	m := New()
	m.Register("lead")
	_ = m.Send(ctx, "w", "lead", models.MsgError, nil)

	first, _ := m.Receive(ctx, "lead", false)
	second, _ := m.Receive(ctx, "lead", false)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected redelivery when markRead=false, got %d then %d", len(first), len(second))
	}
}
