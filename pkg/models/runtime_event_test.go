package models

import (
	"encoding/json"
	"testing"
)

func TestEventKind_Constants(t *testing.T) {
	tests := []struct {
		constant EventKind
		expected string
	}{
		{EventKindSystem, "system"},
		{EventKindThinking, "thinking"},
		{EventKindTool, "tool"},
		{EventKindAssistant, "assistant"},
	}

	for _, tt := range tests {
		t.Run(string(tt.constant), func(t *testing.T) {
			if string(tt.constant) != tt.expected {
				t.Errorf("constant = %q, want %q", tt.constant, tt.expected)
			}
		})
	}
}

func TestEvent_Struct(t *testing.T) {
	event := Event{
		Kind:       EventKindTool,
		Content:    "running nmap_scan",
		ToolName:   "nmap_scan",
		ToolCallID: "call-123",
		Iteration:  2,
		Metadata:   map[string]any{"target": "10.0.0.5"},
	}

	if event.Kind != EventKindTool {
		t.Errorf("Kind = %v, want %v", event.Kind, EventKindTool)
	}
	if event.ToolName != "nmap_scan" {
		t.Errorf("ToolName = %q, want %q", event.ToolName, "nmap_scan")
	}
	if event.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2", event.Iteration)
	}
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	original := NewEvent(EventKindAssistant, "scan complete").
		WithIteration(1).
		WithMeta("tokens", 42).
		Final()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.Kind != original.Kind {
		t.Errorf("Kind = %v, want %v", decoded.Kind, original.Kind)
	}
	if !decoded.IsFinal {
		t.Error("IsFinal should survive round trip")
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventKindTool, "dispatching nmap_scan")

	if event.Kind != EventKindTool {
		t.Errorf("Kind = %v, want %v", event.Kind, EventKindTool)
	}
	if event.Content != "dispatching nmap_scan" {
		t.Errorf("Content = %q, want %q", event.Content, "dispatching nmap_scan")
	}
	if event.IsFinal {
		t.Error("new events should not be final by default")
	}
}

func TestEvent_WithMeta(t *testing.T) {
	t.Run("adds single meta field", func(t *testing.T) {
		event := NewEvent(EventKindThinking, "").WithMeta("key", "value")
		if event.Metadata["key"] != "value" {
			t.Errorf("Metadata[key] = %v, want %q", event.Metadata["key"], "value")
		}
	})

	t.Run("adds multiple meta fields", func(t *testing.T) {
		event := NewEvent(EventKindThinking, "").
			WithMeta("key1", "value1").
			WithMeta("key2", 42).
			WithMeta("key3", true)

		if event.Metadata["key1"] != "value1" {
			t.Errorf("Metadata[key1] = %v, want %q", event.Metadata["key1"], "value1")
		}
		if event.Metadata["key2"] != 42 {
			t.Errorf("Metadata[key2] = %v, want 42", event.Metadata["key2"])
		}
		if event.Metadata["key3"] != true {
			t.Errorf("Metadata[key3] = %v, want true", event.Metadata["key3"])
		}
	})
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent(EventKindTool, "running web probe").
		WithIteration(3).
		WithMeta("query", "test query")

	if event.Kind != EventKindTool {
		t.Errorf("Kind = %v, want %v", event.Kind, EventKindTool)
	}
	if event.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", event.Iteration)
	}
	if event.Metadata["query"] != "test query" {
		t.Errorf("Metadata[query] = %v, want %q", event.Metadata["query"], "test query")
	}
}

func TestEvent_Final(t *testing.T) {
	event := NewEvent(EventKindAssistant, "done").Final()
	if !event.IsFinal {
		t.Error("Final() should set IsFinal = true")
	}
}
