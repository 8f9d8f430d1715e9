package models

import "time"

// AgentMessageKind enumerates the coordination vocabulary exchanged through
// the Mailbox.
type AgentMessageKind string

const (
	MsgTaskComplete      AgentMessageKind = "task_complete"
	MsgValidationRequest AgentMessageKind = "validation_request"
	MsgIntervention      AgentMessageKind = "intervention"
	MsgBroadcast         AgentMessageKind = "broadcast"
	MsgPeerRequest       AgentMessageKind = "peer_request"
	MsgPeerResponse      AgentMessageKind = "peer_response"
	MsgTerminate         AgentMessageKind = "terminate"
	MsgError             AgentMessageKind = "error"
	MsgCriticalFinding   AgentMessageKind = "critical_finding"
)

// BroadcastRecipient is the sentinel "to" value meaning "every registered
// agent except the sender".
const BroadcastRecipient = "*"

// AgentMessage is one entry in the Mailbox's per-recipient message log.
type AgentMessage struct {
	ID       int64            `json:"id"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Kind     AgentMessageKind `json:"kind"`
	Payload  map[string]any   `json:"payload,omitempty"`
	Priority int              `json:"priority,omitempty"`
	Ts       time.Time        `json:"ts"`
	Read     bool             `json:"read"`
}
