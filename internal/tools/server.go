// Package tools implements the Tool Server contract and the Tool Bridge:
// the indirection layer that resolves a model's tool name to a registered
// tool server, authorizes the call via the Guardian, executes it, and
// returns a structured Result.
package tools

import (
	"context"
	"time"

	"github.com/spark-corp/redshadow/pkg/models"
)

// Call is a model-requested tool invocation.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Result is what a Server (or the Bridge, on denial/miss) returns for a Call.
type Result struct {
	Tool            string         `json:"tool"`
	Success         bool           `json:"success"`
	RawOutput       string         `json:"raw_output,omitempty"`
	ParsedData      map[string]any `json:"parsed_data,omitempty"`
	Error           string         `json:"error,omitempty"`
	Duration        time.Duration  `json:"duration"`
	CommandExecuted string         `json:"command_executed,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Server is the contract a pentesting tool wrapper (nmap, nuclei, whois, …)
// implements. Tool implementations themselves are out of scope; the Bridge
// treats a Server as opaque beyond these two methods.
type Server interface {
	GetTools() []models.ToolSchema
	ExecuteTool(ctx context.Context, call Call) (Result, error)
}
