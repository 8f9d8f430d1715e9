package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/spark-corp/redshadow/pkg/models"
)

// SchemaValidator compiles and caches the JSON schemas registered tool
// servers advertise, so the Bridge can reject malformed arguments before a
// Server (or the Guardian) ever sees them.
type SchemaValidator struct {
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator compiles every schema up front. A tool whose schema
// fails to compile is skipped — the Bridge falls back to dispatching it
// unvalidated rather than refusing to start over one malformed schema.
func NewSchemaValidator(schemas []models.ToolSchema) *SchemaValidator {
	v := &SchemaValidator{compiled: make(map[string]*jsonschema.Schema, len(schemas))}
	for _, s := range schemas {
		compiled, err := compileSchema(s.Name, s.Parameters)
		if err != nil {
			continue
		}
		v.compiled[s.Name] = compiled
	}
	return v
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	resourceName := name + ".json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tools: add schema resource %s: %w", name, err)
	}
	return compiler.Compile(resourceName)
}

// Validate checks call arguments against the named tool's compiled schema.
// A tool with no compiled schema (missing or failed to compile) is treated
// as always valid.
func (v *SchemaValidator) Validate(toolName string, arguments map[string]any) error {
	schema, ok := v.compiled[toolName]
	if !ok {
		return nil
	}
	return schema.ValidateInterface(arguments)
}
