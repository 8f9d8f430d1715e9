package models

import "encoding/json"

// ToolSchema describes one callable tool a Tool Server advertises to the LLM
// Router.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
