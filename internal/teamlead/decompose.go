package teamlead

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/spark-corp/redshadow/internal/llm"
	"github.com/spark-corp/redshadow/pkg/models"
)

// bracketedArray extracts the outermost JSON array from a larger LLM
// response, tolerating surrounding prose per spec §4.8 step 1's "parse it
// robustly (extract the outer bracketed array)".
var bracketedArray = regexp.MustCompile(`(?s)\[.*\]`)

type decomposedTask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	Type         string   `json:"type"`
}

// decompose asks the LLM to split objective into a task graph, falling
// back to a fixed default decomposition on any parse failure.
func (tl *TeamLead) decompose(ctx context.Context, objective string) ([]*models.Task, error) {
	resp, err := tl.router.Chat(ctx, llm.ChatRequest{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: decompositionSystemPrompt},
			{Role: models.RoleUser, Content: objective},
		},
	})
	if err == nil {
		if parsed, perr := parseDecomposition(resp.Content); perr == nil && len(parsed) > 0 {
			return parsed, nil
		} else if perr != nil {
			tl.log.Warn("decomposition parse failed, substituting default", "error", perr)
		}
	} else {
		tl.log.Warn("decomposition LLM call failed, substituting default", "error", err)
	}

	def := defaultDecomposition(objective)
	if len(def) == 0 {
		return nil, errEmptyDecomposition
	}
	return def, nil
}

const decompositionSystemPrompt = `You are the planning stage of a penetration-testing orchestrator.
Given an engagement objective, emit ONLY a JSON array of task objects:
[{"id": string, "description": string, "dependencies": [string], "type": "recon"|"analysis"|"exploitation"|"validation"}]
Dependencies must reference earlier "id" values in the same array. Do not include any text outside the array.`

func parseDecomposition(content string) ([]*models.Task, error) {
	match := bracketedArray.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found in decomposition response")
	}
	var raw []decomposedTask
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("invalid decomposition JSON: %w", err)
	}
	out := make([]*models.Task, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" || r.Description == "" {
			return nil, fmt.Errorf("decomposition task missing id or description")
		}
		out = append(out, &models.Task{
			ID:           r.ID,
			Description:  r.Description,
			Type:         r.Type,
			Dependencies: r.Dependencies,
			Status:       models.TaskPending,
			CreatedAt:    time.Now(),
		})
	}
	return out, nil
}

// defaultDecomposition is the fixed fallback graph: one recon task feeding
// analysis, then exploitation. It holds no validation task; Run adds one via
// appendValidatorIfNeeded.
func defaultDecomposition(objective string) []*models.Task {
	now := time.Now()
	return []*models.Task{
		{
			ID:          "recon-1",
			Description: fmt.Sprintf("Perform reconnaissance for objective: %s", objective),
			Type:        TypeRecon,
			Status:      models.TaskPending,
			Priority:    10,
			CreatedAt:   now,
		},
		{
			ID:           "analysis-1",
			Description:  fmt.Sprintf("Analyze reconnaissance results for objective: %s", objective),
			Type:         TypeAnalysis,
			Dependencies: []string{"recon-1"},
			Priority:     5,
			Status:       models.TaskPending,
			CreatedAt:    now,
		},
		{
			ID:           "exploit-1",
			Description:  fmt.Sprintf("Attempt exploitation of identified weaknesses for objective: %s", objective),
			Type:         TypeExploitation,
			Dependencies: []string{"analysis-1"},
			Priority:     1,
			Status:       models.TaskPending,
			CreatedAt:    now,
		},
	}
}

// appendValidatorIfNeeded adds a validation task depending on every
// exploitation-phase task, per the Python predecessor's validator worker.
func appendValidatorIfNeeded(taskList []*models.Task) []*models.Task {
	var exploitIDs []string
	hasValidation := false
	for _, t := range taskList {
		if t.Type == TypeExploitation {
			exploitIDs = append(exploitIDs, t.ID)
		}
		if t.Type == TypeValidation {
			hasValidation = true
		}
	}
	if len(exploitIDs) == 0 || hasValidation {
		return taskList
	}
	return append(taskList, &models.Task{
		ID:           "validate-auto",
		Description:  "Re-check exploitation-phase findings before final synthesis.",
		Type:         TypeValidation,
		Dependencies: exploitIDs,
		Status:       models.TaskPending,
		CreatedAt:    time.Now(),
	})
}
