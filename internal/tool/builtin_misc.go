package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DatePlanHandler lays out one placeholder milestone per task, numbered by
// day offset (0, 1, 2, ...) from a start date string, without a real
// scheduling/calendar backend.
type DatePlanHandler struct{}

func (DatePlanHandler) Name() string        { return "datePlan" }
func (DatePlanHandler) Description() string { return "Produce a simple ordered task plan." }
func (DatePlanHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start_date": map[string]any{"type": "string"},
			"tasks":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"start_date", "tasks"},
	}
}

func (DatePlanHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		StartDate string   `json:"start_date"`
		Tasks     []string `json:"tasks"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.StartDate == "" || len(a.Tasks) == 0 {
		return "", fmt.Errorf("missing start_date or tasks")
	}
	type step struct {
		Day  int    `json:"day"`
		Task string `json:"task"`
	}
	plan := make([]step, len(a.Tasks))
	for i, t := range a.Tasks {
		plan[i] = step{Day: i, Task: t}
	}
	out, _ := json.Marshal(map[string]any{"success": true, "start_date": a.StartDate, "plan": plan})
	return string(out), nil
}

// InformationIntegrateHandler concatenates a list of source snippets into
// a single integrated block, in place of a real multi-source synthesis
// model.
type InformationIntegrateHandler struct{}

func (InformationIntegrateHandler) Name() string { return "informationIntegrate" }
func (InformationIntegrateHandler) Description() string {
	return "Integrate multiple information snippets into one block."
}
func (InformationIntegrateHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"sources": map[string]any{"type": "array", "items": map[string]any{"type": "string"}}},
		"required":   []string{"sources"},
	}
}

func (InformationIntegrateHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal(args, &a); err != nil || len(a.Sources) == 0 {
		return "", fmt.Errorf("missing sources")
	}
	out, _ := json.Marshal(map[string]any{"success": true, "integrated": strings.Join(a.Sources, "\n\n")})
	return string(out), nil
}

// CodeGenHandler stubs code generation to its documented contract: it
// returns a minimal function skeleton in the requested language, not a
// real code-generation model's output.
type CodeGenHandler struct{}

func (CodeGenHandler) Name() string        { return "codeGen" }
func (CodeGenHandler) Description() string { return "Generate a minimal code skeleton for a task." }
func (CodeGenHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"language":    map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"language", "description"},
	}
}

func (CodeGenHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Language    string `json:"language"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Language == "" || a.Description == "" {
		return "", fmt.Errorf("missing language or description")
	}
	code := fmt.Sprintf("// %s\nfunc solve() {\n\t// TODO: %s\n}\n", a.Description, a.Description)
	if a.Language == "python" {
		code = fmt.Sprintf("# %s\ndef solve():\n    # TODO: %s\n    pass\n", a.Description, a.Description)
	}
	out, _ := json.Marshal(map[string]any{"success": true, "code": code})
	return string(out), nil
}

// AgentPerformanceEvaluateHandler scores a transcript by a simple
// length/step heuristic rather than a real evaluation model.
type AgentPerformanceEvaluateHandler struct{}

func (AgentPerformanceEvaluateHandler) Name() string { return "agentPerformanceEvaluate" }
func (AgentPerformanceEvaluateHandler) Description() string {
	return "Score an agent run's transcript against simple heuristics."
}
func (AgentPerformanceEvaluateHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"transcript":  map[string]any{"type": "string"},
			"steps_taken": map[string]any{"type": "integer"},
		},
		"required": []string{"transcript"},
	}
}

func (AgentPerformanceEvaluateHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Transcript string `json:"transcript"`
		StepsTaken int    `json:"steps_taken"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Transcript == "" {
		return "", fmt.Errorf("missing transcript")
	}
	score := 1.0
	if a.StepsTaken > 5 {
		score -= 0.1 * float64(a.StepsTaken-5)
	}
	if score < 0 {
		score = 0
	}
	out, _ := json.Marshal(map[string]any{"success": true, "score": score, "length": len(a.Transcript)})
	return string(out), nil
}
