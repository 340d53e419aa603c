package assistant

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	toolProjectReader = "project_reader"
	toolCodeGenerator = "code_generator"
	toolCodeReviewer  = "code_reviewer"
	toolCodeExecute   = "code_execute"
)

// ToolDefinition is the function schema advertised on the chat span.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func toolDefinitions() []ToolDefinition {
	taskParam := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{"type": "string", "description": "What the user asked for"},
		},
		"required": []string{"task"},
	}
	return []ToolDefinition{
		{Name: toolProjectReader, Description: "Reads project files and summarizes their structure", Parameters: taskParam},
		{Name: toolCodeGenerator, Description: "Generates code for the requested change", Parameters: taskParam},
		{Name: toolCodeReviewer, Description: "Reviews code for defects and style issues", Parameters: taskParam},
		{Name: toolCodeExecute, Description: "Runs code in a sandbox and reports the outcome", Parameters: taskParam},
	}
}

// selectTools is the "LLM decision": the request text picks the tool chain.
// Review and execution requests read the project first; generation requests
// generate and then execute.
func selectTools(message string) []string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "review"):
		return []string{toolProjectReader, toolCodeReviewer}
	case strings.Contains(lower, "run") || strings.Contains(lower, "execute") || strings.Contains(lower, "test"):
		return []string{toolProjectReader, toolCodeExecute}
	case strings.Contains(lower, "read") || strings.Contains(lower, "explain") || strings.Contains(lower, "understand"):
		return []string{toolProjectReader}
	default:
		return []string{toolCodeGenerator, toolCodeExecute}
	}
}

// runTool produces a canned tool result plus a simulated latency.
// Callers must hold the agent's rng lock.
func runTool(rng *rand.Rand, tool, task string) (map[string]any, time.Duration) {
	latency := time.Duration(80+rng.Intn(240)) * time.Millisecond
	switch tool {
	case toolProjectReader:
		return map[string]any{
			"files_read":  3 + rng.Intn(12),
			"total_lines": 200 + rng.Intn(4000),
			"summary":     "Project uses a layered layout with handlers, services, and storage.",
		}, latency
	case toolCodeGenerator:
		return map[string]any{
			"language":     "go",
			"lines":        20 + rng.Intn(120),
			"snippet_head": fmt.Sprintf("func handle%s(w http.ResponseWriter, r *http.Request) {", titleWord(task)),
		}, latency
	case toolCodeReviewer:
		return map[string]any{
			"issues_found": rng.Intn(5),
			"severity":     []string{"info", "warning", "warning"}[rng.Intn(3)],
			"summary":      "No blocking defects; a few naming and error-wrapping suggestions.",
		}, latency
	case toolCodeExecute:
		return map[string]any{
			"exit_code":   0,
			"duration_ms": 40 + rng.Intn(400),
			"stdout":      "ok",
		}, latency
	default:
		return map[string]any{"result": "unknown tool"}, latency
	}
}

func titleWord(task string) string {
	fields := strings.Fields(task)
	if len(fields) == 0 {
		return "Request"
	}
	word := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, fields[0])
	if word == "" {
		return "Request"
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

// summarizeChain turns the executed tool chain into the assistant's answer.
func summarizeChain(task string, results map[string]map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Done with %q.", task)
	if r, ok := results[toolProjectReader]; ok {
		fmt.Fprintf(&b, " Read %v files.", r["files_read"])
	}
	if r, ok := results[toolCodeGenerator]; ok {
		fmt.Fprintf(&b, " Generated %v lines of Go.", r["lines"])
	}
	if r, ok := results[toolCodeReviewer]; ok {
		fmt.Fprintf(&b, " Review found %v issues.", r["issues_found"])
	}
	if r, ok := results[toolCodeExecute]; ok {
		fmt.Fprintf(&b, " Execution finished with exit code %v.", r["exit_code"])
	}
	return b.String()
}
