package agent

import (
	"time"

	"github.com/agentbridge/agentbridge/internal/message"
	"github.com/agentbridge/agentbridge/internal/tool"
)

// Request is the executor's input: the fields of the HTTP AgentRequest body
// that drive mode selection and loop behavior.
type Request struct {
	Prompt    string
	UserID    string
	Model     string
	SessionID string

	EnableMemory     bool
	EnableReflection bool
	EnableReactMode  bool
	EnableMCP        bool

	MaxSteps             int
	ToolsConfig          tool.ToolsConfig
	SystemPromptOverride string
	Context              map[string]string
	Image                string
	Audio                string
}

// ReasoningStepType names the kind of entry recorded in a Result's
// reasoning trace.
type ReasoningStepType string

const (
	StepTaskPlanning ReasoningStepType = "task-planning"
	StepAction       ReasoningStepType = "action"
	StepReflection   ReasoningStepType = "reflection"
	StepThought      ReasoningStepType = "thought"
)

// ReasoningStep is one entry in the executor's reasoning trace.
type ReasoningStep struct {
	Type    ReasoningStepType `json:"type"`
	Content string            `json:"content"`
	Tool    string            `json:"tool,omitempty"`
}

// ExecutionTraceEntry is one entry in the executor's state-transition
// trace: the phase entered, at which step, and a short human-readable
// action description.
type ExecutionTraceEntry struct {
	Phase  Phase  `json:"phase"`
	Step   int    `json:"step"`
	Action string `json:"action"`
}

// ToolUse records one tool invocation for Result.ToolsUsed.
type ToolUse struct {
	Name       string `json:"name"`
	ToolCallID string `json:"tool_call_id"`
	IsError    bool   `json:"is_error"`
}

// Result is the executor's output: the AgentResult JSON body.
type Result struct {
	Success        bool                   `json:"success"`
	Response       string                 `json:"response"`
	StepsTaken     int                    `json:"steps_taken"`
	ToolsUsed      []ToolUse              `json:"tools_used"`
	ReasoningSteps []ReasoningStep        `json:"reasoning_steps"`
	ExecutionTrace []ExecutionTraceEntry  `json:"execution_trace"`
	ImageDataURI   string                 `json:"image_data_uri,omitempty"`
	Error          string                 `json:"error,omitempty"`
	InteractionID  string                 `json:"interaction_id"`
}

// StepStatus categorizes a streamed StepEvent.
type StepStatus string

const (
	StatusThinking  StepStatus = "thinking"
	StatusPlanning  StepStatus = "planning"
	StatusExecuting StepStatus = "executing"
	StatusError     StepStatus = "error"
	StatusDone      StepStatus = "done"
)

// StepEvent is one event in the streaming variant's step-event sequence.
type StepEvent struct {
	Step      int            `json:"step"`
	Status    StepStatus     `json:"status"`
	Message   string         `json:"message"`
	Plan      string         `json:"plan,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// conversation carries the mutable message list plus the reasoning/trace
// accumulators threaded through a single request's loop.
type conversation struct {
	messages       []message.Message
	reasoningSteps []ReasoningStep
	trace          []ExecutionTraceEntry
	toolsUsed      []ToolUse
	images         tool.ImageSlot
}

func (c *conversation) recordTrace(phase Phase, step int, action string) {
	c.trace = append(c.trace, ExecutionTraceEntry{Phase: phase, Step: step, Action: action})
}

func (c *conversation) recordReasoning(kind ReasoningStepType, content, toolName string) {
	c.reasoningSteps = append(c.reasoningSteps, ReasoningStep{Type: kind, Content: content, Tool: toolName})
}

func (c *conversation) lastAssistantContent() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == message.RoleAssistant {
			return c.messages[i].Content
		}
	}
	return ""
}
