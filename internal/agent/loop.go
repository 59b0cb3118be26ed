package agent

import (
	"context"

	"github.com/agentbridge/agentbridge/internal/message"
)

// runReact drives the planning -> executing <-> observing (<-> reflecting)
// -> responding | error state machine. steps_taken advances once per
// execution round regardless of how many tools that round called, per the
// fixed step-counting rule.
func (e *Executor) runReact(ctx context.Context, req Request, model string, maxSteps int, tools []message.ToolDefinition, conv *conversation, emit func(StepEvent)) (*Result, error) {
	emit(StepEvent{Status: StatusPlanning, Message: "planning"})
	conv.messages = append(conv.messages, message.Message{Role: message.RoleUser, Content: planningDirective})
	planResp, err := e.dispatchOnce(ctx, req.UserID, model, conv.messages, nil, emit)
	if err != nil {
		return nil, &LoopError{Phase: PhasePlanning, Step: 0, Cause: err}
	}
	conv.messages = append(conv.messages, planResp.Message)
	conv.recordReasoning(StepTaskPlanning, planResp.Message.Content, "")
	conv.recordTrace(PhasePlanning, 0, "task-planning")

	stepsTaken := 0
	exhausted := true
	var final message.Message

	for stepsTaken < maxSteps {
		emit(StepEvent{Step: stepsTaken + 1, Status: StatusExecuting, Message: "executing"})
		resp, err := e.dispatchOnce(ctx, req.UserID, model, conv.messages, tools, emit)
		if err != nil {
			return nil, &LoopError{Phase: PhaseExecuting, Step: stepsTaken, Cause: err}
		}

		if len(resp.Message.ToolCalls) == 0 {
			conv.messages = append(conv.messages, resp.Message)
			final = resp.Message
			exhausted = false
			conv.recordTrace(PhaseResponding, stepsTaken, "final")
			break
		}

		conv.messages = append(conv.messages, resp.Message)
		results := e.toolExec.ExecuteAll(ctx, resp.Message.ToolCalls, &conv.images)
		for i, call := range resp.Message.ToolCalls {
			var res message.ToolResult
			if i < len(results) {
				res = results[i]
			} else {
				res = message.ToolResult{ToolCallID: call.ID, IsError: true, Content: "no result returned"}
			}
			conv.messages = append(conv.messages, message.Message{Role: message.RoleTool, Content: res.Content, ToolCallID: res.ToolCallID})
			conv.toolsUsed = append(conv.toolsUsed, ToolUse{Name: call.Name, ToolCallID: call.ID, IsError: res.IsError})
			conv.recordReasoning(StepAction, res.Content, call.Name)
		}
		stepsTaken++
		conv.recordTrace(PhaseExecuting, stepsTaken, "round "+stepLabel(stepsTaken)+": executed "+toolNames(resp.Message.ToolCalls))

		if req.EnableReflection && e.cfg.ReflectionThreshold > 0 && stepsTaken%e.cfg.ReflectionThreshold == 0 {
			emit(StepEvent{Step: stepsTaken, Status: StatusThinking, Message: "reflecting"})
			conv.messages = append(conv.messages, message.Message{Role: message.RoleUser, Content: reflectionDirective})
			reflResp, err := e.dispatchOnce(ctx, req.UserID, model, conv.messages, nil, emit)
			if err != nil {
				return nil, &LoopError{Phase: PhaseReflecting, Step: stepsTaken, Cause: err}
			}
			conv.messages = append(conv.messages, reflResp.Message)
			conv.recordReasoning(StepReflection, reflResp.Message.Content, "")
			conv.recordTrace(PhaseReflecting, stepsTaken, "reflection")
		}
	}

	if exhausted {
		emit(StepEvent{Step: stepsTaken, Status: StatusThinking, Message: "summarizing"})
		conv.messages = append(conv.messages, message.Message{Role: message.RoleUser, Content: summaryDirective})
		summResp, err := e.dispatchOnce(ctx, req.UserID, model, conv.messages, nil, emit)
		if err != nil {
			return nil, &LoopError{Phase: PhaseResponding, Step: stepsTaken, Cause: err}
		}
		conv.messages = append(conv.messages, summResp.Message)
		final = summResp.Message
		conv.recordTrace(PhaseResponding, stepsTaken, "summary: step budget exhausted")
	}

	content := final.Content
	if content == "" {
		content = trailingThought(conv)
	}

	return &Result{
		Success:        true,
		Response:       content,
		StepsTaken:     stepsTaken,
		ToolsUsed:      conv.toolsUsed,
		ReasoningSteps: conv.reasoningSteps,
		ExecutionTrace: conv.trace,
	}, nil
}

// runSimple drives at most one round of tool calls: a single Dispatcher
// call with tools, and if that returns tool_calls, exactly one more
// Dispatcher call without tools to produce the terminal response. Unlike
// the ReAct loop this never advances a reflection cadence.
func (e *Executor) runSimple(ctx context.Context, req Request, model string, tools []message.ToolDefinition, conv *conversation, emit func(StepEvent)) (*Result, error) {
	conv.recordTrace(PhaseIdle, 0, "init")
	emit(StepEvent{Status: StatusExecuting, Message: "executing"})
	conv.recordTrace(PhaseExecuting, 0, "start")

	resp, err := e.dispatchOnce(ctx, req.UserID, model, conv.messages, tools, emit)
	if err != nil {
		return nil, &LoopError{Phase: PhaseExecuting, Step: 0, Cause: err}
	}

	stepsTaken := 0
	final := resp.Message

	if len(resp.Message.ToolCalls) > 0 {
		conv.messages = append(conv.messages, resp.Message)
		results := e.toolExec.ExecuteAll(ctx, resp.Message.ToolCalls, &conv.images)
		for i, call := range resp.Message.ToolCalls {
			var res message.ToolResult
			if i < len(results) {
				res = results[i]
			} else {
				res = message.ToolResult{ToolCallID: call.ID, IsError: true, Content: "no result returned"}
			}
			conv.messages = append(conv.messages, message.Message{Role: message.RoleTool, Content: res.Content, ToolCallID: res.ToolCallID})
			conv.toolsUsed = append(conv.toolsUsed, ToolUse{Name: call.Name, ToolCallID: call.ID, IsError: res.IsError})
			conv.recordReasoning(StepAction, res.Content, call.Name)
		}
		stepsTaken = 1

		finalResp, err := e.dispatchOnce(ctx, req.UserID, model, conv.messages, nil, emit)
		if err != nil {
			return nil, &LoopError{Phase: PhaseResponding, Step: stepsTaken, Cause: err}
		}
		final = finalResp.Message
	}

	conv.messages = append(conv.messages, final)
	conv.recordTrace(PhaseResponding, stepsTaken, "final")

	content := final.Content
	if content == "" {
		content = trailingThought(conv)
	}

	return &Result{
		Success:        true,
		Response:       content,
		StepsTaken:     stepsTaken,
		ToolsUsed:      conv.toolsUsed,
		ReasoningSteps: conv.reasoningSteps,
		ExecutionTrace: conv.trace,
	}, nil
}

// trailingThought promotes the content of the most recent thought or
// reflection reasoning step (action steps are skipped) into the terminal
// response when the model's final turn carried no content of
// its own (observed from providers that put their answer in a trailing
// thought/reflection step instead of the closing assistant turn).
func trailingThought(conv *conversation) string {
	for i := len(conv.reasoningSteps) - 1; i >= 0; i-- {
		step := conv.reasoningSteps[i]
		if step.Type == StepThought || step.Type == StepReflection {
			return step.Content
		}
	}
	return ""
}
