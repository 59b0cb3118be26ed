package agent

// promptKey names one of the four configured system-prompt templates the
// mode-selection matrix chooses between.
type promptKey string

const (
	promptReactMCP    promptKey = "react_mcp"
	promptReactNoMCP  promptKey = "react_no_mcp"
	promptSimpleMCP   promptKey = "simple_mcp"
	promptSimpleNoMCP promptKey = "simple_no_mcp"
)

func selectPromptKey(enableReact, enableMCP bool) promptKey {
	switch {
	case enableReact && enableMCP:
		return promptReactMCP
	case enableReact && !enableMCP:
		return promptReactNoMCP
	case !enableReact && enableMCP:
		return promptSimpleMCP
	default:
		return promptSimpleNoMCP
	}
}

// defaultPrompts are used for any template not overridden by configuration.
var defaultPrompts = map[promptKey]string{
	promptReactMCP:    "You are an autonomous agent. Reason step by step, call tools as needed (including MCP-provided tools), reflect periodically on your progress, and produce a final answer.",
	promptReactNoMCP:  "You are an autonomous agent. Reason step by step, call the available built-in tools as needed, reflect periodically on your progress, and produce a final answer.",
	promptSimpleMCP:   "Answer the user's request directly. You may call at most one round of tools, including MCP-provided tools, before responding.",
	promptSimpleNoMCP: "Answer the user's request directly. You may call at most one round of built-in tools before responding.",
}

func (e *Executor) systemPrompt(req Request) string {
	if req.SystemPromptOverride != "" {
		return req.SystemPromptOverride
	}
	key := selectPromptKey(req.EnableReactMode, req.EnableMCP)
	if custom, ok := e.cfg.SystemPrompts[string(key)]; ok && custom != "" {
		return custom
	}
	return defaultPrompts[key]
}

const planningDirective = "Before acting, briefly state your plan for satisfying this request."
const reflectionDirective = "Reflect on your progress so far: what has been accomplished, and what remains."
const summaryDirective = "You have reached your step budget. Summarize what you found and give your best final answer now, without calling any more tools."
