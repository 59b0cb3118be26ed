package tool

// ToolsConfig mirrors AgentRequest.tools_config: which optional tool
// groups this request's registry snapshot should include.
type ToolsConfig struct {
	Search   bool
	Advanced bool
}

// NewRequestRegistry assembles the tool list for one request: {image
// generation} ∪ (search if enabled) ∪ (advanced tools if enabled). MCP
// tools are layered in separately by the caller (the agent executor),
// since they are discovered per-server rather than registered here.
func NewRequestRegistry(cfg ToolsConfig, searchBaseURL string) *Registry {
	r := NewRegistry()
	r.Register(GenerateImageHandler{})

	if cfg.Search {
		r.Register(NewSearchDuckDuckGoHandler(searchBaseURL))
	}

	if cfg.Advanced {
		r.Register(NewWebpageFetchHandler())
		r.Register(TextAnalysisHandler{})
		r.Register(FormatConvertHandler{})
		r.Register(SummarizeTextHandler{})
		r.Register(TranslateTextHandler{})
		r.Register(StructuredDataGenerateHandler{})
		r.Register(DataQAHandler{})
		save, retrieve := NewMemoryTools()
		r.Register(save)
		r.Register(retrieve)
		r.Register(DatePlanHandler{})
		r.Register(InformationIntegrateHandler{})
		r.Register(CodeGenHandler{})
		r.Register(AgentPerformanceEvaluateHandler{})
	}

	return r
}
