package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/message"
	"github.com/agentbridge/agentbridge/internal/provider"
	"github.com/agentbridge/agentbridge/internal/quota"
	"github.com/agentbridge/agentbridge/internal/tool"
)

func jsonEncode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// executorFor returns an Executor scoped to body's requested tool set,
// building a fresh per-request registry and tool executor on every call.
func (s *Server) executorFor(body agentRequestBody) *agent.Executor {
	registry := tool.NewRequestRegistry(tool.ToolsConfig{Search: body.ToolsConfig.Search, Advanced: body.ToolsConfig.Advanced}, s.cfg.SearchBaseURL)
	toolExec := tool.NewExecutor(registry, s.mcpBackend, tool.ExecutorConfig{PerToolTimeout: s.cfg.ToolTimeout}, s.log)
	return s.executor.WithTools(registry, toolExec)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var body agentRequestBody
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := s.executorFor(body).Run(r.Context(), body.toRequest())
	if err != nil {
		s.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	var body agentRequestBody
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming not supported by this server"})
		return
	}

	events := s.executorFor(body).RunStreaming(r.Context(), body.toRequest())
	for ev := range events {
		if err := sse.send(ev); err != nil {
			s.log.Warn("sse write failed", "error", err)
			return
		}
	}
}

func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quota.ErrExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	resp, err := s.dispatcher.Complete(r.Context(), toMessages(body), body.Model, nil, provider.Params{})
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	chunks, err := s.dispatcher.Stream(r.Context(), toMessages(body), body.Model, nil, provider.Params{})
	if err != nil {
		s.writeProviderError(w, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming not supported by this server"})
		return
	}
	for chunk := range chunks {
		if err := sse.send(chunk); err != nil {
			s.log.Warn("sse write failed", "error", err)
			return
		}
	}
}

func (s *Server) writeProviderError(w http.ResponseWriter, err error) {
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		switch pe.Reason {
		case provider.FailoverRateLimit:
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
		case provider.FailoverInvalid:
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		case provider.FailoverUnavailable:
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func toMessages(body chatRequestBody) []message.Message {
	msgs := make([]message.Message, 0, len(body.Messages))
	for _, m := range body.Messages {
		msgs = append(msgs, message.Message{Role: message.Role(m.Role), Content: m.Content})
	}
	return msgs
}
