// Package server exposes the agent loop over HTTP: run invocations, the
// tool roster and per-run progress streams.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/soldano/reagent/internal/core/domain"
	"github.com/soldano/reagent/internal/core/services"
)

type Server struct {
	logger        *slog.Logger
	agent         *services.ReActAgentService
	gateway       *services.ToolGateway
	eventBus      *services.EventBus
	maxIterations int
}

func NewServer(logger *slog.Logger, agent *services.ReActAgentService, gateway *services.ToolGateway, eventBus *services.EventBus, maxIterations int) *Server {
	return &Server{
		logger:        logger,
		agent:         agent,
		gateway:       gateway,
		eventBus:      eventBus,
		maxIterations: maxIterations,
	}
}

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("POST /v1/agent/run", s.handleAgentRun)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.handleRunEvents)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.gateway.GetAvailableTools(),
	})
}

type runRequestBody struct {
	RunID         string           `json:"run_id,omitempty"`
	Message       string           `json:"message"`
	SystemPrompt  string           `json:"system_prompt,omitempty"`
	History       []domain.Message `json:"history,omitempty"`
	MaxIterations int              `json:"max_iterations,omitempty"`
	WorkingDir    string           `json:"working_dir,omitempty"`
}

type runResponseBody struct {
	RunID  string              `json:"run_id"`
	Result *domain.ReActResult `json:"result"`
}

func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	var body runRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	runID := body.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	maxIters := body.MaxIterations
	if maxIters <= 0 {
		maxIters = s.maxIterations
	}

	s.logger.Info("agent run requested", "run_id", runID, "working_dir", body.WorkingDir)

	result, err := s.agent.Run(r.Context(), services.RunRequest{
		UserMessage:   body.Message,
		SystemPrompt:  body.SystemPrompt,
		History:       body.History,
		MaxIterations: maxIters,
		WorkingDir:    body.WorkingDir,
		OnProgress: func(ev services.ProgressEvent) {
			s.eventBus.Publish(runID, ev)
		},
	})
	if err != nil {
		s.logger.Error("agent run failed", "run_id", runID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runResponseBody{RunID: runID, Result: result})
}

// handleRunEvents streams run progress as server-sent events.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsub := s.eventBus.Subscribe(runID)
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
