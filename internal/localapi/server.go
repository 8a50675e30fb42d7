// Package localapi serves project, canvas, and task state to local
// clients over HTTP, with a websocket fan-out for runtime events.
package localapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/protocol"
)

// TaskDriver runs agent tasks in canvas working trees.
type TaskDriver interface {
	StartTask(workdir, prompt string, onTerminalReady func(terminalID string)) (string, error)
	StopTask() error
	IsRunning() bool
}

// Merger kicks off the background merge of one canvas.
type Merger interface {
	MergeCanvasToRoot(ctx context.Context, project *canvas.GitProject, canvasID string) error
}

// Reverter moves a canvas working tree to a task boundary.
type Reverter interface {
	RevertToCommit(dir, hash string) error
}

// Snapshotter persists the project after mutations.
type Snapshotter interface {
	SaveProject(p *canvas.GitProject) error
}

type Deps struct {
	Project  *canvas.GitProject
	Driver   TaskDriver
	Merger   Merger
	Reverter Reverter
	Snapshot Snapshotter
	Logger   *slog.Logger
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
	hub  *WSHub
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), hub: NewWSHub()}
	s.registerProjectRoutes()
	s.registerCanvasRoutes()
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.hub.HandleWS)

	if deps.Project != nil {
		deps.Project.Subscribe(s.onProjectChange)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

// onProjectChange maps aggregate change events onto wire topics.
func (s *Server) onProjectChange(event, canvasID string) {
	topic := ""
	switch event {
	case "canvas.lock.updated":
		topic = protocol.OpCanvasLockUpdated
	case "task.updated", "process.recovered":
		topic = protocol.OpTaskStatusUpdated
	case "agent.updated":
		topic = protocol.OpAgentStatusUpdated
	case "canvas.created":
		topic = protocol.OpCanvasCreated
	}
	if topic == "" {
		return
	}
	s.PublishEvent(topic, canvasID, map[string]any{"event": event})
}

// PublishEvent fans one event out to every websocket client.
func (s *Server) PublishEvent(topic, canvasID string, payload map[string]any) {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.Publish(topic, canvasID, payload)
}

func (s *Server) snapshot() {
	if s.deps.Snapshot == nil || s.deps.Project == nil {
		return
	}
	if err := s.deps.Snapshot.SaveProject(s.deps.Project); err != nil {
		s.deps.Logger.Warn("project snapshot failed", "module", "localapi", "error", err)
	}
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
