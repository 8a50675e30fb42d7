package localapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gitcanvas/cli/internal/canvas"
)

func (s *Server) registerCanvasRoutes() {
	s.mux.HandleFunc("/api/v1/canvases", s.handleCanvases)
	s.mux.HandleFunc("/api/v1/canvases/", s.handleCanvasByID)
}

func (s *Server) handleCanvases(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Project
	if p == nil {
		respondError(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "no project is open")
		return
	}
	switch r.Method {
	case http.MethodGet:
		canvases := p.Canvases()
		payload := make([]map[string]any, 0, len(canvases))
		for _, c := range canvases {
			payload = append(payload, canvasPayload(c))
		}
		respondOK(w, payload)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
		c, err := p.CreateCanvas(req.Name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "CANVAS_CREATE_FAILED", err.Error())
			return
		}
		s.snapshot()
		respondOK(w, canvasPayload(c))
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleCanvasByID dispatches /api/v1/canvases/{id}[/action].
func (s *Server) handleCanvasByID(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Project
	if p == nil {
		respondError(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "no project is open")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/canvases/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		respondError(w, http.StatusBadRequest, "INVALID_CANVAS_ID", "invalid canvas id")
		return
	}
	c, ok := p.CanvasByID(parts[0])
	if !ok {
		respondError(w, http.StatusNotFound, "CANVAS_NOT_FOUND", "canvas not found")
		return
	}

	if len(parts) >= 2 && parts[1] == "tasks" {
		s.handleCanvasTasks(w, r, c, parts[2:])
		return
	}

	action := ""
	if len(parts) >= 2 {
		action = parts[1]
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		respondOK(w, canvasPayload(c))
	case "select":
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		if !p.SetCurrentCanvas(c.ID) {
			respondError(w, http.StatusNotFound, "CANVAS_NOT_FOUND", "canvas not found")
			return
		}
		s.snapshot()
		respondOK(w, map[string]any{"canvas_id": c.ID})
	case "processes":
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		type procPayload struct {
			ProcessID  string `json:"process_id"`
			TerminalID string `json:"terminal_id,omitempty"`
			Kind       string `json:"kind"`
			Status     string `json:"status"`
		}
		payload := make([]procPayload, 0, len(c.Processes))
		for _, proc := range c.Processes {
			payload = append(payload, procPayload{
				ProcessID:  proc.ProcessID,
				TerminalID: proc.TerminalID,
				Kind:       proc.Kind,
				Status:     string(proc.Status),
			})
		}
		respondOK(w, payload)
	case "merge":
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		s.startMerge(w, p, c)
	default:
		respondError(w, http.StatusNotFound, "UNKNOWN_ACTION", "unknown canvas action")
	}
}

// startMerge runs the background merge asynchronously; lock state and
// agent progress flow back over the websocket.
func (s *Server) startMerge(w http.ResponseWriter, p *canvas.GitProject, c *canvas.Canvas) {
	if s.deps.Merger == nil {
		respondError(w, http.StatusServiceUnavailable, "MERGE_UNAVAILABLE", "merge agent is not configured")
		return
	}
	if c.LockState != canvas.LockNormal {
		respondError(w, http.StatusConflict, "CANVAS_LOCKED", "canvas is locked")
		return
	}
	go func() {
		if err := s.deps.Merger.MergeCanvasToRoot(context.Background(), p, c.ID); err != nil {
			s.deps.Logger.Warn("merge run failed", "module", "localapi", "canvas_id", c.ID, "error", err)
		}
		s.snapshot()
	}()
	respondOK(w, map[string]any{"canvas_id": c.ID, "status": "merging"})
}

func canvasPayload(c *canvas.Canvas) map[string]any {
	return map[string]any{
		"canvas_id":        c.ID,
		"name":             c.Name,
		"working_dir":      c.WorkingDir,
		"branch":           c.Branch,
		"lock_state":       string(c.LockState),
		"locking_agent_id": c.LockingAgentID,
		"task_count":       len(c.Ledger.Tasks()),
	}
}
