package localapi

import "net/http"

func (s *Server) registerProjectRoutes() {
	s.mux.HandleFunc("/api/v1/project", s.handleProject)
	s.mux.HandleFunc("/api/v1/agents", s.handleAgents)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	p := s.deps.Project
	if p == nil {
		respondError(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "no project is open")
		return
	}
	currentID := ""
	if c := p.CurrentCanvas(); c != nil {
		currentID = c.ID
	}
	respondOK(w, map[string]any{
		"project_id":     p.ID,
		"name":           p.Name,
		"root_dir":       p.RootDir,
		"canvas_count":   p.CanvasCount(),
		"current_canvas": currentID,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.deps.Project == nil {
		respondError(w, http.StatusNotFound, "PROJECT_NOT_FOUND", "no project is open")
		return
	}
	type agentPayload struct {
		AgentID  string `json:"agent_id"`
		Kind     string `json:"kind"`
		CanvasID string `json:"canvas_id"`
		Status   string `json:"status"`
		Message  string `json:"message,omitempty"`
	}
	agents := s.deps.Project.Agents()
	payload := make([]agentPayload, 0, len(agents))
	for _, a := range agents {
		payload = append(payload, agentPayload{
			AgentID:  a.ID,
			Kind:     a.Kind,
			CanvasID: a.CanvasID,
			Status:   a.Status,
			Message:  a.Message,
		})
	}
	respondOK(w, payload)
}
