package localapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/protocol"
	"gitcanvas/cli/internal/taskledger"
)

// handleCanvasTasks dispatches /api/v1/canvases/{id}/tasks[/{taskID}[/action]].
func (s *Server) handleCanvasTasks(w http.ResponseWriter, r *http.Request, c *canvas.Canvas, parts []string) {
	if len(parts) == 0 || parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			s.listTasks(w, c)
		case http.MethodPost:
			s.createTask(w, r, c)
		default:
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		}
		return
	}

	taskID := parts[0]
	task, ok := c.Ledger.Task(taskID)
	if !ok {
		respondError(w, http.StatusNotFound, "TASK_NOT_FOUND", "task not found")
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
		respondOK(w, taskPayload(task))
	case "prompt":
		s.updatePrompt(w, r, c, taskID)
	case "run":
		s.runTask(w, r, c, task)
	case "stop":
		s.stopTask(w, r, task)
	case "revert":
		s.revertTask(w, r, c, taskID)
	case "restore":
		s.restoreTask(w, r, c, taskID)
	default:
		respondError(w, http.StatusNotFound, "UNKNOWN_ACTION", "unknown task action")
	}
}

func (s *Server) listTasks(w http.ResponseWriter, c *canvas.Canvas) {
	tasks := c.Ledger.Tasks()
	payload := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		payload = append(payload, taskPayload(task))
	}
	respondOK(w, payload)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, c *canvas.Canvas) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PROMPT", "prompt is required")
		return
	}
	taskID, ok := s.deps.Project.CreateTask(c.ID, req.Prompt)
	if !ok {
		respondError(w, http.StatusConflict, "CANVAS_LOCKED", "canvas does not accept tasks while locked")
		return
	}
	s.snapshot()
	respondOK(w, map[string]any{"task_id": taskID, "canvas_id": c.ID})
}

func (s *Server) updatePrompt(w http.ResponseWriter, r *http.Request, c *canvas.Canvas, taskID string) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if !s.deps.Project.UpdateTaskPrompt(c.ID, taskID, req.Prompt) {
		respondError(w, http.StatusConflict, "PROMPT_UPDATE_REJECTED", "task is not editable")
		return
	}
	s.snapshot()
	respondOK(w, map[string]any{"task_id": taskID})
}

func (s *Server) runTask(w http.ResponseWriter, r *http.Request, c *canvas.Canvas, task taskledger.Task) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.deps.Driver == nil {
		respondError(w, http.StatusServiceUnavailable, "DRIVER_UNAVAILABLE", "task driver is not configured")
		return
	}
	if task.Status != taskledger.StatusPrompting {
		respondError(w, http.StatusConflict, "TASK_NOT_RUNNABLE", "task has already run")
		return
	}
	if c.LockState != canvas.LockNormal {
		respondError(w, http.StatusConflict, "CANVAS_LOCKED", "canvas is locked")
		return
	}

	// The driver reports the terminal id before StartTask returns; it
	// is persisted so a later process recovery can find the session.
	terminalID := ""
	processID, err := s.deps.Driver.StartTask(c.WorkingDir, task.Prompt, func(id string) { terminalID = id })
	if err != nil {
		respondError(w, http.StatusConflict, "TASK_START_FAILED", err.Error())
		return
	}
	if !c.Ledger.StartTask(task.ID, processID) {
		respondError(w, http.StatusConflict, "TASK_NOT_RUNNABLE", "task has already run")
		return
	}
	s.deps.Project.UpsertProcess(c.ID, canvas.ProcessState{
		ProcessID:  processID,
		TerminalID: terminalID,
		Kind:       "task",
		Status:     canvas.ProcessRunning,
		Prompt:     task.Prompt,
	})
	s.snapshot()
	s.PublishEvent(protocol.OpTaskStatusUpdated, c.ID, map[string]any{
		"task_id": task.ID, "status": string(taskledger.StatusInProgress),
	})
	respondOK(w, map[string]any{"task_id": task.ID, "process_id": processID})
}

// stopTask asks the driver to interrupt the running tool. The task
// stays in progress until the driver reports completion or error.
func (s *Server) stopTask(w http.ResponseWriter, r *http.Request, task taskledger.Task) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.deps.Driver == nil {
		respondError(w, http.StatusServiceUnavailable, "DRIVER_UNAVAILABLE", "task driver is not configured")
		return
	}
	if task.Status != taskledger.StatusInProgress {
		respondError(w, http.StatusConflict, "TASK_NOT_RUNNING", "task is not in progress")
		return
	}
	if err := s.deps.Driver.StopTask(); err != nil {
		respondError(w, http.StatusInternalServerError, "TASK_STOP_FAILED", err.Error())
		return
	}
	respondOK(w, map[string]any{"task_id": task.ID, "interrupt_sent": true})
}

func (s *Server) revertTask(w http.ResponseWriter, r *http.Request, c *canvas.Canvas, taskID string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	target, ok := c.Ledger.RevertTargetCommit(taskID)
	if !ok {
		respondError(w, http.StatusConflict, "TASK_NOT_REVERTIBLE", "task is not completed")
		return
	}
	if !c.Ledger.RevertTask(taskID) {
		respondError(w, http.StatusConflict, "TASK_NOT_REVERTIBLE", "task is not completed")
		return
	}
	if target != taskledger.RevertTargetBeforeFirst && s.deps.Reverter != nil {
		if err := s.deps.Reverter.RevertToCommit(c.WorkingDir, target); err != nil {
			respondError(w, http.StatusInternalServerError, "REVERT_FAILED", err.Error())
			return
		}
	}
	s.snapshot()
	s.PublishEvent(protocol.OpTaskStatusUpdated, c.ID, map[string]any{"task_id": taskID, "reverted": true})
	respondOK(w, map[string]any{"task_id": taskID, "revert_target": target})
}

func (s *Server) restoreTask(w http.ResponseWriter, r *http.Request, c *canvas.Canvas, taskID string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	task, ok := c.Ledger.Task(taskID)
	if !ok || task.Status != taskledger.StatusCompleted {
		respondError(w, http.StatusConflict, "TASK_NOT_RESTORABLE", "task is not completed")
		return
	}
	if !c.Ledger.RestoreTask(taskID) {
		respondError(w, http.StatusConflict, "TASK_NOT_RESTORABLE", "task is not completed")
		return
	}
	if task.CommitHash != "" && task.CommitHash != taskledger.NoChangesCommit && s.deps.Reverter != nil {
		if err := s.deps.Reverter.RevertToCommit(c.WorkingDir, task.CommitHash); err != nil {
			respondError(w, http.StatusInternalServerError, "RESTORE_FAILED", err.Error())
			return
		}
	}
	s.snapshot()
	s.PublishEvent(protocol.OpTaskStatusUpdated, c.ID, map[string]any{"task_id": taskID, "reverted": false})
	respondOK(w, map[string]any{"task_id": taskID})
}

func taskPayload(task taskledger.Task) map[string]any {
	return map[string]any{
		"task_id":     task.ID,
		"status":      string(task.Status),
		"prompt":      task.Prompt,
		"process_id":  task.ProcessID,
		"commit_hash": task.CommitHash,
		"is_reverted": task.IsReverted,
	}
}
