package localapi

import (
	"errors"
	"log/slog"
	"unicode/utf8"

	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/gitops"
	"gitcanvas/cli/internal/protocol"
	"gitcanvas/cli/internal/taskledger"
)

// GitCommitter seals a finished task's working tree into a commit.
type GitCommitter interface {
	Commit(dir, message string) (string, error)
}

// TaskEvents closes the loop between the automation driver and the
// ledger: when the driven CLI finishes, the canvas working tree is
// committed and the in-progress task completes with the hash. A run
// that changed nothing completes with the no-changes marker instead.
type TaskEvents struct {
	Project  *canvas.GitProject
	Git      GitCommitter
	Snapshot Snapshotter
	Publish  func(topic, canvasID string, payload map[string]any)
	Logger   *slog.Logger
}

func (e *TaskEvents) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *TaskEvents) TaskStarted(processID string) {
	e.logger().Info("task started", "module", "localapi", "process_id", processID)
}

func (e *TaskEvents) ScreenUpdate(processID, window string) {
	if e.Publish == nil {
		return
	}
	canvasID := ""
	if c, _ := e.findByProcess(processID); c != nil {
		canvasID = c.ID
	}
	e.Publish(protocol.OpTerminalScreenUpdated, canvasID, map[string]any{
		"process_id": processID,
		"window":     window,
	})
}

func (e *TaskEvents) TaskCompleted(processID string) {
	c, task := e.findByProcess(processID)
	if c == nil || task == nil {
		e.logger().Warn("completion for unknown process", "module", "localapi", "process_id", processID)
		return
	}

	hash := taskledger.NoChangesCommit
	if e.Git != nil {
		h, err := e.Git.Commit(c.WorkingDir, "Task: "+truncatePrompt(task.Prompt))
		switch {
		case err == nil:
			hash = h
		case errors.Is(err, gitops.ErrNothingToCommit):
			// keep the marker
		default:
			e.logger().Warn("task commit failed", "module", "localapi",
				"process_id", processID, "error", err)
			hash = ""
		}
	}

	c.Ledger.CompleteTask(task.ID, hash)
	e.Project.UpsertProcess(c.ID, canvas.ProcessState{
		ProcessID: processID,
		Kind:      "task",
		Status:    canvas.ProcessFinished,
		Prompt:    task.Prompt,
	})
	e.snapshot()
	if e.Publish != nil {
		e.Publish(protocol.OpTaskStatusUpdated, c.ID, map[string]any{
			"task_id": task.ID, "status": string(taskledger.StatusCompleted), "commit_hash": hash,
		})
	}
}

func (e *TaskEvents) TaskError(processID string, err error) {
	c, task := e.findByProcess(processID)
	if c == nil || task == nil {
		return
	}
	// The run died without a result: complete empty so the canvas is
	// not stuck with a phantom in-progress task.
	c.Ledger.CompleteTask(task.ID, "")
	e.Project.UpsertProcess(c.ID, canvas.ProcessState{
		ProcessID: processID,
		Kind:      "task",
		Status:    canvas.ProcessError,
		Prompt:    task.Prompt,
	})
	e.snapshot()
	if e.Publish != nil {
		e.Publish(protocol.OpTaskStatusUpdated, c.ID, map[string]any{
			"task_id": task.ID, "status": string(taskledger.StatusCompleted), "error": err.Error(),
		})
	}
}

func (e *TaskEvents) SessionReady(processID string) {
	e.logger().Info("agent session ready", "module", "localapi", "process_id", processID)
}

func (e *TaskEvents) findByProcess(processID string) (*canvas.Canvas, *taskledger.Task) {
	if e.Project == nil {
		return nil, nil
	}
	for _, c := range e.Project.Canvases() {
		for _, task := range c.Ledger.Tasks() {
			if task.ProcessID == processID && task.Status == taskledger.StatusInProgress {
				t := task
				return c, &t
			}
		}
	}
	return nil, nil
}

func (e *TaskEvents) snapshot() {
	if e.Snapshot == nil || e.Project == nil {
		return
	}
	if err := e.Snapshot.SaveProject(e.Project); err != nil {
		e.logger().Warn("project snapshot failed", "module", "localapi", "error", err)
	}
}

// truncatePrompt caps the commit subject without splitting a rune.
func truncatePrompt(prompt string) string {
	const limit = 72
	if len(prompt) <= limit {
		return prompt
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(prompt[cut]) {
		cut--
	}
	return prompt[:cut]
}
