package canvas

import (
	"gitcanvas/cli/internal/procregistry"
	"gitcanvas/cli/internal/taskledger"
)

// RecoveredProcess describes one lossy recovery: a persisted process
// claimed to be running but no live driver instance backs it.
type RecoveredProcess struct {
	CanvasID  string
	ProcessID string
	TaskID    string
}

// RecoverProcesses reconciles persisted process claims against the
// registry after a restart. Every "running" record without a live
// instance is marked finished and its in-progress task is force-
// completed with an empty commit hash. This is best-effort and lossy,
// not a resume; callers surface the returned list to the user.
func (p *GitProject) RecoverProcesses(registry *procregistry.Registry) []RecoveredProcess {
	if p == nil {
		return nil
	}
	recovered := []RecoveredProcess{}
	for _, c := range p.Canvases() {
		p.mu.Lock()
		lost := []string{}
		for i := range c.Processes {
			state := &c.Processes[i]
			if state.Status != ProcessRunning {
				continue
			}
			if registry != nil && registry.IsRunning(state.ProcessID) {
				continue
			}
			state.Status = ProcessFinished
			lost = append(lost, state.ProcessID)
		}
		p.mu.Unlock()

		for _, processID := range lost {
			entry := RecoveredProcess{CanvasID: c.ID, ProcessID: processID}
			for _, task := range c.Ledger.Tasks() {
				if task.ProcessID == processID && task.Status == taskledger.StatusInProgress {
					c.Ledger.CompleteTask(task.ID, "")
					entry.TaskID = task.ID
					break
				}
			}
			recovered = append(recovered, entry)
			p.notify("process.recovered", c.ID)
		}
	}
	return recovered
}
