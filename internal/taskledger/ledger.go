// Package taskledger keeps the per-canvas ordered record of prompts
// and their git-commit outcomes. Task status only moves forward:
// Prompting -> InProgress -> Completed. The reverted flag toggles
// independently and never regresses status.
package taskledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPrompting  Status = "prompting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// NoChangesCommit marks a task that finished without producing a
// commit. It is distinct from both a real hash and an empty hash, so
// "succeeded with nothing to commit" renders differently from failure.
const NoChangesCommit = "NO_CHANGES"

// RevertTargetBeforeFirst means "one step before the oldest tracked
// commit": no completed task before the given one carries a real hash.
const RevertTargetBeforeFirst = "BEFORE_FIRST_COMMIT"

type Task struct {
	ID          string
	Status      Status
	Prompt      string
	CreatedAt   time.Time
	StartedAt   time.Time
	ProcessID   string
	CompletedAt time.Time
	CommitHash  string
	IsReverted  bool
	DependsOn   []string
}

type Ledger struct {
	mu    sync.Mutex
	tasks []*Task
	now   func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// NewLedgerFromTasks rebuilds a ledger from persisted rows, keeping
// the given creation order.
func NewLedgerFromTasks(tasks []Task) *Ledger {
	l := NewLedger()
	for i := range tasks {
		task := tasks[i]
		l.tasks = append(l.tasks, &task)
	}
	return l
}

func (l *Ledger) CreatePromptingTask(prompt string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	task := &Task{
		ID:        uuid.NewString(),
		Status:    StatusPrompting,
		Prompt:    prompt,
		CreatedAt: l.now(),
	}
	l.tasks = append(l.tasks, task)
	return task.ID
}

// StartTask moves a Prompting task to InProgress. It reports false if
// the task is missing or not in Prompting.
func (l *Ledger) StartTask(id, processID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	task := l.findLocked(id)
	if task == nil || task.Status != StatusPrompting {
		return false
	}
	task.Status = StatusInProgress
	task.StartedAt = l.now()
	task.ProcessID = strings.TrimSpace(processID)
	return true
}

// CompleteTask moves an InProgress task to Completed, stamping the
// completion time and clearing the reverted flag.
func (l *Ledger) CompleteTask(id, commitHash string, dependsOn ...string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	task := l.findLocked(id)
	if task == nil || task.Status != StatusInProgress {
		return false
	}
	task.Status = StatusCompleted
	task.CompletedAt = l.now()
	task.CommitHash = strings.TrimSpace(commitHash)
	task.IsReverted = false
	if len(dependsOn) > 0 {
		task.DependsOn = append([]string{}, dependsOn...)
	}
	return true
}

// UpdateTaskPrompt edits the prompt text; legal only while Prompting.
func (l *Ledger) UpdateTaskPrompt(id, prompt string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	task := l.findLocked(id)
	if task == nil || task.Status != StatusPrompting {
		return false
	}
	task.Prompt = prompt
	return true
}

// CurrentPromptingTask returns the most recently created task still in
// Prompting. UI convention keeps at most one active; the ledger does
// not enforce that.
func (l *Ledger) CurrentPromptingTask() (Task, bool) {
	return l.lastWithStatus(StatusPrompting)
}

// CurrentInProgressTask returns the most recent InProgress task.
func (l *Ledger) CurrentInProgressTask() (Task, bool) {
	return l.lastWithStatus(StatusInProgress)
}

func (l *Ledger) lastWithStatus(status Status) (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.tasks) - 1; i >= 0; i-- {
		if l.tasks[i].Status == status {
			return *l.tasks[i], true
		}
	}
	return Task{}, false
}

func (l *Ledger) Task(id string) (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	task := l.findLocked(id)
	if task == nil {
		return Task{}, false
	}
	return *task, true
}

// Tasks returns a copy of every task in creation order.
func (l *Ledger) Tasks() []Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Task, 0, len(l.tasks))
	for _, task := range l.tasks {
		out = append(out, *task)
	}
	return out
}

// RevertTask marks the given completed task and every completed task
// after it as reverted: undoing a task undoes everything built on it.
func (l *Ledger) RevertTask(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	completed := l.completedLocked()
	k := indexOf(completed, id)
	if k < 0 {
		return false
	}
	for _, task := range completed[k:] {
		task.IsReverted = true
	}
	return true
}

// RestoreTask clears the reverted flag on every completed task from
// the ledger start through the given one: restoring re-applies
// everything up to and including it. Tasks after it keep whatever a
// prior revert set.
func (l *Ledger) RestoreTask(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	completed := l.completedLocked()
	k := indexOf(completed, id)
	if k < 0 {
		return false
	}
	for _, task := range completed[:k+1] {
		task.IsReverted = false
	}
	return true
}

// RevertTargetCommit finds the nearest completed task strictly before
// the given one whose commit hash is real, and returns its hash. With
// no such task it returns RevertTargetBeforeFirst.
func (l *Ledger) RevertTargetCommit(id string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	completed := l.completedLocked()
	k := indexOf(completed, id)
	if k < 0 {
		return "", false
	}
	for i := k - 1; i >= 0; i-- {
		hash := completed[i].CommitHash
		if hash != "" && hash != NoChangesCommit {
			return hash, true
		}
	}
	return RevertTargetBeforeFirst, true
}

// HistoricalPrompts returns the prompts of non-reverted completed
// tasks in creation order. Merge agents replay these as context.
func (l *Ledger) HistoricalPrompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	prompts := []string{}
	for _, task := range l.tasks {
		if task.Status == StatusCompleted && !task.IsReverted && strings.TrimSpace(task.Prompt) != "" {
			prompts = append(prompts, task.Prompt)
		}
	}
	return prompts
}

func (l *Ledger) findLocked(id string) *Task {
	for _, task := range l.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}

func (l *Ledger) completedLocked() []*Task {
	completed := []*Task{}
	for _, task := range l.tasks {
		if task.Status == StatusCompleted {
			completed = append(completed, task)
		}
	}
	return completed
}

func indexOf(tasks []*Task, id string) int {
	for i, task := range tasks {
		if task.ID == id {
			return i
		}
	}
	return -1
}
