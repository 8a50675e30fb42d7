// Package mergeagent merges a canvas branch back into the project
// root. A background agent takes an exclusive lock on the canvas,
// drives an automation task over any conflicts, and releases the lock
// no matter how the run ends.
package mergeagent

import "time"

// Status is the lifecycle of one background agent.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusChecking     Status = "checking"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// MergeContext is the working set for one merge cycle.
type MergeContext struct {
	RootDir           string
	CanvasDir         string
	RootBranch        string
	CanvasBranch      string
	HistoricalPrompts []string
	ConflictFiles     []string
	Attempt           int
	MaxAttempts       int
}

// BackgroundAgent records one merge run. It doubles as the locking
// identity on the canvas.
type BackgroundAgent struct {
	ID        string
	Kind      string
	WorkDir   string
	Status    Status
	ProcessID string
	Message   string
	Context   MergeContext
	StartedAt time.Time
	EndedAt   time.Time
}
