// Package canvas models the aggregate: a GitProject owning isolated
// working-tree copies (canvases), their task ledgers, per-canvas lock
// state and persisted process records. All mutation goes through the
// GitProject, which notifies subscribers of changes.
package canvas

import (
	"time"

	"gitcanvas/cli/internal/taskledger"
)

type LockState string

const (
	LockNormal  LockState = "normal"
	LockMerging LockState = "merging"
	LockMerged  LockState = "merged"
)

type ProcessStatus string

const (
	ProcessRunning  ProcessStatus = "running"
	ProcessFinished ProcessStatus = "finished"
	ProcessError    ProcessStatus = "error"
)

// ProcessState is the persisted claim that work was running. The
// process registry is the authority on whether it still is.
type ProcessState struct {
	ProcessID  string
	TerminalID string
	Kind       string
	Status     ProcessStatus
	StartedAt  time.Time
	ElementID  string
	Prompt     string
}

// Canvas is one isolated copy of the project's working tree.
type Canvas struct {
	ID             string
	Name           string
	WorkingDir     string
	Branch         string
	Ledger         *taskledger.Ledger
	Processes      []ProcessState
	LockState      LockState
	LockingAgentID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LockedAt       time.Time
}

// AgentInfo is the project-level record of a background agent.
type AgentInfo struct {
	ID       string
	Kind     string
	CanvasID string
	Status   string
	Message  string
}
