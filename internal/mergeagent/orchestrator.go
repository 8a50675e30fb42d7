package mergeagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/gitops"
)

const (
	// DefaultMaxAttempts bounds how many automation cycles a merge
	// gets before the agent gives up.
	DefaultMaxAttempts = 3
	// DefaultAttemptTimeout bounds one automation cycle.
	DefaultAttemptTimeout = 30 * time.Minute
)

// mergeRef is the ref StartMerge merges in the root repository. The
// canvas branch only exists in the copied tree's repo, so it is
// fetched into the root first and merged via FETCH_HEAD.
const mergeRef = "FETCH_HEAD"

// GitOps is the slice of gitops the orchestrator needs.
type GitOps interface {
	CurrentBranch(dir string) (string, error)
	FetchBranch(dir, remoteDir, branch string) error
	StartMerge(dir, ref string) error
	MergeInProgress(dir string) bool
	ConflictFiles(dir string) ([]string, error)
	Commit(dir, message string) (string, error)
}

// TaskRunner runs one automation task to completion in the given
// working directory. It returns when the driven CLI finishes, errors,
// or ctx expires.
type TaskRunner interface {
	RunTask(ctx context.Context, workdir, prompt string) error
}

// Options configure an Orchestrator. Zero values take the defaults
// above.
type Options struct {
	Git            GitOps
	Runner         TaskRunner
	PathExists     func(string) bool
	Logger         *slog.Logger
	MaxAttempts    int
	AttemptTimeout time.Duration
	Now            func() time.Time
}

// Orchestrator merges canvases back into the project root, one at a
// time per canvas, under the canvas lock.
type Orchestrator struct {
	git            GitOps
	runner         TaskRunner
	pathExists     func(string) bool
	logger         *slog.Logger
	maxAttempts    int
	attemptTimeout time.Duration
	now            func() time.Time
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Git == nil {
		return nil, errors.New("git is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if opts.PathExists == nil {
		return nil, errors.New("path exists probe is required")
	}
	o := &Orchestrator{
		git:            opts.Git,
		runner:         opts.Runner,
		pathExists:     opts.PathExists,
		logger:         opts.Logger,
		maxAttempts:    opts.MaxAttempts,
		attemptTimeout: opts.AttemptTimeout,
		now:            opts.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = DefaultMaxAttempts
	}
	if o.attemptTimeout <= 0 {
		o.attemptTimeout = DefaultAttemptTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Result reports how a merge run ended. Agent is nil when the run
// never got far enough to create one.
type Result struct {
	Success bool
	Agent   *BackgroundAgent
	Message string
}

// MergeCanvasToRoot merges the canvas branch into the project root
// working tree. The canvas is locked as merging for the duration; on
// success it ends merged, on any failure it returns to normal. A
// missing canvas working directory fails without touching the lock.
func (o *Orchestrator) MergeCanvasToRoot(ctx context.Context, project *canvas.GitProject, canvasID string) (*Result, error) {
	c, ok := project.CanvasByID(canvasID)
	if !ok {
		return nil, fmt.Errorf("canvas %s not found", canvasID)
	}
	if !o.pathExists(c.WorkingDir) {
		o.logger.Warn("merge skipped, canvas workdir missing",
			"module", "mergeagent", "canvas_id", canvasID, "workdir", c.WorkingDir)
		return &Result{Success: false, Message: "canvas working directory does not exist"}, nil
	}

	agent := &BackgroundAgent{
		ID:        "merge-" + uuid.NewString()[:8],
		Kind:      "merge",
		WorkDir:   project.RootDir,
		Status:    StatusInitializing,
		StartedAt: o.now(),
		Context: MergeContext{
			RootDir:           project.RootDir,
			CanvasDir:         c.WorkingDir,
			CanvasBranch:      c.Branch,
			HistoricalPrompts: c.Ledger.HistoricalPrompts(),
			MaxAttempts:       o.maxAttempts,
		},
	}
	o.publish(project, c.ID, agent)

	if !project.LockCanvas(c.ID, canvas.LockMerging, agent.ID) {
		agent.Status = StatusFailed
		agent.Message = "canvas is locked by another agent"
		agent.EndedAt = o.now()
		o.publish(project, c.ID, agent)
		return &Result{Success: false, Agent: agent, Message: agent.Message}, nil
	}

	// Whatever happens below, a canvas that did not reach merged must
	// come back to normal. A dead agent never leaves a lock behind.
	finalized := false
	defer func() {
		if !finalized {
			project.UnlockCanvas(c.ID, agent.ID)
		}
	}()

	rootBranch, err := o.git.CurrentBranch(project.RootDir)
	if err != nil || strings.TrimSpace(rootBranch) == "" {
		rootBranch = "main"
	}
	agent.Context.RootBranch = rootBranch

	// The stored branch name is a fallback; the copied tree's checkout
	// is authoritative.
	canvasBranch, err := o.git.CurrentBranch(c.WorkingDir)
	if err != nil || strings.TrimSpace(canvasBranch) == "" {
		canvasBranch = c.Branch
	}
	agent.Context.CanvasBranch = canvasBranch

	if err := o.git.FetchBranch(project.RootDir, c.WorkingDir, canvasBranch); err != nil {
		return o.fail(project, c.ID, agent, fmt.Sprintf("fetch canvas branch %s: %v", canvasBranch, err)), nil
	}

	clean, err := o.checkCompletion(agent)
	if err != nil {
		return o.fail(project, c.ID, agent, fmt.Sprintf("merge setup failed: %v", err)), nil
	}
	if clean {
		finalized = o.finalize(project, c.ID, agent)
		return &Result{Success: finalized, Agent: agent}, nil
	}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		agent.Context.Attempt = attempt
		agent.Status = StatusRunning
		o.publish(project, c.ID, agent)
		o.logger.Info("merge attempt starting",
			"module", "mergeagent", "canvas_id", c.ID,
			"attempt", attempt, "conflicts", len(agent.Context.ConflictFiles))

		prompt := BuildMergePrompt(agent.Context)
		runCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
		err := o.runner.RunTask(runCtx, project.RootDir, prompt)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return o.fail(project, c.ID, agent, fmt.Sprintf("merge attempt timed out: %v", err)), nil
			}
			o.logger.Warn("merge attempt errored",
				"module", "mergeagent", "canvas_id", c.ID, "attempt", attempt, "error", err)
			continue
		}

		msg := fmt.Sprintf("Merge canvas %s (attempt %d)", c.Name, attempt)
		if _, err := o.git.Commit(project.RootDir, msg); err != nil && !errors.Is(err, gitops.ErrNothingToCommit) {
			o.logger.Warn("merge progress commit failed",
				"module", "mergeagent", "canvas_id", c.ID, "error", err)
		}

		agent.Status = StatusChecking
		o.publish(project, c.ID, agent)
		clean, err := o.checkCompletion(agent)
		if err != nil {
			return o.fail(project, c.ID, agent, fmt.Sprintf("conflict check failed: %v", err)), nil
		}
		if clean {
			finalized = o.finalize(project, c.ID, agent)
			return &Result{Success: finalized, Agent: agent}, nil
		}
	}

	return o.fail(project, c.ID, agent,
		fmt.Sprintf("merge unresolved after %d attempts", o.maxAttempts)), nil
}

// checkCompletion drives the git side of one cycle. It starts the
// merge when none is in progress, records remaining conflicts on the
// agent, and commits the merge when the tree is clean.
func (o *Orchestrator) checkCompletion(agent *BackgroundAgent) (bool, error) {
	root := agent.Context.RootDir
	if !o.git.MergeInProgress(root) {
		mergeErr := o.git.StartMerge(root, mergeRef)
		if mergeErr == nil {
			// Clean merge, possibly with staged changes to seal.
			if _, err := o.git.Commit(root, "Merge "+agent.Context.CanvasBranch); err != nil && !errors.Is(err, gitops.ErrNothingToCommit) {
				return false, err
			}
			agent.Context.ConflictFiles = nil
			return true, nil
		}
		// A failed merge that left no MERGE_HEAD never started, so
		// there are no conflicts for the agent to resolve.
		if !o.git.MergeInProgress(root) {
			return false, fmt.Errorf("start merge of %s: %w", agent.Context.CanvasBranch, mergeErr)
		}
	}
	files, err := o.git.ConflictFiles(root)
	if err != nil {
		return false, err
	}
	agent.Context.ConflictFiles = files
	if len(files) > 0 {
		return false, nil
	}
	if _, err := o.git.Commit(root, "Merge "+agent.Context.CanvasBranch); err != nil && !errors.Is(err, gitops.ErrNothingToCommit) {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) finalize(project *canvas.GitProject, canvasID string, agent *BackgroundAgent) bool {
	if !project.LockCanvas(canvasID, canvas.LockMerged, agent.ID) {
		agent.Status = StatusFailed
		agent.Message = "could not mark canvas merged"
		agent.EndedAt = o.now()
		o.publish(project, canvasID, agent)
		return false
	}
	agent.Status = StatusCompleted
	agent.EndedAt = o.now()
	o.publish(project, canvasID, agent)
	o.logger.Info("merge completed",
		"module", "mergeagent", "canvas_id", canvasID, "agent_id", agent.ID)
	return true
}

func (o *Orchestrator) fail(project *canvas.GitProject, canvasID string, agent *BackgroundAgent, message string) *Result {
	agent.Status = StatusFailed
	agent.Message = message
	agent.EndedAt = o.now()
	o.publish(project, canvasID, agent)
	o.logger.Warn("merge failed",
		"module", "mergeagent", "canvas_id", canvasID, "agent_id", agent.ID, "reason", message)
	return &Result{Success: false, Agent: agent, Message: message}
}

func (o *Orchestrator) publish(project *canvas.GitProject, canvasID string, agent *BackgroundAgent) {
	project.UpsertAgent(canvas.AgentInfo{
		ID:       agent.ID,
		Kind:     agent.Kind,
		CanvasID: canvasID,
		Status:   string(agent.Status),
		Message:  agent.Message,
	})
}
