package mergeagent

import (
	"context"
	"fmt"

	"gitcanvas/cli/internal/agentdriver"
)

// DriverRunner runs each task on a fresh automation driver, so merge
// cycles never share terminal state with interactive canvas work.
type DriverRunner struct {
	Options agentdriver.Options
}

func (r *DriverRunner) RunTask(ctx context.Context, workdir, prompt string) error {
	done := make(chan error, 1)
	opts := r.Options
	opts.Events = &completionEvents{base: opts.Events, done: done}
	drv, err := agentdriver.New(opts)
	if err != nil {
		return err
	}
	defer drv.Cleanup(true)
	if _, err := drv.StartTask(workdir, prompt, nil); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// completionEvents forwards driver notifications and resolves the
// run's done channel exactly once.
type completionEvents struct {
	base     agentdriver.Events
	done     chan error
	resolved bool
}

func (e *completionEvents) TaskStarted(processID string) {
	if e.base != nil {
		e.base.TaskStarted(processID)
	}
}

func (e *completionEvents) ScreenUpdate(processID, window string) {
	if e.base != nil {
		e.base.ScreenUpdate(processID, window)
	}
}

func (e *completionEvents) TaskCompleted(processID string) {
	if e.base != nil {
		e.base.TaskCompleted(processID)
	}
	e.resolve(nil)
}

func (e *completionEvents) TaskError(processID string, err error) {
	if e.base != nil {
		e.base.TaskError(processID, err)
	}
	e.resolve(fmt.Errorf("task %s: %w", processID, err))
}

func (e *completionEvents) SessionReady(processID string) {
	if e.base != nil {
		e.base.SessionReady(processID)
	}
}

func (e *completionEvents) resolve(err error) {
	if e.resolved {
		return
	}
	e.resolved = true
	e.done <- err
}
