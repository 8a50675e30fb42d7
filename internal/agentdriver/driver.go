// Package agentdriver steers an interactive coding CLI through its
// text UI. It owns one terminal session, rebuilds the screen from
// transport events, and reacts to the visible window with keystrokes
// until the task is done. There is no machine-readable protocol with
// the driven tool; everything is pattern matching over rendered text.
package agentdriver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitcanvas/cli/internal/procregistry"
	"gitcanvas/cli/internal/termbuf"
	"gitcanvas/cli/internal/termtransport"
)

var ErrAlreadyRunning = errors.New("a task is already running on this driver")

const (
	defaultCommand         = "claude"
	defaultSettleDelay     = 500 * time.Millisecond
	defaultCompletionDelay = 3 * time.Second
)

// Events receives driver notifications. Implementations must be fast;
// callbacks run on the terminal event goroutine.
type Events interface {
	TaskStarted(processID string)
	ScreenUpdate(processID, window string)
	TaskCompleted(processID string)
	TaskError(processID string, err error)
	SessionReady(processID string)
}

// NopEvents discards every notification.
type NopEvents struct{}

func (NopEvents) TaskStarted(string)         {}
func (NopEvents) ScreenUpdate(string, string) {}
func (NopEvents) TaskCompleted(string)       {}
func (NopEvents) TaskError(string, error)    {}
func (NopEvents) SessionReady(string)        {}

type Options struct {
	Transport termtransport.Transport
	Registry  *procregistry.Registry
	Events    Events
	Logger    *slog.Logger
	Triggers  []Trigger
	Command   string
	Rows      int
	Cols      int
	// SettleDelay is the pause between typing the prompt and
	// submitting it, giving the driven tool time to render the text.
	SettleDelay time.Duration
	// CompletionDelay is how long the secondary "looks done" guess
	// waits before firing; any buffer activity in between cancels it.
	CompletionDelay time.Duration
	// LookPath probes tool availability; swapped in tests.
	LookPath func(string) (string, error)
}

type Driver struct {
	transport       termtransport.Transport
	registry        *procregistry.Registry
	events          Events
	logger          *slog.Logger
	triggers        []Trigger
	command         string
	rows, cols      int
	settleDelay     time.Duration
	completionDelay time.Duration
	lookPath        func(string) (string, error)

	mu           sync.Mutex
	processID    string
	terminalID   string
	buffer       *termbuf.Buffer
	state        TriggerState
	prompt       string
	running      bool
	sessionReady bool
	completed    bool
	doneTimer    *time.Timer
}

func New(opts Options) (*Driver, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	events := opts.Events
	if events == nil {
		events = NopEvents{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	triggers := opts.Triggers
	if len(triggers) == 0 {
		triggers = DefaultTriggers()
	}
	command := strings.TrimSpace(opts.Command)
	if command == "" {
		command = defaultCommand
	}
	rows, cols := opts.Rows, opts.Cols
	if rows < termtransport.MinRows {
		rows = termtransport.MinRows
	}
	if cols < termtransport.MinCols {
		cols = termtransport.MinCols
	}
	settle := opts.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	completion := opts.CompletionDelay
	if completion <= 0 {
		completion = defaultCompletionDelay
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Driver{
		transport:       opts.Transport,
		registry:        opts.Registry,
		events:          events,
		logger:          logger.With("module", "agentdriver"),
		triggers:        triggers,
		command:         command,
		rows:            rows,
		cols:            cols,
		settleDelay:     settle,
		completionDelay: completion,
		lookPath:        lookPath,
		buffer:          termbuf.NewBuffer(),
	}, nil
}

// StartTask opens (or reuses) the terminal session, launches the tool
// and begins steering it toward the given prompt. onTerminalReady is
// called with the terminal id before the task proceeds.
func (d *Driver) StartTask(workdir, prompt string, onTerminalReady func(terminalID string)) (string, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	processID := "proc-" + uuid.NewString()
	d.processID = processID
	d.prompt = prompt
	d.state = TriggerState{}
	d.completed = false
	d.running = true
	reuse := d.sessionReady && d.terminalID != "" && d.transport.IsAlive(d.terminalID)
	d.sessionReady = false
	terminalID := d.terminalID
	d.mu.Unlock()

	// Availability and working-directory probes are diagnostic only;
	// a miss shows up later as a driver error, not a start failure.
	if _, err := d.lookPath(d.command); err != nil {
		d.logger.Warn("driven tool not found on PATH", "command", d.command, "err", err)
	}
	if workdir != "" {
		if _, err := os.Stat(workdir); err != nil {
			d.logger.Warn("working directory probe failed", "workdir", workdir, "err", err)
		}
	}

	if !reuse {
		id, err := d.transport.Connect(termtransport.Spec{
			Rows:       d.rows,
			Cols:       d.cols,
			WorkingDir: workdir,
			Command:    d.command,
		})
		if err != nil {
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return "", fmt.Errorf("start task: %w", err)
		}
		terminalID = id
		d.mu.Lock()
		d.terminalID = id
		d.buffer = termbuf.NewBuffer()
		d.mu.Unlock()

		if err := d.transport.OnEvent(id, d.handleEvents); err != nil {
			d.mu.Lock()
			d.running = false
			d.mu.Unlock()
			return "", err
		}
		_ = d.transport.OnDisconnect(id, d.handleDisconnect)
	}

	if d.registry != nil {
		d.registry.Register(processID, d)
		d.registry.AssociateTerminal(processID, terminalID)
	}
	if onTerminalReady != nil {
		onTerminalReady(terminalID)
	}
	d.logger.Info("task started", "process_id", processID, "terminal_id", terminalID, "reused_session", reuse)
	d.events.TaskStarted(processID)
	return processID, nil
}

// StopTask requests an interrupt and leaves the terminal alive for
// reuse. It does not wait for the underlying process to stop.
func (d *Driver) StopTask() error {
	d.mu.Lock()
	terminalID := d.terminalID
	d.mu.Unlock()
	if terminalID == "" {
		return errors.New("no terminal session")
	}
	return d.transport.SendKeys(terminalID, termtransport.KeyCtrlC)
}

// Cleanup terminates the terminal and clears all state. The driver is
// always removed from the registry, even when the kill fails.
func (d *Driver) Cleanup(force bool) {
	d.mu.Lock()
	terminalID := d.terminalID
	processID := d.processID
	wasRunning := d.running
	d.terminalID = ""
	d.running = false
	d.sessionReady = false
	d.prompt = ""
	d.state = TriggerState{}
	d.buffer = termbuf.NewBuffer()
	d.stopDoneTimerLocked()
	d.mu.Unlock()

	if terminalID != "" {
		if !force && wasRunning {
			// Best-effort interrupt first so the tool can flush.
			_ = d.transport.SendKeys(terminalID, termtransport.KeyCtrlC)
		}
		if err := d.transport.Kill(terminalID); err != nil {
			d.logger.Warn("terminal kill failed", "terminal_id", terminalID, "err", err)
		}
	}
	if d.registry != nil && processID != "" {
		d.registry.Unregister(processID)
		d.registry.DisassociateTerminal(processID)
	}
}

// IsRunning satisfies the registry's liveness predicate.
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// IsSessionReady reports whether the driven tool is back at an idle
// prompt and a new prompt can be submitted without relaunching it.
func (d *Driver) IsSessionReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionReady
}

func (d *Driver) ProcessID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processID
}

func (d *Driver) TerminalID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.terminalID
}

// handleEvents applies a transport batch to the buffer and reacts.
// The transport delivers batches for one terminal on one goroutine, so
// buffer access stays single-writer.
func (d *Driver) handleEvents(events []termbuf.Event) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.buffer.ApplyAll(events)
	window := d.buffer.WindowText(d.rows)
	state := d.state
	processID := d.processID
	// Fresh activity invalidates a pending "looks done" guess.
	d.stopDoneTimerLocked()
	d.mu.Unlock()

	d.events.ScreenUpdate(processID, window)

	trigger, matched := Evaluate(d.triggers, window, state)
	if matched {
		d.applyTrigger(trigger, processID)
		if trigger.Action == ActionEndInput || trigger.Action == ActionWait {
			return
		}
	}

	if LooksDone(window) {
		d.armDoneTimer(processID)
	}
}

func (d *Driver) applyTrigger(trigger Trigger, processID string) {
	d.mu.Lock()
	terminalID := d.terminalID
	prompt := d.prompt
	d.mu.Unlock()
	if terminalID == "" {
		return
	}

	switch trigger.Action {
	case ActionConfirmTrust:
		d.logger.Info("answering folder trust prompt", "process_id", processID)
		_ = d.transport.SendKeys(terminalID, termtransport.KeyEnter)
	case ActionSkipSessionPrompt:
		d.logger.Info("skipping session prompt", "process_id", processID)
		_ = d.transport.SendKeys(terminalID, termtransport.KeyShiftTab)
	case ActionInjectPrompt:
		d.mu.Lock()
		if d.state.PromptInjected {
			d.mu.Unlock()
			return
		}
		d.state.PromptInjected = true
		d.mu.Unlock()
		d.logger.Info("injecting task prompt", "process_id", processID, "prompt_len", len(prompt))
		_ = d.transport.SendRawInput(terminalID, prompt)
		time.Sleep(d.settleDelay)
		_ = d.transport.SendKeys(terminalID, termtransport.KeyEnter)
	case ActionEndInput:
		d.logger.Info("tool idle after prompt, ending input", "process_id", processID)
		// Some CLIs need the signal twice to fully leave the loop.
		_ = d.transport.SendKeys(terminalID, termtransport.KeyCtrlD, termtransport.KeyCtrlD)
		d.completeTask(processID)
	case ActionWait:
		// Still working.
	}
}

// armDoneTimer schedules the best-effort completion callback. The
// primary trigger table stays authoritative: completeTask is gated so
// only one signal per run wins.
func (d *Driver) armDoneTimer(processID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.completed || d.doneTimer != nil {
		return
	}
	d.doneTimer = time.AfterFunc(d.completionDelay, func() {
		d.logger.Info("completion guessed from idle output", "process_id", processID)
		d.completeTask(processID)
	})
}

func (d *Driver) stopDoneTimerLocked() {
	if d.doneTimer != nil {
		d.doneTimer.Stop()
		d.doneTimer = nil
	}
}

func (d *Driver) completeTask(processID string) {
	d.mu.Lock()
	if d.completed || !d.running || d.processID != processID {
		d.mu.Unlock()
		return
	}
	d.completed = true
	d.running = false
	d.sessionReady = true
	d.stopDoneTimerLocked()
	d.mu.Unlock()

	d.events.TaskCompleted(processID)
	d.events.SessionReady(processID)
}

func (d *Driver) handleDisconnect() {
	d.mu.Lock()
	processID := d.processID
	wasRunning := d.running
	d.running = false
	d.sessionReady = false
	d.terminalID = ""
	d.stopDoneTimerLocked()
	d.mu.Unlock()

	if wasRunning {
		d.events.TaskError(processID, errors.New("terminal disconnected"))
	}
}
