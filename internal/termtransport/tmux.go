package termtransport

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitcanvas/cli/internal/termbuf"
)

const defaultPollInterval = 250 * time.Millisecond

var ErrTerminalNotFound = errors.New("terminal not found")

// TmuxTransport runs every terminal as a detached tmux session on a
// private socket and polls pane content into termbuf events.
type TmuxTransport struct {
	exec         Exec
	socket       string
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*tmuxSession
}

type tmuxSession struct {
	id   string
	name string

	mu           sync.Mutex
	prev         Frame
	primed       bool
	alive        bool
	onEvent      func([]termbuf.Event)
	onDisconnect func()
	stop         chan struct{}
}

type TmuxOptions struct {
	Exec         Exec
	Socket       string
	PollInterval time.Duration
	Logger       *slog.Logger
}

func NewTmuxTransport(opts TmuxOptions) *TmuxTransport {
	e := opts.Exec
	if e == nil {
		e = &RealExec{}
	}
	socket := strings.TrimSpace(opts.Socket)
	if socket == "" {
		socket = "gitcanvas"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TmuxTransport{
		exec:         e,
		socket:       socket,
		pollInterval: interval,
		logger:       logger.With("module", "termtransport"),
		sessions:     map[string]*tmuxSession{},
	}
}

func (t *TmuxTransport) withSocket(args ...string) []string {
	return append([]string{"-L", t.socket}, args...)
}

func (t *TmuxTransport) Connect(spec Spec) (string, error) {
	if t == nil {
		return "", errors.New("transport is nil")
	}
	spec = spec.Normalize()
	id := "term-" + uuid.NewString()[:8]
	name := "gc-" + id

	args := []string{
		"new-session", "-d", "-s", name,
		"-x", strconv.Itoa(spec.Cols),
		"-y", strconv.Itoa(spec.Rows),
	}
	if dir := strings.TrimSpace(spec.WorkingDir); dir != "" {
		args = append(args, "-c", dir)
	}
	for k, v := range spec.Env {
		args = append(args, "-e", k+"="+v)
	}
	if cmd := strings.TrimSpace(spec.Command); cmd != "" {
		args = append(args, cmd)
	}
	if err := t.exec.Run("tmux", t.withSocket(args...)...); err != nil {
		return "", fmt.Errorf("open terminal session: %w", err)
	}

	sess := &tmuxSession{
		id:    id,
		name:  name,
		alive: true,
		stop:  make(chan struct{}),
	}
	t.mu.Lock()
	t.sessions[id] = sess
	t.mu.Unlock()

	go t.pollLoop(sess)
	t.logger.Info("terminal connected", "terminal_id", id, "rows", spec.Rows, "cols", spec.Cols, "workdir", spec.WorkingDir)
	return id, nil
}

func (t *TmuxTransport) session(terminalID string) (*tmuxSession, error) {
	if t == nil {
		return nil, errors.New("transport is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[strings.TrimSpace(terminalID)]
	if !ok {
		return nil, ErrTerminalNotFound
	}
	return sess, nil
}

func (t *TmuxTransport) SendRawInput(terminalID, data string) error {
	sess, err := t.session(terminalID)
	if err != nil {
		return err
	}
	return t.exec.Run("tmux", t.withSocket("send-keys", "-l", "-t", sess.name, data)...)
}

func (t *TmuxTransport) SendKeys(terminalID string, keys ...Key) error {
	sess, err := t.session(terminalID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := t.exec.Run("tmux", t.withSocket("send-keys", "-t", sess.name, string(key))...); err != nil {
			return err
		}
	}
	return nil
}

func (t *TmuxTransport) Resize(terminalID string, rows, cols int) error {
	sess, err := t.session(terminalID)
	if err != nil {
		return err
	}
	if rows < MinRows {
		rows = MinRows
	}
	if cols < MinCols {
		cols = MinCols
	}
	return t.exec.Run("tmux", t.withSocket(
		"resize-window", "-t", sess.name,
		"-x", strconv.Itoa(cols),
		"-y", strconv.Itoa(rows),
	)...)
}

func (t *TmuxTransport) Kill(terminalID string) error {
	sess, err := t.session(terminalID)
	if err != nil {
		return err
	}
	sess.close()
	t.mu.Lock()
	delete(t.sessions, sess.id)
	t.mu.Unlock()
	return t.exec.Run("tmux", t.withSocket("kill-session", "-t", sess.name)...)
}

func (t *TmuxTransport) OnEvent(terminalID string, fn func([]termbuf.Event)) error {
	sess, err := t.session(terminalID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.onEvent = fn
	sess.mu.Unlock()
	return nil
}

func (t *TmuxTransport) OnDisconnect(terminalID string, fn func()) error {
	sess, err := t.session(terminalID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.onDisconnect = fn
	sess.mu.Unlock()
	return nil
}

func (t *TmuxTransport) IsAlive(terminalID string) bool {
	sess, err := t.session(terminalID)
	if err != nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.alive
}

// pollLoop captures the pane on an interval and forwards diff events.
// It runs until the session is killed or the capture starts failing,
// which is treated as a disconnect.
func (t *TmuxTransport) pollLoop(sess *tmuxSession) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			if !t.pollOnce(sess) {
				return
			}
		}
	}
}

func (t *TmuxTransport) pollOnce(sess *tmuxSession) bool {
	frame, err := t.captureFrame(sess.name)
	if err != nil {
		t.logger.Warn("pane capture failed, treating as disconnect", "terminal_id", sess.id, "err", err)
		t.mu.Lock()
		delete(t.sessions, sess.id)
		t.mu.Unlock()
		sess.disconnect()
		return false
	}

	sess.mu.Lock()
	var events []termbuf.Event
	if !sess.primed {
		// First capture seeds the buffer as a full redraw.
		screen := make([][]termbuf.LineItem, 0, len(frame.Lines))
		for _, line := range frame.Lines {
			screen = append(screen, termbuf.PlainLine(line))
		}
		events = []termbuf.Event{termbuf.ScreenUpdate{
			Screen:     screen,
			CursorLine: frame.CursorLine,
			CursorCol:  frame.CursorCol,
		}}
		sess.primed = true
	} else {
		events = DiffFrames(sess.prev, frame)
	}
	sess.prev = frame
	onEvent := sess.onEvent
	sess.mu.Unlock()

	if len(events) > 0 && onEvent != nil {
		onEvent(events)
	}
	return true
}

func (t *TmuxTransport) captureFrame(name string) (Frame, error) {
	out, err := t.exec.Output("tmux", t.withSocket("capture-pane", "-p", "-t", name)...)
	if err != nil {
		return Frame{}, err
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")

	cursorOut, err := t.exec.Output("tmux", t.withSocket("display-message", "-p", "-t", name, "#{cursor_y} #{cursor_x}")...)
	if err != nil {
		return Frame{}, err
	}
	fields := strings.Fields(strings.TrimSpace(string(cursorOut)))
	frame := Frame{Lines: lines}
	if len(fields) >= 2 {
		if y, err := strconv.Atoi(fields[0]); err == nil {
			frame.CursorLine = y
		}
		if x, err := strconv.Atoi(fields[1]); err == nil {
			frame.CursorCol = x
		}
	}
	return frame, nil
}

func (s *tmuxSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return
	}
	s.alive = false
	close(s.stop)
}

func (s *tmuxSession) disconnect() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	close(s.stop)
	onDisconnect := s.onDisconnect
	s.mu.Unlock()
	if onDisconnect != nil {
		onDisconnect()
	}
}
