package canvas

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitcanvas/cli/internal/taskledger"
)

// Collaborators are the black-box operations canvas creation needs.
// They are injected so tests run without a real tree or git.
type Collaborators struct {
	CopyDirectory func(src, dst string) error
	CreateBranch  func(dir, name string) error
	PathExists    func(path string) bool
}

// ChangeListener observes project mutations. event names follow
// "entity.change" (canvas.created, canvas.lock.updated,
// task.updated, process.recovered, agent.updated).
type ChangeListener func(event, canvasID string)

type GitProject struct {
	ID      string
	Name    string
	RootDir string

	mu           sync.Mutex
	canvases     []*Canvas
	currentIndex int
	agents       []AgentInfo
	listeners    []ChangeListener
	collab       Collaborators
	now          func() time.Time
}

func NewProject(name, rootDir string, collab Collaborators) *GitProject {
	return &GitProject{
		ID:      uuid.NewString(),
		Name:    name,
		RootDir: rootDir,
		collab:  collab,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *GitProject) Subscribe(listener ChangeListener) {
	if p == nil || listener == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, listener)
	p.mu.Unlock()
}

func (p *GitProject) notify(event, canvasID string) {
	p.mu.Lock()
	listeners := append([]ChangeListener{}, p.listeners...)
	p.mu.Unlock()
	for _, listener := range listeners {
		listener(event, canvasID)
	}
}

// CreateCanvas copies the project root into a fresh working tree and
// puts it on its own branch. Canvases are only ever created this way,
// by explicit user action or the first-canvas default.
func (p *GitProject) CreateCanvas(name string) (*Canvas, error) {
	if p == nil {
		return nil, fmt.Errorf("project is nil")
	}
	id := uuid.NewString()
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Canvas %d", p.CanvasCount()+1)
	}
	workdir := filepath.Join(filepath.Dir(p.RootDir), filepath.Base(p.RootDir)+"-canvases", id[:8])
	if p.collab.CopyDirectory != nil {
		if err := p.collab.CopyDirectory(p.RootDir, workdir); err != nil {
			return nil, fmt.Errorf("copy working tree: %w", err)
		}
	}
	branch := "canvas/" + id[:8]
	if p.collab.CreateBranch != nil {
		if err := p.collab.CreateBranch(workdir, branch); err != nil {
			return nil, fmt.Errorf("create canvas branch: %w", err)
		}
	}

	now := p.now()
	c := &Canvas{
		ID:         id,
		Name:       name,
		WorkingDir: workdir,
		Branch:     branch,
		Ledger:     taskledger.NewLedger(),
		LockState:  LockNormal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.mu.Lock()
	p.canvases = append(p.canvases, c)
	p.mu.Unlock()
	p.notify("canvas.created", id)
	return c, nil
}

// EnsureDefaultCanvas creates the first canvas when none exist yet.
func (p *GitProject) EnsureDefaultCanvas() (*Canvas, error) {
	if p.CanvasCount() > 0 {
		return p.CurrentCanvas(), nil
	}
	return p.CreateCanvas("Canvas 1")
}

// AttachCanvas adds an already-built canvas, used when loading
// persisted state.
func (p *GitProject) AttachCanvas(c *Canvas) {
	if p == nil || c == nil {
		return
	}
	p.mu.Lock()
	p.canvases = append(p.canvases, c)
	p.mu.Unlock()
}

func (p *GitProject) CanvasCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.canvases)
}

func (p *GitProject) Canvases() []*Canvas {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Canvas{}, p.canvases...)
}

func (p *GitProject) CanvasByID(id string) (*Canvas, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.canvases {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (p *GitProject) CurrentCanvas() *Canvas {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentIndex < 0 || p.currentIndex >= len(p.canvases) {
		return nil
	}
	return p.canvases[p.currentIndex]
}

func (p *GitProject) SetCurrentCanvas(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.canvases {
		if c.ID == id {
			p.currentIndex = i
			return true
		}
	}
	return false
}

// LockCanvas moves a canvas into the requested lock state on behalf of
// one agent. It fails when a different agent holds the canvas or when
// the transition is illegal: merging is only reachable from normal,
// merged only from merging.
func (p *GitProject) LockCanvas(canvasID string, state LockState, agentID string) bool {
	p.mu.Lock()
	c := p.canvasLocked(canvasID)
	if c == nil {
		p.mu.Unlock()
		return false
	}
	if c.LockState != LockNormal && c.LockingAgentID != agentID {
		p.mu.Unlock()
		return false
	}
	switch state {
	case LockMerging:
		if c.LockState != LockNormal {
			p.mu.Unlock()
			return false
		}
	case LockMerged:
		if c.LockState != LockMerging {
			p.mu.Unlock()
			return false
		}
	default:
		p.mu.Unlock()
		return false
	}
	c.LockState = state
	c.LockingAgentID = agentID
	c.LockedAt = p.now()
	c.UpdatedAt = c.LockedAt
	p.mu.Unlock()
	p.notify("canvas.lock.updated", canvasID)
	return true
}

// UnlockCanvas resets a canvas to normal. With a non-empty agentID it
// fails when a different agent holds the lock.
func (p *GitProject) UnlockCanvas(canvasID, agentID string) bool {
	p.mu.Lock()
	c := p.canvasLocked(canvasID)
	if c == nil {
		p.mu.Unlock()
		return false
	}
	if agentID != "" && c.LockingAgentID != "" && c.LockingAgentID != agentID {
		p.mu.Unlock()
		return false
	}
	c.LockState = LockNormal
	c.LockingAgentID = ""
	c.LockedAt = time.Time{}
	c.UpdatedAt = p.now()
	p.mu.Unlock()
	p.notify("canvas.lock.updated", canvasID)
	return true
}

func (p *GitProject) canvasLocked(id string) *Canvas {
	for _, c := range p.canvases {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CreateTask adds a prompting task to a canvas. Locked canvases
// reject new tasks.
func (p *GitProject) CreateTask(canvasID, prompt string) (string, bool) {
	c, ok := p.CanvasByID(canvasID)
	if !ok || c.LockState != LockNormal {
		return "", false
	}
	id := c.Ledger.CreatePromptingTask(prompt)
	p.notify("task.updated", canvasID)
	return id, true
}

// UpdateTaskPrompt edits a prompting task; locked canvases reject it.
func (p *GitProject) UpdateTaskPrompt(canvasID, taskID, prompt string) bool {
	c, ok := p.CanvasByID(canvasID)
	if !ok || c.LockState != LockNormal {
		return false
	}
	if !c.Ledger.UpdateTaskPrompt(taskID, prompt) {
		return false
	}
	p.notify("task.updated", canvasID)
	return true
}

// UpsertProcess records or updates a canvas's process state.
func (p *GitProject) UpsertProcess(canvasID string, state ProcessState) bool {
	p.mu.Lock()
	c := p.canvasLocked(canvasID)
	if c == nil {
		p.mu.Unlock()
		return false
	}
	replaced := false
	for i := range c.Processes {
		if c.Processes[i].ProcessID == state.ProcessID {
			c.Processes[i] = state
			replaced = true
			break
		}
	}
	if !replaced {
		c.Processes = append(c.Processes, state)
	}
	c.UpdatedAt = p.now()
	p.mu.Unlock()
	p.notify("process.updated", canvasID)
	return true
}

// UpsertAgent records a background agent's latest status.
func (p *GitProject) UpsertAgent(info AgentInfo) {
	p.mu.Lock()
	replaced := false
	for i := range p.agents {
		if p.agents[i].ID == info.ID {
			p.agents[i] = info
			replaced = true
			break
		}
	}
	if !replaced {
		p.agents = append(p.agents, info)
	}
	p.mu.Unlock()
	p.notify("agent.updated", info.CanvasID)
}

func (p *GitProject) Agents() []AgentInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]AgentInfo{}, p.agents...)
}
