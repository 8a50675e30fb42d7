// Package procregistry tracks live automation-driver instances by
// process id. Persisted process records are only a claim that work was
// running; this registry is the fact. It is constructed explicitly and
// injected, never used as an ambient global, so tests can isolate one
// registry per case.
package procregistry

import (
	"strings"
	"sync"
)

// Instance is any live driver object registered under a process id.
type Instance interface{}

// Liveness is implemented by instances that can report whether they
// are still doing work. Instances without it are assumed running while
// registered.
type Liveness interface {
	IsRunning() bool
}

type Registry struct {
	mu        sync.Mutex
	instances map[string]Instance
	terminals map[string]string
}

func New() *Registry {
	return &Registry{
		instances: map[string]Instance{},
		terminals: map[string]string{},
	}
}

func (r *Registry) Register(processID string, instance Instance) bool {
	processID = strings.TrimSpace(processID)
	if r == nil || processID == "" || instance == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[processID] = instance
	return true
}

func (r *Registry) Get(processID string) (Instance, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[strings.TrimSpace(processID)]
	return instance, ok
}

func (r *Registry) Unregister(processID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, strings.TrimSpace(processID))
}

// IsRunning reports liveness for a registered process. It delegates to
// the instance's own predicate when one is exposed.
func (r *Registry) IsRunning(processID string) bool {
	instance, ok := r.Get(processID)
	if !ok {
		return false
	}
	if live, ok := instance.(Liveness); ok {
		return live.IsRunning()
	}
	return true
}

// AssociateTerminal remembers which terminal a UI element was attached
// to, so a rebuilt view can reattach instead of opening a new one.
func (r *Registry) AssociateTerminal(elementID, terminalID string) {
	elementID = strings.TrimSpace(elementID)
	terminalID = strings.TrimSpace(terminalID)
	if r == nil || elementID == "" || terminalID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminals[elementID] = terminalID
}

func (r *Registry) LookupTerminal(elementID string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	terminalID, ok := r.terminals[strings.TrimSpace(elementID)]
	return terminalID, ok
}

func (r *Registry) DisassociateTerminal(elementID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.terminals, strings.TrimSpace(elementID))
}

// Sweep unregisters every entry whose instance reports not running.
// It returns the removed process ids.
func (r *Registry) Sweep() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := []string{}
	for processID, instance := range r.instances {
		if live, ok := instance.(Liveness); ok && !live.IsRunning() {
			delete(r.instances, processID)
			removed = append(removed, processID)
		}
	}
	return removed
}

// Len reports how many instances are currently registered.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}
