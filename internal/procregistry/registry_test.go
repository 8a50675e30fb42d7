package procregistry

import (
	"sort"
	"testing"
)

type fakeInstance struct {
	running bool
}

func (f *fakeInstance) IsRunning() bool { return f.running }

type opaqueInstance struct{}

func TestRegistry_RegisterGetUnregister(t *testing.T) {
	r := New()
	inst := &fakeInstance{running: true}
	if !r.Register("p1", inst) {
		t.Fatalf("Register failed")
	}
	got, ok := r.Get("p1")
	if !ok || got != Instance(inst) {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	r.Unregister("p1")
	if _, ok := r.Get("p1"); ok {
		t.Fatalf("instance still present after Unregister")
	}
}

func TestRegistry_RejectsEmptyAndNil(t *testing.T) {
	r := New()
	if r.Register("  ", &fakeInstance{}) {
		t.Fatalf("blank process id should be rejected")
	}
	if r.Register("p1", nil) {
		t.Fatalf("nil instance should be rejected")
	}
	if r.Len() != 0 {
		t.Fatalf("registry should be empty, has %d", r.Len())
	}
}

func TestRegistry_IsRunningDelegatesToLiveness(t *testing.T) {
	r := New()
	r.Register("live", &fakeInstance{running: true})
	r.Register("dead", &fakeInstance{running: false})
	r.Register("opaque", opaqueInstance{})

	if !r.IsRunning("live") {
		t.Fatalf("live instance reported not running")
	}
	if r.IsRunning("dead") {
		t.Fatalf("dead instance reported running")
	}
	if !r.IsRunning("opaque") {
		t.Fatalf("instance without liveness should count as running while registered")
	}
	if r.IsRunning("missing") {
		t.Fatalf("unregistered process reported running")
	}
}

func TestRegistry_SweepRemovesDeadOnly(t *testing.T) {
	r := New()
	r.Register("a", &fakeInstance{running: false})
	r.Register("b", &fakeInstance{running: true})
	r.Register("c", &fakeInstance{running: false})
	r.Register("d", opaqueInstance{})

	removed := r.Sweep()
	sort.Strings(removed)
	if len(removed) != 2 || removed[0] != "a" || removed[1] != "c" {
		t.Fatalf("unexpected sweep result: %v", removed)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 survivors, got %d", r.Len())
	}
}

func TestRegistry_TerminalAssociation(t *testing.T) {
	r := New()
	r.AssociateTerminal("elem-1", "term-9")
	terminalID, ok := r.LookupTerminal("elem-1")
	if !ok || terminalID != "term-9" {
		t.Fatalf("lookup returned %q, %v", terminalID, ok)
	}
	r.DisassociateTerminal("elem-1")
	if _, ok := r.LookupTerminal("elem-1"); ok {
		t.Fatalf("association survived disassociate")
	}
	if _, ok := r.LookupTerminal("never"); ok {
		t.Fatalf("unknown element should not resolve")
	}
}
