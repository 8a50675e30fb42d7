package global

import (
	"testing"
	"time"
)

func TestProjectsStore_RememberDedupsAndRefreshes(t *testing.T) {
	dir := t.TempDir()
	s := NewProjectsStore(dir)

	if err := s.Remember(ProjectRef{ProjectID: "p1", RootDir: "/tmp/repo1"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	list1, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list1) != 1 {
		t.Fatalf("expected 1 project, got %d", len(list1))
	}
	if list1[0].Name != "repo1" {
		t.Fatalf("expected name to fall back to the directory, got %q", list1[0].Name)
	}

	firstUpdated := list1[0].UpdatedAt
	time.Sleep(2 * time.Millisecond)

	if err := s.Remember(ProjectRef{ProjectID: "p1", RootDir: "/tmp/repo1", Name: "Demo"}); err != nil {
		t.Fatalf("Remember dedup failed: %v", err)
	}
	list2, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list2) != 1 {
		t.Fatalf("expected dedup to keep 1 project, got %d", len(list2))
	}
	if list2[0].Name != "Demo" {
		t.Fatalf("expected name to refresh, got %q", list2[0].Name)
	}
	if !list2[0].UpdatedAt.After(firstUpdated) {
		t.Fatalf("expected UpdatedAt to be refreshed")
	}
}

func TestProjectsStore_Forget(t *testing.T) {
	dir := t.TempDir()
	s := NewProjectsStore(dir)

	if err := s.Remember(ProjectRef{ProjectID: "p1", RootDir: "/tmp/repo1"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if err := s.Remember(ProjectRef{ProjectID: "p2", RootDir: "/tmp/repo2"}); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if err := s.Forget("p1"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].ProjectID != "p2" {
		t.Fatalf("expected only p2 to remain, got %#v", list)
	}
}
