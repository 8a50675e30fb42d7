package localapi

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/gitops"
	"gitcanvas/cli/internal/taskledger"
)

type fakeCommitter struct {
	hash string
	err  error
	dirs []string
}

func (f *fakeCommitter) Commit(dir, message string) (string, error) {
	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return "", f.err
	}
	return f.hash, nil
}

func eventsFixture(t *testing.T, git GitCommitter) (*TaskEvents, *canvas.Canvas, string) {
	t.Helper()
	p := canvas.NewProject("demo", "/repo/demo", canvas.Collaborators{
		CopyDirectory: func(src, dst string) error { return nil },
		CreateBranch:  func(dir, name string) error { return nil },
	})
	c, err := p.CreateCanvas("work")
	if err != nil {
		t.Fatalf("CreateCanvas failed: %v", err)
	}
	taskID, _ := p.CreateTask(c.ID, "wire the API")
	if !c.Ledger.StartTask(taskID, "proc-1") {
		t.Fatalf("StartTask failed")
	}

	ev := &TaskEvents{
		Project: p,
		Git:     git,
		Publish: func(topic, canvasID string, payload map[string]any) {},
	}
	return ev, c, taskID
}

func TestTaskEvents_CompletionCommitsAndCompletes(t *testing.T) {
	git := &fakeCommitter{hash: "abc1234"}
	ev, c, taskID := eventsFixture(t, git)

	ev.TaskCompleted("proc-1")

	task, _ := c.Ledger.Task(taskID)
	if task.Status != taskledger.StatusCompleted || task.CommitHash != "abc1234" {
		t.Fatalf("task not sealed: %+v", task)
	}
	if len(git.dirs) != 1 || git.dirs[0] != c.WorkingDir {
		t.Fatalf("commit ran in wrong dir: %v", git.dirs)
	}
	if len(c.Processes) != 1 || c.Processes[0].Status != canvas.ProcessFinished {
		t.Fatalf("process not finished: %+v", c.Processes)
	}
}

func TestTaskEvents_NothingToCommitUsesMarker(t *testing.T) {
	git := &fakeCommitter{err: gitops.ErrNothingToCommit}
	ev, c, taskID := eventsFixture(t, git)

	ev.TaskCompleted("proc-1")

	task, _ := c.Ledger.Task(taskID)
	if task.CommitHash != taskledger.NoChangesCommit {
		t.Fatalf("expected no-changes marker, got %q", task.CommitHash)
	}
	if task.Status != taskledger.StatusCompleted {
		t.Fatalf("task status = %s", task.Status)
	}
}

func TestTaskEvents_ErrorCompletesEmpty(t *testing.T) {
	git := &fakeCommitter{hash: "abc1234"}
	ev, c, taskID := eventsFixture(t, git)

	ev.TaskError("proc-1", errors.New("terminal disconnected"))

	task, _ := c.Ledger.Task(taskID)
	if task.Status != taskledger.StatusCompleted || task.CommitHash != "" {
		t.Fatalf("errored task not completed empty: %+v", task)
	}
	if len(c.Processes) != 1 || c.Processes[0].Status != canvas.ProcessError {
		t.Fatalf("process not marked errored: %+v", c.Processes)
	}
	if len(git.dirs) != 0 {
		t.Fatalf("error path must not commit: %v", git.dirs)
	}
}

func TestTaskEvents_UnknownProcessIgnored(t *testing.T) {
	git := &fakeCommitter{hash: "abc1234"}
	ev, c, taskID := eventsFixture(t, git)

	ev.TaskCompleted("proc-unknown")

	task, _ := c.Ledger.Task(taskID)
	if task.Status != taskledger.StatusInProgress {
		t.Fatalf("unrelated completion mutated the task: %+v", task)
	}
	if len(c.Processes) != 0 {
		t.Fatalf("unexpected process rows: %+v", c.Processes)
	}
}

func TestTruncatePrompt_KeepsRunesWhole(t *testing.T) {
	short := "fix the login flow"
	if got := truncatePrompt(short); got != short {
		t.Fatalf("short prompt mutated: %q", got)
	}

	long := strings.Repeat("a", 71) + "é and more"
	got := truncatePrompt(long)
	if len(got) > 72 {
		t.Fatalf("truncated prompt too long: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if got != strings.Repeat("a", 71) {
		t.Fatalf("unexpected cut point: %q", got)
	}
}
