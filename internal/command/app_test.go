package command

import (
	"context"
	"testing"

	"gitcanvas/cli/internal/config"
)

func TestBuildApp_DefaultCommandIsServe(t *testing.T) {
	serveCalled := 0
	migrateCalled := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunServe: func(context.Context, config.Config) error {
			serveCalled++
			return nil
		},
		RunMigrateUp: func(context.Context, config.Config) error {
			migrateCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"gitcanvas"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if serveCalled != 1 || migrateCalled != 0 {
		t.Fatalf("unexpected call count serve=%d migrate=%d", serveCalled, migrateCalled)
	}
}

func TestBuildApp_MigrateUpCommand(t *testing.T) {
	migrateCalled := 0
	app := BuildApp(Deps{
		LoadConfig:   func() config.Config { return config.Config{} },
		RunServe:     func(context.Context, config.Config) error { return nil },
		RunMigrateUp: func(context.Context, config.Config) error {
			migrateCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"gitcanvas", "migrate", "up"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if migrateCalled != 1 {
		t.Fatalf("expected migrate command called once, got %d", migrateCalled)
	}
}

func TestBuildApp_CanvasCommands(t *testing.T) {
	created := ""
	merged := ""
	listed := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunCanvasNew: func(_ context.Context, _ config.Config, name string) error {
			created = name
			return nil
		},
		RunCanvasList: func(context.Context, config.Config) error {
			listed++
			return nil
		},
		RunCanvasMerge: func(_ context.Context, _ config.Config, canvasID string) error {
			merged = canvasID
			return nil
		},
	})

	if err := app.RunContext(context.Background(), []string{"gitcanvas", "canvas", "create", "--name", "feature"}); err != nil {
		t.Fatalf("canvas create failed: %v", err)
	}
	if created != "feature" {
		t.Fatalf("unexpected created name %q", created)
	}

	if err := app.RunContext(context.Background(), []string{"gitcanvas", "canvas", "list"}); err != nil {
		t.Fatalf("canvas list failed: %v", err)
	}
	if listed != 1 {
		t.Fatalf("unexpected list count %d", listed)
	}

	if err := app.RunContext(context.Background(), []string{"gitcanvas", "canvas", "merge", "abc123"}); err != nil {
		t.Fatalf("canvas merge failed: %v", err)
	}
	if merged != "abc123" {
		t.Fatalf("unexpected merged id %q", merged)
	}

	if err := app.RunContext(context.Background(), []string{"gitcanvas", "canvas", "merge"}); err == nil {
		t.Fatalf("merge without id must fail")
	}
}

func TestBuildApp_TaskRunCommand(t *testing.T) {
	gotCanvas := ""
	gotPrompt := ""
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunTask: func(_ context.Context, _ config.Config, canvasID, prompt string) error {
			gotCanvas = canvasID
			gotPrompt = prompt
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"gitcanvas", "task", "run", "--canvas", "c1", "fix the build"}); err != nil {
		t.Fatalf("task run failed: %v", err)
	}
	if gotCanvas != "c1" || gotPrompt != "fix the build" {
		t.Fatalf("unexpected args canvas=%q prompt=%q", gotCanvas, gotPrompt)
	}
	if err := app.RunContext(context.Background(), []string{"gitcanvas", "task", "run"}); err == nil {
		t.Fatalf("task run without prompt must fail")
	}
}
