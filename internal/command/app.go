package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v2"

	"gitcanvas/cli/internal/config"
)

// Deps carry injected runners so the app shape can be tested without
// booting the runtime.
type Deps struct {
	LoadConfig     func() config.Config
	RunServe       func(context.Context, config.Config) error
	RunMigrateUp   func(context.Context, config.Config) error
	RunCanvasList  func(context.Context, config.Config) error
	RunCanvasNew   func(ctx context.Context, cfg config.Config, name string) error
	RunCanvasMerge func(ctx context.Context, cfg config.Config, canvasID string) error
	RunTask        func(ctx context.Context, cfg config.Config, canvasID, prompt string) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "gitcanvas",
		Usage: "drive coding-agent tasks across isolated git working trees",
		Action: func(ctx *cli.Context) error {
			return runServe(ctx.Context, deps, loadConfig(deps))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the local API runtime",
				Action: func(ctx *cli.Context) error {
					return runServe(ctx.Context, deps, loadConfig(deps))
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							if deps.RunMigrateUp == nil {
								return errors.New("migrate up runner is not configured")
							}
							return deps.RunMigrateUp(ctx.Context, loadConfig(deps))
						},
					},
				},
			},
			{
				Name:  "canvas",
				Usage: "manage canvases",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a canvas from the project root",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "canvas display name"},
						},
						Action: func(ctx *cli.Context) error {
							if deps.RunCanvasNew == nil {
								return errors.New("canvas create runner is not configured")
							}
							return deps.RunCanvasNew(ctx.Context, loadConfig(deps), ctx.String("name"))
						},
					},
					{
						Name:  "list",
						Usage: "list canvases and their lock state",
						Action: func(ctx *cli.Context) error {
							if deps.RunCanvasList == nil {
								return errors.New("canvas list runner is not configured")
							}
							return deps.RunCanvasList(ctx.Context, loadConfig(deps))
						},
					},
					{
						Name:      "merge",
						Usage:     "merge a canvas back into the project root",
						ArgsUsage: "<canvas-id>",
						Action: func(ctx *cli.Context) error {
							if deps.RunCanvasMerge == nil {
								return errors.New("canvas merge runner is not configured")
							}
							canvasID := ctx.Args().First()
							if canvasID == "" {
								return errors.New("canvas id is required")
							}
							return deps.RunCanvasMerge(ctx.Context, loadConfig(deps), canvasID)
						},
					},
				},
			},
			{
				Name:  "task",
				Usage: "run agent tasks",
				Subcommands: []*cli.Command{
					{
						Name:      "run",
						Usage:     "run one prompt on a canvas and wait for completion",
						ArgsUsage: "<prompt>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "canvas", Usage: "canvas id (defaults to the current canvas)"},
						},
						Action: func(ctx *cli.Context) error {
							if deps.RunTask == nil {
								return errors.New("task runner is not configured")
							}
							prompt := ctx.Args().First()
							if prompt == "" {
								return errors.New("prompt is required")
							}
							return deps.RunTask(ctx.Context, loadConfig(deps), ctx.String("canvas"), prompt)
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func runServe(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg)
}
