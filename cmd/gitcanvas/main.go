package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gitcanvas/cli/internal/agentdriver"
	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/command"
	"gitcanvas/cli/internal/config"
	"gitcanvas/cli/internal/gitops"
	"gitcanvas/cli/internal/global"
	"gitcanvas/cli/internal/localapi"
	"gitcanvas/cli/internal/logging"
	"gitcanvas/cli/internal/mergeagent"
	"gitcanvas/cli/internal/osops"
	"gitcanvas/cli/internal/procregistry"
	"gitcanvas/cli/internal/store"
	"gitcanvas/cli/internal/taskledger"
	"gitcanvas/cli/internal/termtransport"
)

var version = "dev"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig:   config.LoadConfig,
		RunServe:     runServe,
		RunMigrateUp: runMigrateUp,
		RunCanvasNew: func(ctx context.Context, cfg config.Config, name string) error {
			return runCanvasNew(ctx, os.Stdout, cfg, name)
		},
		RunCanvasList: func(ctx context.Context, cfg config.Config) error {
			return runCanvasList(ctx, os.Stdout, cfg)
		},
		RunCanvasMerge: func(ctx context.Context, cfg config.Config, canvasID string) error {
			return runCanvasMerge(ctx, os.Stdout, cfg, canvasID)
		},
		RunTask: func(ctx context.Context, cfg config.Config, canvasID, prompt string) error {
			return runTaskOnce(ctx, os.Stdout, cfg, canvasID, prompt)
		},
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "gitcanvas", Module: "main"}).
			Error("gitcanvas failed", "err", err)
		os.Exit(1)
	}
}

// runtime bundles everything a command needs against one open project.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	project  *canvas.GitProject
	registry *procregistry.Registry
	git      *gitops.Git
	closeDB  func()
}

func openRuntime(cfg config.Config) (*runtime, error) {
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Component: "gitcanvas", Module: "main"})

	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return nil, err
	}
	stored, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return nil, err
	}
	cfg = config.MergeStored(cfg, stored)

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(configDir, "gitcanvas.db")
	}
	gdb, err := store.OpenSQLiteWithMigrations(dbPath)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	st, err := store.NewStore(gdb)
	if err != nil {
		closeDB()
		return nil, err
	}

	rootDir, err := os.Getwd()
	if err != nil {
		closeDB()
		return nil, err
	}

	git := gitops.New(&termtransport.RealExec{})
	collab := canvas.Collaborators{
		CopyDirectory: osops.CopyDirectory,
		CreateBranch:  git.CreateBranch,
		PathExists:    osops.PathExists,
	}

	project, err := resumeOrCreateProject(st, rootDir, collab)
	if err != nil {
		closeDB()
		return nil, err
	}
	if _, err := project.EnsureDefaultCanvas(); err != nil {
		closeDB()
		return nil, err
	}

	registry := procregistry.New()
	if recovered := project.RecoverProcesses(registry); len(recovered) > 0 {
		logger.Info("recovered orphaned processes", "count", len(recovered))
	}
	if err := st.SaveProject(project); err != nil {
		logger.Warn("initial snapshot failed", "error", err)
	}

	if err := global.NewProjectsStore(configDir).Remember(global.ProjectRef{
		ProjectID: project.ID,
		RootDir:   rootDir,
		Name:      project.Name,
	}); err != nil {
		logger.Warn("projects index update failed", "error", err)
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		project:  project,
		registry: registry,
		git:      git,
		closeDB:  closeDB,
	}, nil
}

// resumeOrCreateProject reopens the stored project for this root
// directory, or starts a fresh aggregate when none exists.
func resumeOrCreateProject(st *store.Store, rootDir string, collab canvas.Collaborators) (*canvas.GitProject, error) {
	rows, err := st.ListProjects()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.RootDir == rootDir {
			return st.LoadProject(row.ProjectID, collab)
		}
	}
	return canvas.NewProject(filepath.Base(rootDir), rootDir, collab), nil
}

func (rt *runtime) newDriver(events agentdriver.Events) (*agentdriver.Driver, error) {
	transport := termtransport.NewTmuxTransport(termtransport.TmuxOptions{
		Exec:   &termtransport.RealExec{},
		Socket: rt.cfg.TmuxSocket,
		Logger: rt.logger,
	})
	return agentdriver.New(agentdriver.Options{
		Transport: transport,
		Registry:  rt.registry,
		Events:    events,
		Logger:    rt.logger,
		Command:   rt.cfg.AgentCommand,
		Rows:      rt.cfg.TermRows,
		Cols:      rt.cfg.TermCols,
	})
}

func (rt *runtime) newOrchestrator() (*mergeagent.Orchestrator, error) {
	runner := &mergeagent.DriverRunner{
		Options: agentdriver.Options{
			Transport: termtransport.NewTmuxTransport(termtransport.TmuxOptions{
				Exec:   &termtransport.RealExec{},
				Socket: rt.cfg.TmuxSocket,
				Logger: rt.logger,
			}),
			Registry: rt.registry,
			Logger:   rt.logger,
			Command:  rt.cfg.AgentCommand,
			Rows:     rt.cfg.TermRows,
			Cols:     rt.cfg.TermCols,
		},
	}
	return mergeagent.New(mergeagent.Options{
		Git:            rt.git,
		Runner:         runner,
		PathExists:     osops.PathExists,
		Logger:         rt.logger,
		MaxAttempts:    rt.cfg.MaxMergeAttempts,
		AttemptTimeout: time.Duration(rt.cfg.MergeTimeoutMins) * time.Minute,
	})
}

func runServe(ctx context.Context, cfg config.Config) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.closeDB()

	orchestrator, err := rt.newOrchestrator()
	if err != nil {
		return err
	}

	var srv *localapi.Server
	events := &localapi.TaskEvents{
		Project:  rt.project,
		Git:      rt.git,
		Snapshot: rt.store,
		Logger:   rt.logger,
		Publish: func(topic, canvasID string, payload map[string]any) {
			srv.PublishEvent(topic, canvasID, payload)
		},
	}
	driver, err := rt.newDriver(events)
	if err != nil {
		return err
	}
	defer driver.Cleanup(true)

	srv = localapi.NewServer(localapi.Deps{
		Project:  rt.project,
		Driver:   driver,
		Merger:   &mergeRunner{orchestrator: orchestrator, project: rt.project},
		Reverter: rt.git,
		Snapshot: rt.store,
		Logger:   rt.logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.LocalHost, cfg.LocalPort)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("local api listening", "addr", addr, "version", version)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// mergeRunner adapts the orchestrator to the API's Merger port.
type mergeRunner struct {
	orchestrator *mergeagent.Orchestrator
	project      *canvas.GitProject
}

func (m *mergeRunner) MergeCanvasToRoot(ctx context.Context, project *canvas.GitProject, canvasID string) error {
	res, err := m.orchestrator.MergeCanvasToRoot(ctx, project, canvasID)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	return nil
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(configDir, "gitcanvas.db")
	}
	gdb, err := store.OpenSQLiteWithMigrations(dbPath)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

func runCanvasNew(_ context.Context, out io.Writer, cfg config.Config, name string) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.closeDB()

	c, err := rt.project.CreateCanvas(name)
	if err != nil {
		return err
	}
	if err := rt.store.SaveProject(rt.project); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", c.ID, c.Branch, c.WorkingDir)
	return nil
}

func runCanvasList(_ context.Context, out io.Writer, cfg config.Config) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.closeDB()

	for _, c := range rt.project.Canvases() {
		fmt.Fprintf(out, "%s\t%s\t%s\t%d tasks\n", c.ID, c.Name, c.LockState, len(c.Ledger.Tasks()))
	}
	return nil
}

func runCanvasMerge(ctx context.Context, out io.Writer, cfg config.Config, canvasID string) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.closeDB()

	orchestrator, err := rt.newOrchestrator()
	if err != nil {
		return err
	}
	res, err := orchestrator.MergeCanvasToRoot(ctx, rt.project, canvasID)
	if err != nil {
		return err
	}
	if err := rt.store.SaveProject(rt.project); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintf(out, "merged %s\n", canvasID)
	return nil
}

// runTaskOnce runs a single prompt to completion on one canvas and
// commits the result, mirroring what the serve runtime does per task.
func runTaskOnce(ctx context.Context, out io.Writer, cfg config.Config, canvasID, prompt string) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.closeDB()

	var target *canvas.Canvas
	if canvasID == "" {
		target = rt.project.CurrentCanvas()
	} else if c, ok := rt.project.CanvasByID(canvasID); ok {
		target = c
	}
	if target == nil {
		return errors.New("canvas not found")
	}

	taskID, ok := rt.project.CreateTask(target.ID, prompt)
	if !ok {
		return errors.New("canvas does not accept tasks while locked")
	}

	runner := &mergeagent.DriverRunner{
		Options: agentdriver.Options{
			Transport: termtransport.NewTmuxTransport(termtransport.TmuxOptions{
				Exec:   &termtransport.RealExec{},
				Socket: rt.cfg.TmuxSocket,
				Logger: rt.logger,
			}),
			Registry: rt.registry,
			Logger:   rt.logger,
			Command:  rt.cfg.AgentCommand,
			Rows:     rt.cfg.TermRows,
			Cols:     rt.cfg.TermCols,
		},
	}
	if !target.Ledger.StartTask(taskID, "proc-cli-"+taskID[:8]) {
		return errors.New("task could not start")
	}
	runErr := runner.RunTask(ctx, target.WorkingDir, prompt)

	hash := ""
	if runErr == nil {
		h, err := rt.git.Commit(target.WorkingDir, "Task: "+prompt)
		switch {
		case err == nil:
			hash = h
		case errors.Is(err, gitops.ErrNothingToCommit):
			hash = taskledger.NoChangesCommit
		default:
			return err
		}
	}
	target.Ledger.CompleteTask(taskID, hash)
	if err := rt.store.SaveProject(rt.project); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	fmt.Fprintf(out, "%s\t%s\n", taskID, hash)
	return nil
}
