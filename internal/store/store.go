// Package store persists projects and their canvases to SQLite. The
// in-memory GitProject aggregate stays the source of truth while the
// process runs; the store is a snapshot taken on mutation and read
// back on startup.
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitcanvas/cli/internal/canvas"
	"gitcanvas/cli/internal/taskledger"
)

type Store struct {
	db *gorm.DB
}

// NewStore wraps an already-open DB. The caller owns the connection.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db}, nil
}

// SaveProject writes the full project snapshot in one transaction.
// Rows for canvases, tasks, processes and agents that no longer exist
// in memory are removed.
func (s *Store) SaveProject(p *canvas.GitProject) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if p == nil {
		return errors.New("project is required")
	}
	now := time.Now().UTC().Unix()
	return s.db.Transaction(func(tx *gorm.DB) error {
		currentID := ""
		if c := p.CurrentCanvas(); c != nil {
			currentID = c.ID
		}
		row := Project{
			ProjectID:     p.ID,
			Name:          p.Name,
			RootDir:       p.RootDir,
			CurrentCanvas: currentID,
			UpdatedAt:     now,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}

		canvasIDs := []string{}
		for _, c := range p.Canvases() {
			canvasIDs = append(canvasIDs, c.ID)
			if err := saveCanvas(tx, p.ID, c); err != nil {
				return err
			}
		}
		if err := tx.Where("project_id = ? AND canvas_id NOT IN ?", p.ID, emptyGuard(canvasIDs)).
			Delete(&Canvas{}).Error; err != nil {
			return err
		}

		if err := tx.Where("canvas_id IN (SELECT canvas_id FROM canvases WHERE project_id = ?)", p.ID).
			Delete(&Agent{}).Error; err != nil {
			return err
		}
		for _, info := range p.Agents() {
			agentRow := Agent{
				AgentID:  info.ID,
				CanvasID: info.CanvasID,
				Kind:     info.Kind,
				Status:   info.Status,
				Message:  info.Message,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&agentRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func saveCanvas(tx *gorm.DB, projectID string, c *canvas.Canvas) error {
	row := Canvas{
		CanvasID:       c.ID,
		ProjectID:      projectID,
		Name:           c.Name,
		WorkingDir:     c.WorkingDir,
		Branch:         c.Branch,
		LockState:      string(c.LockState),
		LockingAgentID: c.LockingAgentID,
		CreatedAt:      c.CreatedAt.Unix(),
		UpdatedAt:      c.UpdatedAt.Unix(),
		LockedAt:       unixOrZero(c.LockedAt),
	}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return err
	}

	if err := tx.Where("canvas_id = ?", c.ID).Delete(&Task{}).Error; err != nil {
		return err
	}
	for i, task := range c.Ledger.Tasks() {
		taskRow := Task{
			TaskID:      task.ID,
			CanvasID:    c.ID,
			Position:    i,
			Prompt:      task.Prompt,
			Status:      string(task.Status),
			ProcessID:   task.ProcessID,
			CommitHash:  task.CommitHash,
			IsReverted:  task.IsReverted,
			CreatedAt:   unixOrZero(task.CreatedAt),
			StartedAt:   unixOrZero(task.StartedAt),
			CompletedAt: unixOrZero(task.CompletedAt),
		}
		if err := tx.Create(&taskRow).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("canvas_id = ?", c.ID).Delete(&Process{}).Error; err != nil {
		return err
	}
	for _, proc := range c.Processes {
		procRow := Process{
			ProcessID:  proc.ProcessID,
			CanvasID:   c.ID,
			TerminalID: proc.TerminalID,
			Kind:       proc.Kind,
			Status:     string(proc.Status),
			ElementID:  proc.ElementID,
			Prompt:     proc.Prompt,
			StartedAt:  unixOrZero(proc.StartedAt),
		}
		if err := tx.Create(&procRow).Error; err != nil {
			return err
		}
	}
	return nil
}

// LoadProject rebuilds the in-memory aggregate from rows. The caller
// supplies the collaborators the stored form cannot carry.
func (s *Store) LoadProject(projectID string, collab canvas.Collaborators) (*canvas.GitProject, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var row Project
	if err := s.db.Where("project_id = ?", projectID).First(&row).Error; err != nil {
		return nil, err
	}

	p := canvas.NewProject(row.Name, row.RootDir, collab)
	p.ID = row.ProjectID

	var canvasRows []Canvas
	if err := s.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&canvasRows).Error; err != nil {
		return nil, err
	}
	for _, cr := range canvasRows {
		c, err := s.loadCanvas(cr)
		if err != nil {
			return nil, err
		}
		p.AttachCanvas(c)
	}
	if row.CurrentCanvas != "" {
		p.SetCurrentCanvas(row.CurrentCanvas)
	}

	var agentRows []Agent
	if err := s.db.Where("canvas_id IN ?", emptyGuard(canvasIDsOf(canvasRows))).Find(&agentRows).Error; err != nil {
		return nil, err
	}
	for _, ar := range agentRows {
		p.UpsertAgent(canvas.AgentInfo{
			ID:       ar.AgentID,
			Kind:     ar.Kind,
			CanvasID: ar.CanvasID,
			Status:   ar.Status,
			Message:  ar.Message,
		})
	}
	return p, nil
}

func (s *Store) loadCanvas(cr Canvas) (*canvas.Canvas, error) {
	var taskRows []Task
	if err := s.db.Where("canvas_id = ?", cr.CanvasID).Order("position ASC").Find(&taskRows).Error; err != nil {
		return nil, err
	}
	tasks := make([]taskledger.Task, 0, len(taskRows))
	for _, tr := range taskRows {
		tasks = append(tasks, taskledger.Task{
			ID:          tr.TaskID,
			Status:      taskledger.Status(tr.Status),
			Prompt:      tr.Prompt,
			ProcessID:   tr.ProcessID,
			CommitHash:  tr.CommitHash,
			IsReverted:  tr.IsReverted,
			CreatedAt:   timeOrZero(tr.CreatedAt),
			StartedAt:   timeOrZero(tr.StartedAt),
			CompletedAt: timeOrZero(tr.CompletedAt),
		})
	}

	var procRows []Process
	if err := s.db.Where("canvas_id = ?", cr.CanvasID).Find(&procRows).Error; err != nil {
		return nil, err
	}
	procs := make([]canvas.ProcessState, 0, len(procRows))
	for _, pr := range procRows {
		procs = append(procs, canvas.ProcessState{
			ProcessID:  pr.ProcessID,
			TerminalID: pr.TerminalID,
			Kind:       pr.Kind,
			Status:     canvas.ProcessStatus(pr.Status),
			ElementID:  pr.ElementID,
			Prompt:     pr.Prompt,
			StartedAt:  timeOrZero(pr.StartedAt),
		})
	}

	return &canvas.Canvas{
		ID:             cr.CanvasID,
		Name:           cr.Name,
		WorkingDir:     cr.WorkingDir,
		Branch:         cr.Branch,
		Ledger:         taskledger.NewLedgerFromTasks(tasks),
		Processes:      procs,
		LockState:      canvas.LockState(cr.LockState),
		LockingAgentID: cr.LockingAgentID,
		CreatedAt:      timeOrZero(cr.CreatedAt),
		UpdatedAt:      timeOrZero(cr.UpdatedAt),
		LockedAt:       timeOrZero(cr.LockedAt),
	}, nil
}

// ListProjects returns stored project rows, most recently saved first.
func (s *Store) ListProjects() ([]Project, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var rows []Project
	if err := s.db.Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteProject removes a project and all rows hanging off it.
func (s *Store) DeleteProject(projectID string) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var canvasRows []Canvas
		if err := tx.Where("project_id = ?", projectID).Find(&canvasRows).Error; err != nil {
			return err
		}
		ids := emptyGuard(canvasIDsOf(canvasRows))
		for _, model := range []any{&Task{}, &Process{}, &Agent{}} {
			if err := tx.Where("canvas_id IN ?", ids).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&Canvas{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", projectID).Delete(&Project{}).Error
	})
}

func canvasIDsOf(rows []Canvas) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CanvasID)
	}
	return ids
}

// emptyGuard keeps "NOT IN ()" from matching nothing at the SQL level.
func emptyGuard(ids []string) []string {
	if len(ids) == 0 {
		return []string{""}
	}
	return ids
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
