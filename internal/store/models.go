package store

type Project struct {
	ProjectID     string `gorm:"column:project_id;primaryKey"`
	Name          string `gorm:"column:name;not null;default:''"`
	RootDir       string `gorm:"column:root_dir;not null;default:''"`
	CurrentCanvas string `gorm:"column:current_canvas;not null;default:''"`
	UpdatedAt     int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Project) TableName() string { return "projects" }

type Canvas struct {
	CanvasID       string `gorm:"column:canvas_id;primaryKey"`
	ProjectID      string `gorm:"column:project_id;not null;index"`
	Name           string `gorm:"column:name;not null;default:''"`
	WorkingDir     string `gorm:"column:working_dir;not null;default:''"`
	Branch         string `gorm:"column:branch;not null;default:''"`
	LockState      string `gorm:"column:lock_state;not null;default:'normal'"`
	LockingAgentID string `gorm:"column:locking_agent_id;not null;default:''"`
	CreatedAt      int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt      int64  `gorm:"column:updated_at;not null;default:0"`
	LockedAt       int64  `gorm:"column:locked_at;not null;default:0"`
}

func (Canvas) TableName() string { return "canvases" }

type Task struct {
	TaskID      string `gorm:"column:task_id;primaryKey"`
	CanvasID    string `gorm:"column:canvas_id;not null;index"`
	Position    int    `gorm:"column:position;not null;default:0"`
	Prompt      string `gorm:"column:prompt;not null;default:''"`
	Status      string `gorm:"column:status;not null;default:'prompting'"`
	ProcessID   string `gorm:"column:process_id;not null;default:''"`
	CommitHash  string `gorm:"column:commit_hash;not null;default:''"`
	IsReverted  bool   `gorm:"column:is_reverted;not null;default:false"`
	CreatedAt   int64  `gorm:"column:created_at;not null;default:0"`
	StartedAt   int64  `gorm:"column:started_at;not null;default:0"`
	CompletedAt int64  `gorm:"column:completed_at;not null;default:0"`
}

func (Task) TableName() string { return "tasks" }

type Process struct {
	ProcessID  string `gorm:"column:process_id;primaryKey"`
	CanvasID   string `gorm:"column:canvas_id;not null;index"`
	TerminalID string `gorm:"column:terminal_id;not null;default:''"`
	Kind       string `gorm:"column:kind;not null;default:''"`
	Status     string `gorm:"column:status;not null;default:''"`
	ElementID  string `gorm:"column:element_id;not null;default:''"`
	Prompt     string `gorm:"column:prompt;not null;default:''"`
	StartedAt  int64  `gorm:"column:started_at;not null;default:0"`
}

func (Process) TableName() string { return "processes" }

type Agent struct {
	AgentID  string `gorm:"column:agent_id;primaryKey"`
	CanvasID string `gorm:"column:canvas_id;not null;default:''"`
	Kind     string `gorm:"column:kind;not null;default:''"`
	Status   string `gorm:"column:status;not null;default:''"`
	Message  string `gorm:"column:message;not null;default:''"`
}

func (Agent) TableName() string { return "agents" }
