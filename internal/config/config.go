package config

import (
	"os"
	"sync"
	"time"

	"gitcanvas/cli/internal/global"
)

type Config struct {
	LogLevel         string
	TmuxSocket       string
	AgentCommand     string
	DatabasePath     string
	LocalHost        string
	LocalPort        int
	TermRows         int
	TermCols         int
	MaxMergeAttempts int
	MergeTimeoutMins int
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

// MergeStored layers the durable TOML config under the environment:
// the store supplies the user's defaults, a set GITCANVAS_* variable
// overrides them for this process.
func MergeStored(cfg Config, stored global.GlobalConfig) Config {
	if os.Getenv("GITCANVAS_AGENT_COMMAND") == "" && stored.Agent.Command != "" {
		cfg.AgentCommand = stored.Agent.Command
	}
	if os.Getenv("GITCANVAS_MERGE_ATTEMPTS") == "" && stored.Agent.MaxMergeAttempts > 0 {
		cfg.MaxMergeAttempts = stored.Agent.MaxMergeAttempts
	}
	if os.Getenv("GITCANVAS_MERGE_TIMEOUT_MINS") == "" && stored.Agent.MergeTimeoutMins > 0 {
		cfg.MergeTimeoutMins = stored.Agent.MergeTimeoutMins
	}
	if os.Getenv("GITCANVAS_TERM_ROWS") == "" && stored.Terminal.Rows > 0 {
		cfg.TermRows = stored.Terminal.Rows
	}
	if os.Getenv("GITCANVAS_TERM_COLS") == "" && stored.Terminal.Cols > 0 {
		cfg.TermCols = stored.Terminal.Cols
	}
	if os.Getenv("GITCANVAS_TMUX_SOCKET") == "" && stored.Terminal.TmuxSocket != "" {
		cfg.TmuxSocket = stored.Terminal.TmuxSocket
	}
	if os.Getenv("GITCANVAS_LOCAL_PORT") == "" && stored.LocalPort > 0 {
		cfg.LocalPort = stored.LocalPort
	}
	return cfg
}

func loadFromEnv() Config {
	level := os.Getenv("GITCANVAS_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	socket := os.Getenv("GITCANVAS_TMUX_SOCKET")
	if socket == "" {
		socket = "gitcanvas"
	}

	command := os.Getenv("GITCANVAS_AGENT_COMMAND")
	if command == "" {
		command = "claude"
	}

	dbPath := os.Getenv("GITCANVAS_DB_PATH")

	localHost := os.Getenv("GITCANVAS_LOCAL_HOST")
	if localHost == "" {
		localHost = "127.0.0.1"
	}
	localPort := 4632
	if p := os.Getenv("GITCANVAS_LOCAL_PORT"); p != "" {
		// Strict parse, fall back to the default on malformed values.
		if n := atoiOrDefault(p, 4632); n > 0 {
			localPort = n
		}
	}

	rows := atoiOrDefault(os.Getenv("GITCANVAS_TERM_ROWS"), 24)
	cols := atoiOrDefault(os.Getenv("GITCANVAS_TERM_COLS"), 80)
	attempts := atoiOrDefault(os.Getenv("GITCANVAS_MERGE_ATTEMPTS"), 3)
	timeoutMins := atoiOrDefault(os.Getenv("GITCANVAS_MERGE_TIMEOUT_MINS"), 30)

	return Config{
		LogLevel:         level,
		TmuxSocket:       socket,
		AgentCommand:     command,
		DatabasePath:     dbPath,
		LocalHost:        localHost,
		LocalPort:        localPort,
		TermRows:         rows,
		TermCols:         cols,
		MaxMergeAttempts: attempts,
		MergeTimeoutMins: timeoutMins,
	}
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}
