package config

import (
	"testing"
	"time"

	"gitcanvas/cli/internal/global"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GITCANVAS_LOG_LEVEL", "")
	t.Setenv("GITCANVAS_TMUX_SOCKET", "")
	t.Setenv("GITCANVAS_AGENT_COMMAND", "")
	t.Setenv("GITCANVAS_LOCAL_HOST", "")
	t.Setenv("GITCANVAS_LOCAL_PORT", "")

	cfg := LoadConfig()
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected LogLevel: %s", cfg.LogLevel)
	}
	if cfg.TmuxSocket != "gitcanvas" {
		t.Fatalf("unexpected TmuxSocket: %s", cfg.TmuxSocket)
	}
	if cfg.AgentCommand != "claude" {
		t.Fatalf("unexpected AgentCommand: %s", cfg.AgentCommand)
	}
	if cfg.LocalHost != "127.0.0.1" {
		t.Fatalf("unexpected local host: %s", cfg.LocalHost)
	}
	if cfg.LocalPort != 4632 {
		t.Fatalf("unexpected local port: %d", cfg.LocalPort)
	}
	if cfg.TermRows != 24 || cfg.TermCols != 80 {
		t.Fatalf("unexpected terminal size: %dx%d", cfg.TermRows, cfg.TermCols)
	}
	if cfg.MaxMergeAttempts != 3 {
		t.Fatalf("unexpected merge attempts: %d", cfg.MaxMergeAttempts)
	}
	if cfg.MergeTimeoutMins != 30 {
		t.Fatalf("unexpected merge timeout: %d", cfg.MergeTimeoutMins)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GITCANVAS_AGENT_COMMAND", "claude-next")
	t.Setenv("GITCANVAS_LOCAL_PORT", "4700")
	t.Setenv("GITCANVAS_LOCAL_HOST", "0.0.0.0")
	t.Setenv("GITCANVAS_TERM_ROWS", "40")
	t.Setenv("GITCANVAS_TERM_COLS", "120")
	t.Setenv("GITCANVAS_MERGE_ATTEMPTS", "5")

	cfg := LoadConfig()
	if cfg.AgentCommand != "claude-next" {
		t.Fatalf("unexpected agent command: %s", cfg.AgentCommand)
	}
	if cfg.LocalPort != 4700 {
		t.Fatalf("unexpected local port: %d", cfg.LocalPort)
	}
	if cfg.LocalHost != "0.0.0.0" {
		t.Fatalf("unexpected local host: %s", cfg.LocalHost)
	}
	if cfg.TermRows != 40 || cfg.TermCols != 120 {
		t.Fatalf("unexpected terminal size: %dx%d", cfg.TermRows, cfg.TermCols)
	}
	if cfg.MaxMergeAttempts != 5 {
		t.Fatalf("unexpected merge attempts: %d", cfg.MaxMergeAttempts)
	}
}

func TestMergeStored_StoreFillsUnsetValues(t *testing.T) {
	t.Setenv("GITCANVAS_AGENT_COMMAND", "")
	t.Setenv("GITCANVAS_TMUX_SOCKET", "")
	t.Setenv("GITCANVAS_MERGE_ATTEMPTS", "")
	t.Setenv("GITCANVAS_MERGE_TIMEOUT_MINS", "")
	t.Setenv("GITCANVAS_TERM_ROWS", "")
	t.Setenv("GITCANVAS_TERM_COLS", "")
	t.Setenv("GITCANVAS_LOCAL_PORT", "")

	stored := global.GlobalConfig{
		LocalPort: 4700,
		Agent: global.AgentConfig{
			Command:          "codex",
			MaxMergeAttempts: 5,
			MergeTimeoutMins: 45,
		},
		Terminal: global.TerminalConfig{
			Rows:       50,
			Cols:       132,
			TmuxSocket: "canvas-sock",
		},
	}
	cfg := MergeStored(LoadConfig(), stored)
	if cfg.AgentCommand != "codex" {
		t.Fatalf("unexpected agent command: %s", cfg.AgentCommand)
	}
	if cfg.MaxMergeAttempts != 5 || cfg.MergeTimeoutMins != 45 {
		t.Fatalf("unexpected merge budget: %d/%d", cfg.MaxMergeAttempts, cfg.MergeTimeoutMins)
	}
	if cfg.TermRows != 50 || cfg.TermCols != 132 {
		t.Fatalf("unexpected terminal size: %dx%d", cfg.TermRows, cfg.TermCols)
	}
	if cfg.TmuxSocket != "canvas-sock" {
		t.Fatalf("unexpected socket: %s", cfg.TmuxSocket)
	}
	if cfg.LocalPort != 4700 {
		t.Fatalf("unexpected local port: %d", cfg.LocalPort)
	}
}

func TestMergeStored_EnvStillWins(t *testing.T) {
	t.Setenv("GITCANVAS_AGENT_COMMAND", "claude-next")
	t.Setenv("GITCANVAS_MERGE_ATTEMPTS", "2")
	t.Setenv("GITCANVAS_TERM_ROWS", "")

	stored := global.GlobalConfig{
		Agent:    global.AgentConfig{Command: "codex", MaxMergeAttempts: 5},
		Terminal: global.TerminalConfig{Rows: 50},
	}
	cfg := MergeStored(LoadConfig(), stored)
	if cfg.AgentCommand != "claude-next" {
		t.Fatalf("env override lost: %s", cfg.AgentCommand)
	}
	if cfg.MaxMergeAttempts != 2 {
		t.Fatalf("env override lost: %d", cfg.MaxMergeAttempts)
	}
	if cfg.TermRows != 50 {
		t.Fatalf("stored rows not applied: %d", cfg.TermRows)
	}
}

func TestLoadConfig_MalformedPortFallsBack(t *testing.T) {
	t.Setenv("GITCANVAS_LOCAL_PORT", "not-a-port")
	cfg := LoadConfig()
	if cfg.LocalPort != 4632 {
		t.Fatalf("unexpected local port: %d", cfg.LocalPort)
	}
}

func TestGetConfig_UsesCacheWithinTTL(t *testing.T) {
	resetConfigCacheForTest()
	t.Setenv("GITCANVAS_LOCAL_HOST", "127.0.0.1")
	_ = LoadConfig()

	t.Setenv("GITCANVAS_LOCAL_HOST", "0.0.0.0")
	got := GetConfig()
	if got == nil {
		t.Fatal("GetConfig should not return nil")
	}
	if got.LocalHost != "127.0.0.1" {
		t.Fatalf("expected cached host 127.0.0.1, got %s", got.LocalHost)
	}
}

func TestGetConfig_RefreshesAfterTTL(t *testing.T) {
	resetConfigCacheForTest()

	oldNow := nowFunc
	oldTTL := cacheTTL
	defer func() {
		nowFunc = oldNow
		cacheTTL = oldTTL
		resetConfigCacheForTest()
	}()

	base := time.Date(2026, time.February, 19, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return base }
	cacheTTL = 10 * time.Second

	t.Setenv("GITCANVAS_LOCAL_HOST", "127.0.0.1")
	_ = LoadConfig()

	base = base.Add(11 * time.Second)
	t.Setenv("GITCANVAS_LOCAL_HOST", "0.0.0.0")

	got := GetConfig()
	if got == nil {
		t.Fatal("GetConfig should not return nil")
	}
	if got.LocalHost != "0.0.0.0" {
		t.Fatalf("expected refreshed host 0.0.0.0, got %s", got.LocalHost)
	}
}

func resetConfigCacheForTest() {
	cacheMu.Lock()
	cachedCfg = Config{}
	cachedAt = time.Time{}
	cacheValid = false
	cacheMu.Unlock()
}
