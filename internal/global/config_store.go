package global

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"
)

// AgentConfig selects and bounds the driven coding CLI.
type AgentConfig struct {
	Command            string `json:"command" toml:"command"`
	MaxMergeAttempts   int    `json:"max_merge_attempts" toml:"max_merge_attempts"`
	MergeTimeoutMins   int    `json:"merge_timeout_minutes" toml:"merge_timeout_minutes"`
	SettleDelayMillis  int    `json:"settle_delay_ms" toml:"settle_delay_ms"`
	CompletionDelaySec int    `json:"completion_delay_seconds" toml:"completion_delay_seconds"`
}

type TerminalConfig struct {
	Rows       int    `json:"rows" toml:"rows"`
	Cols       int    `json:"cols" toml:"cols"`
	TmuxSocket string `json:"tmux_socket" toml:"tmux_socket"`
}

type GlobalConfig struct {
	LocalPort int            `json:"local_port" toml:"local_port"`
	Agent     AgentConfig    `json:"agent" toml:"agent"`
	Terminal  TerminalConfig `json:"terminal" toml:"terminal"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(GlobalConfig{})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	if cfg.LocalPort <= 0 {
		cfg.LocalPort = 4632
	}
	cfg.Agent.Command = strings.TrimSpace(cfg.Agent.Command)
	if cfg.Agent.Command == "" {
		cfg.Agent.Command = "claude"
	}
	if cfg.Agent.MaxMergeAttempts <= 0 {
		cfg.Agent.MaxMergeAttempts = 3
	}
	if cfg.Agent.MergeTimeoutMins <= 0 {
		cfg.Agent.MergeTimeoutMins = 30
	}
	if cfg.Agent.SettleDelayMillis < 0 {
		cfg.Agent.SettleDelayMillis = 0
	}
	if cfg.Agent.CompletionDelaySec < 0 {
		cfg.Agent.CompletionDelaySec = 0
	}
	if cfg.Terminal.Rows < 24 {
		cfg.Terminal.Rows = 24
	}
	if cfg.Terminal.Cols < 80 {
		cfg.Terminal.Cols = 80
	}
	cfg.Terminal.TmuxSocket = strings.TrimSpace(cfg.Terminal.TmuxSocket)
	if cfg.Terminal.TmuxSocket == "" {
		cfg.Terminal.TmuxSocket = "gitcanvas"
	}
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeJSONAtomically(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
