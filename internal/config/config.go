// Package config loads deskbot configuration from a JSON file backend at
// $XDG_CONFIG_HOME/deskbot/config.json with DESKBOT_* environment variables
// overriding backend values.
package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port       int
	AdminToken string
}

type LLMConfig struct {
	APIKey  string
	Model   string
	Timeout string
}

type StorageConfig struct {
	DataDir    string
	ManualsDir string
}

type RetrievalConfig struct {
	KBLimit            int
	TicketLimit        int
	PageLimit          int
	CorrectionLimit    int
	MinScore           int
	CorrectionMinScore int
}

type SessionConfig struct {
	IdleTimeout string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 3001,
		},
		LLM: LLMConfig{
			Model:   "claude-3-haiku-20240307",
			Timeout: "60s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			KBLimit:            3,
			TicketLimit:        2,
			PageLimit:          2,
			CorrectionLimit:    2,
			MinScore:           15,
			CorrectionMinScore: 20,
		},
		Session: SessionConfig{
			IdleTimeout: "30m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend with environment
// variables (DESKBOT_*) overriding backend values. Secrets (the API key and
// admin token) are environment-only. A missing API key is not an error here;
// commands that need it check for it.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// LLMTimeout parses the configured model-call timeout, falling back to 60s.
func (c Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// SessionIdleTimeout parses the configured session idle timeout, falling
// back to 30m.
func (c Config) SessionIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}
