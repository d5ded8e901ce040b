package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DESKBOT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.admin_token", typ: kString, env: "DESKBOT_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "llm.api_key", typ: kString, env: "DESKBOT_ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "DESKBOT_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.timeout", typ: kString, env: "DESKBOT_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DESKBOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.manuals_dir", typ: kString, env: "DESKBOT_STORAGE_MANUALS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.ManualsDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.ManualsDir },
	},
	{
		key: "retrieval.kb_limit", typ: kInt, env: "DESKBOT_RETRIEVAL_KB_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.KBLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.KBLimit },
	},
	{
		key: "retrieval.ticket_limit", typ: kInt, env: "DESKBOT_RETRIEVAL_TICKET_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TicketLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TicketLimit },
	},
	{
		key: "retrieval.page_limit", typ: kInt, env: "DESKBOT_RETRIEVAL_PAGE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.PageLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.PageLimit },
	},
	{
		key: "retrieval.correction_limit", typ: kInt, env: "DESKBOT_RETRIEVAL_CORRECTION_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.CorrectionLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.CorrectionLimit },
	},
	{
		key: "retrieval.min_score", typ: kInt, env: "DESKBOT_RETRIEVAL_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.MinScore = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.MinScore },
	},
	{
		key: "retrieval.correction_min_score", typ: kInt, env: "DESKBOT_RETRIEVAL_CORRECTION_MIN_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.CorrectionMinScore = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.CorrectionMinScore },
	},
	{
		key: "session.idle_timeout", typ: kString, env: "DESKBOT_SESSION_IDLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Session.IdleTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Session.IdleTimeout },
	},
	{
		key: "log.level", typ: kString, env: "DESKBOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
