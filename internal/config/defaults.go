package config

import (
	"strings"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultLLMMode           = "fake"
	defaultLLMTimeoutSeconds = 30
	defaultLLMConcurrency    = 4
	defaultLLMMaxTokens      = 1024
	defaultBreakerCooldown   = 60
	defaultMaxCandidates     = 2
	defaultPrimaryTimeframe  = "1d"
	defaultMaxRiskUSD        = 50
	defaultPacketsDir        = "data/packets"
	defaultArtifactsDir      = "data/runs"
	defaultStorePath         = "data/informer.db"
	defaultLockPath          = "data/trade_lock.db"
	defaultProfilesPath      = "configs/profiles.yaml"
	defaultPromptDir         = "prompts"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Packets.applyDefaults(keys)
	c.Artifacts.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Prompt.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("llm.mode", &l.Mode, defaultLLMMode),
		intFieldDefault("llm.timeout_seconds", &l.TimeoutSeconds, defaultLLMTimeoutSeconds),
		intFieldDefault("llm.max_concurrency", &l.MaxConcurrency, defaultLLMConcurrency),
		intFieldDefault("llm.max_tokens", &l.MaxTokens, defaultLLMMaxTokens),
		boolFieldDefault("llm.critic_fallback", &l.CriticFallback, false),
		intFieldDefault("llm.breaker_cooldown_seconds", &l.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	l.Mode = strings.ToLower(strings.TrimSpace(l.Mode))
	if l.Routing == nil {
		l.Routing = map[string]string{}
	}
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("pipeline.max_candidates", &p.MaxCandidates, defaultMaxCandidates),
		stringFieldDefault("pipeline.primary_timeframe", &p.PrimaryTimeframe, defaultPrimaryTimeframe),
	)
	p.Symbols = normalizeSymbols(p.Symbols)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.max_risk_usd",
			need:  func() bool { return r.MaxRiskUSD <= 0 },
			apply: func() { r.MaxRiskUSD = defaultMaxRiskUSD },
		},
		stringFieldDefault("risk.profiles_path", &r.ProfilesPath, defaultProfilesPath),
		stringFieldDefault("risk.lock_path", &r.LockPath, defaultLockPath),
		boolFieldDefault("risk.one_trade_per_day", &r.OneTradePerDay, true),
	)
	r.Profile = strings.TrimSpace(r.Profile)
}

func (p *PacketsConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("packets.dir", &p.Dir, defaultPacketsDir))
}

func (a *ArtifactsConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("artifacts.dir", &a.Dir, defaultArtifactsDir))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("store.enabled", &s.Enabled, true),
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (p *PromptConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("prompt.dir", &p.Dir, defaultPromptDir))
}

// Helper functions

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// boolFieldDefault only applies when the key is absent from the file.
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
