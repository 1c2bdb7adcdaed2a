package config

import (
	"strings"
	"time"
)

// Config is the process configuration for informer.
type Config struct {
	App       AppConfig       `toml:"app"`
	LLM       LLMConfig       `toml:"llm"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Risk      RiskConfig      `toml:"risk"`
	Packets   PacketsConfig   `toml:"packets"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Store     StoreConfig     `toml:"store"`
	Prompt    PromptConfig    `toml:"prompt"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// LLMConfig binds roles to the two permitted providers.
type LLMConfig struct {
	Mode           string `toml:"mode"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrency int    `toml:"max_concurrency"`
	MaxTokens      int    `toml:"max_tokens"`
	CriticFallback bool   `toml:"critic_fallback"`
	// BreakerThreshold opens a provider's circuit after this many consecutive
	// failures; 0 disables it.
	BreakerThreshold       int               `toml:"breaker_threshold"`
	BreakerCooldownSeconds int               `toml:"breaker_cooldown_seconds"`
	Routing                map[string]string `toml:"routing"`
	Providers              []ProviderConfig  `toml:"providers"`
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (l LLMConfig) BreakerCooldown() time.Duration {
	return time.Duration(l.BreakerCooldownSeconds) * time.Second
}

// Provider returns the entry for name, case-insensitively.
func (l LLMConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range l.Providers {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

type ProviderConfig struct {
	Name    string            `toml:"name"`
	BaseURL string            `toml:"base_url"`
	APIKey  string            `toml:"api_key"`
	Model   string            `toml:"model"`
	Headers map[string]string `toml:"headers"`
}

type PipelineConfig struct {
	Symbols          []string `toml:"symbols"`
	MaxCandidates    int      `toml:"max_candidates"`
	PrimaryTimeframe string   `toml:"primary_timeframe"`
	IncludePacket    bool     `toml:"include_packet"`
}

type RiskConfig struct {
	Profile        string   `toml:"profile"`
	ProfilesPath   string   `toml:"profiles_path"`
	MaxRiskUSD     float64  `toml:"max_risk_usd"`
	CashUSD        *float64 `toml:"cash_usd"`
	OneTradePerDay bool     `toml:"one_trade_per_day"`
	LockPath       string   `toml:"lock_path"`
}

type PacketsConfig struct {
	Dir string `toml:"dir"`
}

type ArtifactsConfig struct {
	Dir       string `toml:"dir"`
	Overwrite bool   `toml:"overwrite"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type PromptConfig struct {
	Dir string `toml:"dir"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}
