package config

import (
	"fmt"
	"strings"

	"informer/internal/llm/provider"
	"informer/internal/logger"
)

func validate(c *Config) error {
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Packets.Dir) == "" {
		return fmt.Errorf("packets.dir cannot be empty")
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		return fmt.Errorf("artifacts.dir cannot be empty")
	}
	if c.Store.Enabled && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path cannot be empty when store.enabled")
	}
	return nil
}

// validate 对配置进行基础校验；openai/google 之外的 provider 在加载时即拒绝。
func (l *LLMConfig) validate() error {
	switch l.Mode {
	case provider.ModeFake, provider.ModeLive:
	default:
		return fmt.Errorf("llm.mode must be %q or %q, got %q", provider.ModeFake, provider.ModeLive, l.Mode)
	}
	if l.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be > 0")
	}
	if l.MaxConcurrency <= 0 {
		return fmt.Errorf("llm.max_concurrency must be > 0")
	}
	if l.BreakerThreshold < 0 {
		return fmt.Errorf("llm.breaker_threshold must be >= 0")
	}
	routing, err := l.ResolveRouting()
	if err != nil {
		return err
	}
	seen := make(map[provider.Name]bool, len(l.Providers))
	for i, p := range l.Providers {
		name, err := provider.ParseName(p.Name)
		if err != nil {
			return fmt.Errorf("llm.providers[%d]: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("llm.providers: %s configured twice", name)
		}
		seen[name] = true
	}
	if l.Mode != provider.ModeLive {
		return nil
	}
	for _, role := range provider.Roles() {
		name := routing[role]
		p, ok := l.Provider(string(name))
		if !ok {
			return fmt.Errorf("llm.routing.%s uses %s but llm.providers has no entry for it", role, name)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("llm.providers.%s missing model", name)
		}
		if strings.TrimSpace(p.APIKey) == "" {
			return fmt.Errorf("llm.providers.%s missing api key", name)
		}
	}
	return nil
}

// ResolveRouting returns the role table with defaults filled in.
func (l LLMConfig) ResolveRouting() (provider.Routing, error) {
	routing, err := provider.ParseRouting(l.Routing)
	if err != nil {
		return nil, fmt.Errorf("llm.%w", err)
	}
	return routing, nil
}

// ModelConfigs converts providers for provider.BuildGateway.
func (l LLMConfig) ModelConfigs() []provider.ModelCfg {
	out := make([]provider.ModelCfg, 0, len(l.Providers))
	for _, p := range l.Providers {
		out = append(out, provider.ModelCfg{
			Provider: p.Name,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Model:    p.Model,
			Headers:  p.Headers,
		})
	}
	return out
}

func (p *PipelineConfig) validate() error {
	if p.MaxCandidates < 0 {
		return fmt.Errorf("pipeline.max_candidates must be >= 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxRiskUSD <= 0 {
		return fmt.Errorf("risk.max_risk_usd must be > 0")
	}
	if r.CashUSD != nil && *r.CashUSD < 0 {
		return fmt.Errorf("risk.cash_usd must be >= 0")
	}
	if r.OneTradePerDay && strings.TrimSpace(r.LockPath) == "" {
		return fmt.Errorf("risk.lock_path cannot be empty when risk.one_trade_per_day")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		logger.Warnf("[config] notify.telegram enabled but bot_token/chat_id missing")
		return fmt.Errorf("notify.telegram requires bot_token and chat_id")
	}
	return nil
}
