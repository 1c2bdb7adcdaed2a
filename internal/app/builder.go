package app

import (
	"context"
	"fmt"
	"time"

	"informer/internal/artifact"
	"informer/internal/config"
	"informer/internal/decision"
	"informer/internal/llm/provider"
	"informer/internal/logger"
	"informer/internal/notifier"
	"informer/internal/packet"
	promptkit "informer/internal/prompt"
	"informer/internal/store"
	"informer/internal/store/tradelock"
)

type AppBuilder struct {
	cfg *config.Config

	gatewayFn  func(config.LLMConfig) (decision.Submitter, error)
	storeFn    func(config.StoreConfig) (store.Store, error)
	lockFn     func(config.RiskConfig) (*tradelock.Store, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
	profilesFn func(config.RiskConfig) (ProfileSource, error)

	now   func() time.Time
	newID func() string
}

type AppBuilderOption func(*AppBuilder)

// WithGateway replaces the provider gateway, e.g. with a scripted one.
func WithGateway(gw decision.Submitter) AppBuilderOption {
	return func(b *AppBuilder) {
		b.gatewayFn = func(config.LLMConfig) (decision.Submitter, error) { return gw, nil }
	}
}

func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.now = now }
}

func WithRunIDs(newID func() string) AppBuilderOption {
	return func(b *AppBuilder) { b.newID = newID }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		gatewayFn:  buildGateway,
		storeFn:    buildStore,
		lockFn:     buildTradeLock,
		notifierFn: buildNotifier,
		profilesFn: buildProfiles,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	a := &App{cfg: cfg}

	profiles, err := b.profilesFn(cfg.Risk)
	if err != nil {
		return nil, err
	}
	gw, err := b.gatewayFn(cfg.LLM)
	if err != nil {
		return nil, err
	}
	runner, err := decision.NewRunner(gw, cfg.LLM.Timeout(), cfg.LLM.CriticFallback)
	if err != nil {
		return nil, fmt.Errorf("compile stage schemas: %w", err)
	}
	prompts, err := loadPrompts(cfg.Prompt)
	if err != nil {
		return nil, err
	}
	pipeline := decision.NewPipeline(runner, prompts, decision.Config{
		MaxCandidates:    cfg.Pipeline.MaxCandidates,
		MaxConcurrency:   cfg.LLM.MaxConcurrency,
		MaxTokens:        cfg.LLM.MaxTokens,
		PrimaryTimeframe: cfg.Pipeline.PrimaryTimeframe,
		IncludePacket:    cfg.Pipeline.IncludePacket,
		MaxRiskUSD:       cfg.Risk.MaxRiskUSD,
		CashUSD:          cfg.Risk.CashUSD,
	})
	artifacts := artifact.NewWriter(cfg.Artifacts.Dir, cfg.Artifacts.Overwrite)

	deps := ServiceDeps{
		Pipeline:  pipeline,
		Packets:   packet.NewLoader(cfg.Packets.Dir),
		Profiles:  profiles,
		Artifacts: artifacts,
		Notifier:  b.notifierFn(cfg.Notify),
		Symbols:   cfg.Pipeline.Symbols,
		Profile:   cfg.Risk.Profile,
		Now:       b.now,
		NewID:     b.newID,
	}
	if cfg.Risk.OneTradePerDay {
		locks, err := b.lockFn(cfg.Risk)
		if err != nil {
			return nil, fmt.Errorf("open trade lock: %w", err)
		}
		a.locks = locks
		a.closers = append(a.closers, locks.Close)
		deps.Locks = locks
	}
	if cfg.Store.Enabled {
		st, err := b.storeFn(cfg.Store)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open run log: %w", err)
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
		deps.Store = st
	}
	svc, err := NewService(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = svc

	server, err := buildHTTPServer(cfg.App, a.store, artifacts, a.locks)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.server = server
	a.Summary = newStartupSummary(cfg, profiles, gw.Routing())
	return a, nil
}

func loadPrompts(cfg config.PromptConfig) (map[string]string, error) {
	names := make([]string, 0, len(provider.Roles()))
	for _, role := range provider.Roles() {
		names = append(names, string(role))
	}
	prompts, err := promptkit.NewLoader(cfg.Dir).LoadAll(names...)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	logger.Debugf("[prompt] %d stage prompts resolved (dir=%s)", len(prompts), cfg.Dir)
	return prompts, nil
}
