package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"informer/internal/artifact"
	"informer/internal/config"
	"informer/internal/decision"
	"informer/internal/llm/provider"
	"informer/internal/logger"
	"informer/internal/notifier"
	"informer/internal/risk"
	"informer/internal/store"
	"informer/internal/store/sqlite"
	"informer/internal/store/tradelock"
	decisionhttp "informer/internal/transport/http/decisions"
)

func buildGateway(cfg config.LLMConfig) (decision.Submitter, error) {
	routing, err := cfg.ResolveRouting()
	if err != nil {
		return nil, err
	}
	gw, err := provider.BuildGateway(cfg.Mode, routing, cfg.ModelConfigs(), cfg.Timeout())
	if err != nil {
		return nil, fmt.Errorf("init llm gateway: %w", err)
	}
	if cfg.BreakerThreshold > 0 {
		gw.EnableBreakers(cfg.BreakerThreshold, cfg.BreakerCooldown())
	}
	return gw, nil
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	st, err := sqlite.NewSqliteStore(cfg.Path)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ run log at %s", cfg.Path)
	return st, nil
}

func buildTradeLock(cfg config.RiskConfig) (*tradelock.Store, error) {
	return tradelock.Open(cfg.LockPath)
}

// buildProfiles falls back to the built-in table when the profiles file is
// absent.
func buildProfiles(cfg config.RiskConfig) (ProfileSource, error) {
	path := strings.TrimSpace(cfg.ProfilesPath)
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Warnf("[risk] profiles file %s not found, using built-in profiles", path)
			path = ""
		}
	}
	reg, err := risk.NewRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load risk profiles: %w", err)
	}
	return reg, nil
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildHTTPServer(cfg config.AppConfig, st store.Store, artifacts *artifact.Writer, locks *tradelock.Store) (*decisionhttp.Server, error) {
	serverCfg := decisionhttp.ServerConfig{
		Addr:      cfg.HTTPAddr,
		Artifacts: artifacts,
	}
	if rs, ok := st.(runSource); ok {
		serverCfg.Runs = rs.Runs()
	}
	if locks != nil {
		serverCfg.Locks = locks
	}
	server, err := decisionhttp.NewServer(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("init decision http: %w", err)
	}
	return server, nil
}

// runSource is implemented by stores that expose a read repository outside
// a unit of work.
type runSource interface {
	Runs() store.RunRepository
}
