package app

import (
	"fmt"
	"strings"

	"informer/internal/config"
	"informer/internal/llm/provider"
	"informer/internal/logger"
)

// StartupSummary is the resolved configuration printed at startup.
type StartupSummary struct {
	Mode         string
	Routing      provider.Routing
	Symbols      []string
	Profile      string
	Profiles     []string
	PacketsDir   string
	ArtifactsDir string
	StorePath    string
	LockPath     string
	HTTPAddr     string
}

func newStartupSummary(cfg *config.Config, profiles ProfileSource, routing provider.Routing) *StartupSummary {
	s := &StartupSummary{
		Mode:         cfg.LLM.Mode,
		Routing:      routing,
		Symbols:      cfg.Pipeline.Symbols,
		Profile:      cfg.Risk.Profile,
		PacketsDir:   cfg.Packets.Dir,
		ArtifactsDir: cfg.Artifacts.Dir,
		HTTPAddr:     cfg.App.HTTPAddr,
	}
	if profiles != nil {
		s.Profiles = profiles.Snapshot().Names()
	}
	if cfg.Store.Enabled {
		s.StorePath = cfg.Store.Path
	}
	if cfg.Risk.OneTradePerDay {
		s.LockPath = cfg.Risk.LockPath
	}
	return s
}

// Rows returns label/value pairs in display order.
func (s *StartupSummary) Rows() [][2]string {
	if s == nil {
		return nil
	}
	routes := make([]string, 0, len(provider.Roles()))
	for _, role := range provider.Roles() {
		routes = append(routes, fmt.Sprintf("%s=%s", role, s.Routing[role]))
	}
	return [][2]string{
		{"llm mode", s.Mode},
		{"routing", strings.Join(routes, " ")},
		{"symbols", formatList(s.Symbols)},
		{"profile", orDash(s.Profile)},
		{"profiles", formatList(s.Profiles)},
		{"packets", s.PacketsDir},
		{"artifacts", s.ArtifactsDir},
		{"run log", orDash(s.StorePath)},
		{"trade lock", orDash(s.LockPath)},
		{"http", s.HTTPAddr},
	}
}

func (s *StartupSummary) Log() {
	for _, row := range s.Rows() {
		logger.Infof("  %-10s %s", row[0], row[1])
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
