package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"informer/internal/logger"
)

const (
	ModeFake = "fake"
	ModeLive = "live"
)

// ModelCfg describes one provider endpoint.
type ModelCfg struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Headers  map[string]string
}

// BuildGateway constructs the clients for mode and binds them to routing.
// Unknown provider names fail here so a bad config never reaches a run.
func BuildGateway(mode string, routing Routing, models []ModelCfg, timeout time.Duration) (*Gateway, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "", ModeFake:
		logger.Infof("[llm] fake mode: no network calls")
		return NewGateway(routing, NewFakeClient(OpenAI), NewFakeClient(Google))
	case ModeLive:
	default:
		return nil, fmt.Errorf("llm mode %q not supported (fake|live)", mode)
	}

	clients := make([]Client, 0, len(models))
	for _, m := range models {
		name, err := ParseName(m.Provider)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(m.APIKey) == "" {
			return nil, fmt.Errorf("provider %s: api key missing", name)
		}
		switch name {
		case OpenAI:
			clients = append(clients, &OpenAIChatClient{
				BaseURL:      m.BaseURL,
				APIKey:       m.APIKey,
				Model:        m.Model,
				ExtraHeaders: m.Headers,
				HTTPClient:   &http.Client{Timeout: timeout},
			})
		case Google:
			clients = append(clients, NewGeminiClient(m.BaseURL, m.APIKey, m.Model))
		}
	}
	return NewGateway(routing, clients...)
}
