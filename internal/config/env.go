package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"informer/internal/llm/provider"
)

// envOverlay lists the secrets and switches that may come from the process
// environment. Set values win over the config file.
type envOverlay struct {
	OpenAIKey        string   `env:"OPENAI_API_KEY"`
	GeminiKey        string   `env:"GEMINI_API_KEY"`
	GoogleKey        string   `env:"GOOGLE_API_KEY"`
	PropProfile      string   `env:"PROP_PROFILE"`
	LLMMode          string   `env:"LLM_MODE"`
	CashUSD          *float64 `env:"CASH_USD"`
	TelegramBotToken string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string   `env:"TELEGRAM_CHAT_ID"`
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	ov, err := env.ParseAs[envOverlay]()
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(ov.LLMMode); v != "" {
		c.LLM.Mode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(ov.PropProfile); v != "" {
		c.Risk.Profile = v
	}
	if ov.CashUSD != nil {
		c.Risk.CashUSD = ov.CashUSD
	}
	if v := strings.TrimSpace(ov.OpenAIKey); v != "" {
		c.LLM.setAPIKey(provider.OpenAI, v)
	}
	googleKey := strings.TrimSpace(ov.GeminiKey)
	if googleKey == "" {
		googleKey = strings.TrimSpace(ov.GoogleKey)
	}
	if googleKey != "" {
		c.LLM.setAPIKey(provider.Google, googleKey)
	}
	if v := strings.TrimSpace(ov.TelegramBotToken); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(ov.TelegramChatID); v != "" {
		c.Notify.Telegram.ChatID = v
	}
	return nil
}

// setAPIKey fills the key of an existing provider entry or adds a bare one.
func (l *LLMConfig) setAPIKey(name provider.Name, key string) {
	for i := range l.Providers {
		if strings.EqualFold(strings.TrimSpace(l.Providers[i].Name), string(name)) {
			l.Providers[i].APIKey = key
			return
		}
	}
	l.Providers = append(l.Providers, ProviderConfig{Name: string(name), APIKey: key})
}
