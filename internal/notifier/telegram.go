package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Telegram pushes text messages to one chat.
type Telegram struct {
	BotToken string
	ChatID   string
	client   *resty.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return NewTelegramWithBaseURL(defaultTelegramBaseURL, botToken, chatID)
}

func NewTelegramWithBaseURL(baseURL, botToken, chatID string) *Telegram {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})
	return &Telegram{BotToken: botToken, ChatID: chatID, client: c}
}

// SendText posts text in Markdown mode, retrying transient failures.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram config incomplete")
	}
	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.BotToken).
		SetBody(map[string]any{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		SetResult(&body).
		SetError(&body).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.StatusCode()/100 != 2 {
		return fmt.Errorf("telegram status=%d: %s", resp.StatusCode(), body.Description)
	}
	return nil
}
