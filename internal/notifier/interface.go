package notifier

import "context"

// TextNotifier is the only surface the app depends on.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop drops every message. Used when no channel is configured.
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
