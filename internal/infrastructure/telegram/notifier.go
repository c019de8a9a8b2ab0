package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"FlatScanner/internal/domain"
	"FlatScanner/internal/ports"
)

// Notifier sends one message per expose to a Telegram chat via bot API.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier authenticates the bot token against the public API.
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	return NewNotifierWithClient(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
}

// NewNotifierWithClient talks to a custom endpoint, in the "…/bot%s/%s" form of tgbotapi.APIEndpoint.
func NewNotifierWithClient(botToken string, chatID int64, endpoint string, client tgbotapi.HTTPClient) (*Notifier, error) {
	if botToken == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	return &Notifier{bot: bot, chatID: chatID}, nil
}

// NotifyExpose posts an HTML summary of the expose.
func (n *Notifier) NotifyExpose(ctx context.Context, expose domain.Expose) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatExpose(expose))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send expose %d: %w", expose.ID, err)
	}
	return nil
}

// FormatExpose renders the message body. Empty fields are left out.
func FormatExpose(e domain.Expose) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(e.Label()))

	lines := []struct{ label, value string }{
		{"Price", e.Price},
		{"Size", e.Size},
		{"Rooms", e.Rooms},
		{"Address", e.Address},
		{"Available from", e.AvailableFrom},
	}
	for _, l := range lines {
		if l.value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", l.label, html.EscapeString(l.value))
	}

	if e.URL != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">Open listing</a>", html.EscapeString(e.URL))
	}
	return strings.TrimRight(b.String(), "\n")
}
