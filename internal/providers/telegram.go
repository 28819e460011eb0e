package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"farm-console/internal/logging"
	"farm-console/internal/models"
	"farm-console/internal/utils"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// Telegram forwards alerts to a farm operations chat.
type Telegram struct {
	sender  messageSender
	chatID  int64
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewTelegram builds a forwarder sending at most ratePerSecond messages.
func NewTelegram(botToken string, chatID int64, ratePerSecond int, logger *logging.Logger) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("missing telegram chat id")
	}
	b, err := bot.New(botToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return newTelegram(b, chatID, ratePerSecond, logger), nil
}

func newTelegram(sender messageSender, chatID int64, ratePerSecond int, logger *logging.Logger) *Telegram {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &Telegram{
		sender:  sender,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
	}
}

// SendAlert delivers one alert, retrying transient failures.
func (t *Telegram) SendAlert(ctx context.Context, alert models.Alert) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	text := FormatAlert(alert)
	return utils.Retry(ctx, t.logger, 3, time.Second, func() error {
		params := &bot.SendMessageParams{
			ChatID: t.chatID,
			Text:   text,
		}
		if _, err := t.sender.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.chatID, err)
		}
		return nil
	})
}

// FormatAlert renders the alert as a plain-text chat message.
func FormatAlert(alert models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(alert.Severity)), alert.Title)
	if alert.Message != "" {
		fmt.Fprintf(&b, "%s\n", alert.Message)
	}
	if alert.TaskID != "" {
		fmt.Fprintf(&b, "Task: %s\n", alert.TaskID)
	}
	fmt.Fprintf(&b, "Time: %s", alert.Timestamp.Format("2006-01-02 15:04:05"))
	return b.String()
}
