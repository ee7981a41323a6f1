package providers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
	"sigevent-service/internal/logging"
)

// ChatTransport delivers short plain-text notifications to chat rooms.
type ChatTransport interface {
	SendChat(ctx context.Context, chatID int64, text string) error
}

type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramTransport sends chat notifications through a Telegram bot, paced
// by a shared rate limiter.
type TelegramTransport struct {
	bot     telegramAPI
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewTelegramTransport creates a bot client for token allowing ratePerSecond sends.
func NewTelegramTransport(token string, ratePerSecond int, logger *logging.Logger) (*TelegramTransport, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return newTelegramTransport(b, ratePerSecond, logger), nil
}

func newTelegramTransport(api telegramAPI, ratePerSecond int, logger *logging.Logger) *TelegramTransport {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &TelegramTransport{
		bot:     api,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
	}
}

func (t *TelegramTransport) SendChat(ctx context.Context, chatID int64, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}
	if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
	}
	t.logger.Debugf("Telegram message sent to chat_id %d", chatID)
	return nil
}
