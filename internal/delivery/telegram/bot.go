package telegram

import (
	"context"
	"fmt"

	"github.com/NasaVasa/pricewatch/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
}

func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout}
}

func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.HandleUpdate(ctx, b.api, update)
		}
	}
}

// Notifier tells the alert owner in their private chat that an alert fired.
type Notifier struct {
	api    sender
	users  domain.UserRepository
	logger *zap.Logger
}

func NewNotifier(api sender, users domain.UserRepository, logger *zap.Logger) *Notifier {
	return &Notifier{api: api, users: users, logger: logger}
}

func (n *Notifier) AlertTriggered(ctx context.Context, alert domain.Alert, quote domain.Quote) error {
	user, err := n.users.GetByID(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("lookup owner of alert %d: %w", alert.ID, err)
	}

	n.logger.Info("telegram notify send", zap.Int64("telegram_user_id", user.TelegramUserID), zap.Uint("alert_id", alert.ID))
	if _, err := n.api.Send(tgbotapi.NewMessage(user.TelegramUserID, formatTrigger(alert, quote))); err != nil {
		return fmt.Errorf("send trigger message for alert %d: %w", alert.ID, err)
	}
	return nil
}
