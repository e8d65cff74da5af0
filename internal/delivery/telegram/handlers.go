package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/NasaVasa/pricewatch/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sender is the slice of *tgbotapi.BotAPI the handlers and notifier use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Handlers struct {
	userUC  *usecase.UserUsecase
	alertUC *usecase.AlertUsecase
	quoteUC *usecase.QuoteUsecase
	monitor *usecase.Monitor
	logger  *zap.Logger
}

func NewHandlers(userUC *usecase.UserUsecase, alertUC *usecase.AlertUsecase, quoteUC *usecase.QuoteUsecase, monitor *usecase.Monitor, logger *zap.Logger) *Handlers {
	return &Handlers{userUC: userUC, alertUC: alertUC, quoteUC: quoteUC, monitor: monitor, logger: logger}
}

func (h *Handlers) HandleUpdate(ctx context.Context, api sender, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if update.Message.IsCommand() {
		h.handleCommand(ctx, api, update)
	}
}

func (h *Handlers) handleCommand(ctx context.Context, api sender, update tgbotapi.Update) {
	command := update.Message.Command()
	args := update.Message.CommandArguments()
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	username := update.Message.From.UserName

	logger := h.logger.With(zap.Int64("telegram_user_id", userID), zap.String("command", command))
	logger.Info(
		"telegram command received",
		zap.Int64("chat_id", chatID),
		zap.String("username", username),
		zap.String("args", args),
	)

	switch command {
	case "start":
		if _, err := h.userUC.Register(ctx, userID, username); err != nil {
			logger.Warn("start command failed", zap.Error(err))
			h.reply(api, chatID, "Failed to register. Please try again.")
			return
		}
		h.reply(api, chatID, "Welcome to Pricewatch.\n\n"+HelpText)
	case "help":
		h.reply(api, chatID, HelpText)
	case "add_alert":
		parsed, err := ParseAddAlertArgs(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /add_alert <SYMBOL> <above|below> <price>")
			return
		}
		alert, err := h.alertUC.AddAlert(ctx, userID, parsed.Symbol, parsed.Direction, parsed.Target)
		if err != nil {
			logger.Warn("add_alert failed", zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		logger.Info("add_alert complete", zap.Uint("alert_id", alert.ID), zap.String("symbol", alert.Symbol))
		h.reply(api, chatID, "Alert created: "+formatAlert(*alert))
	case "alerts":
		alerts, err := h.alertUC.ListAlerts(ctx, userID)
		if err != nil {
			logger.Warn("alerts list failed", zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		if len(alerts) == 0 {
			h.reply(api, chatID, "No alerts yet. Use /add_alert to create one.")
			return
		}
		h.reply(api, chatID, formatAlertList(alerts))
	case "toggle":
		alertID, err := ParseAlertID(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /toggle <alert_id>")
			return
		}
		alert, err := h.alertUC.ToggleAlert(ctx, userID, alertID)
		if err != nil {
			logger.Warn("toggle failed", zap.Uint("alert_id", alertID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		logger.Info("toggle complete", zap.Uint("alert_id", alertID), zap.Bool("active", alert.Active))
		h.reply(api, chatID, "Alert updated: "+formatAlert(*alert))
	case "delete":
		alertID, err := ParseAlertID(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /delete <alert_id>")
			return
		}
		if err := h.alertUC.DeleteAlert(ctx, userID, alertID); err != nil {
			logger.Warn("delete failed", zap.Uint("alert_id", alertID), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		logger.Info("delete complete", zap.Uint("alert_id", alertID))
		h.reply(api, chatID, fmt.Sprintf("Alert #%d deleted.", alertID))
	case "price":
		symbols, err := ParseSymbols(args)
		if err != nil {
			h.reply(api, chatID, fmt.Sprintf("Usage: /price <SYMBOL> [SYMBOL...] (up to %d)", maxPriceSymbols))
			return
		}
		quotes, missing := h.quoteUC.Prices(ctx, symbols)
		h.reply(api, chatID, formatQuotes(quotes, missing))
	case "check":
		raw, err := ParseSymbol(args)
		if err != nil {
			h.reply(api, chatID, "Usage: /check <SYMBOL>")
			return
		}
		symbol, err := usecase.ValidateSymbol(raw)
		if err != nil {
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		report, err := h.monitor.CheckSymbol(ctx, symbol)
		if err != nil {
			logger.Warn("check failed", zap.String("symbol", symbol), zap.Error(err))
			h.reply(api, chatID, h.errorMessage(err))
			return
		}
		logger.Info("check complete", zap.String("symbol", symbol), zap.String("cycle_id", report.CycleID), zap.Int("triggered", report.Triggered))
		h.reply(api, chatID, formatCheckReport(symbol, report))
	default:
		logger.Warn("unknown command")
		h.reply(api, chatID, "Unknown command.\n\n"+HelpText)
	}
}

func (h *Handlers) errorMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrUserNotRegistered):
		return "Please /start to register first."
	case errors.Is(err, usecase.ErrInvalidSymbol):
		return "Invalid symbol. Use a ticker like AAPL, ^GSPC or BTCUSDT."
	case errors.Is(err, usecase.ErrInvalidDirection):
		return "Invalid direction. Use above or below."
	case errors.Is(err, usecase.ErrInvalidTarget):
		return "Invalid price. Use a positive number like 150.25."
	case errors.Is(err, usecase.ErrAlertNotFound):
		return "Alert not found."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func (h *Handlers) reply(api sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := api.Send(msg); err != nil {
		h.logger.Warn("failed to send message", zap.Error(err))
	}
}
