package alert

import (
	"context"
	"fmt"

	"storebridge/internal/config"
	"storebridge/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// botSender is what we need from tgbotapi.BotAPI.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender pushes operator alerts about failed sync runs to a
// Telegram chat. Alert delivery is best effort; a failed alert is
// logged and dropped, never retried.
type TelegramSender struct {
	bot    botSender
	chatID int64
	logger *zerolog.Logger
}

// New connects to the Telegram Bot API. Returns nil with no error when
// alerts are disabled via config; callers treat a nil sender as off.
func New(cfg config.AlertsConfig, logger *zerolog.Logger) (*TelegramSender, error) {
	if !cfg.TelegramEnabled {
		return nil, nil
	}
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("alerts: bot_token and chat_id are required when telegram alerts are enabled")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("alerts: connect bot api: %w", err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &TelegramSender{bot: botAPI, chatID: cfg.ChatID, logger: logger}, nil
}

// SyncRunFailed notifies operators about a run that did not complete.
func (s *TelegramSender) SyncRunFailed(_ context.Context, run *models.SyncRun) error {
	text := fmt.Sprintf(
		"⚠️ Sync run %s\n\nTenant: %s\nRun: %s\nBatches sent: %d\nCustomers forwarded: %d",
		run.Status, run.TenantID, run.ID, run.Batches, run.TotalForwarded,
	)
	if run.FailedBatch > 0 {
		text += fmt.Sprintf("\nFailed at batch: %d", run.FailedBatch)
	}
	if run.Error != "" {
		text += fmt.Sprintf("\nError: %s", run.Error)
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("alert: telegram send failed")
		return err
	}
	return nil
}
