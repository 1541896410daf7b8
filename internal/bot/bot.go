// Package bot is the Telegram transport: long polling, webhook delivery
// and the reply path shared by both.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hession/chatbridge/internal/logger"
	"go.uber.org/zap"
)

// API is the part of *tgbotapi.BotAPI used for replies
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource delivers updates by long polling
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers Telegram updates through a Router
type Bot struct {
	api            API
	router         *Router
	maxMessageSize int
}

// New creates a bot
func New(api API, router *Router, maxMessageSize int) *Bot {
	if maxMessageSize <= 0 || maxMessageSize > MaxMessageSize {
		maxMessageSize = MaxMessageSize
	}
	return &Bot{api: api, router: router, maxMessageSize: maxMessageSize}
}

// Connect logs in to Telegram with token
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logger.Info("authorized on account %s", api.Self.UserName)
	return api, nil
}

// HandleUpdate processes one update end to end. Updates without message
// text are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	chatID := msg.Chat.ID
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	if !b.router.IsCommand(msg.Text) {
		if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			logger.Debug("typing action failed: %v", err)
		}
	}

	reply := b.router.Reply(ctx, userID, msg.Text)
	return b.sendText(chatID, reply)
}

func (b *Bot) sendText(chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, b.maxMessageSize) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
	}
	return nil
}

// Poll receives updates until ctx is cancelled, handling one at a time.
func (b *Bot) Poll(ctx context.Context, src UpdateSource, timeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	updates := src.GetUpdatesChan(u)
	defer src.StopReceivingUpdates()

	logger.Info("polling for updates")
	for {
		select {
		case <-ctx.Done():
			logger.Info("polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.HandleUpdate(ctx, update); err != nil {
				logger.L().Error("update failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
			}
		}
	}
}

// RegisterWebhook points Telegram at url.
func RegisterWebhook(api API, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	logger.Info("webhook set to %s", url)
	return nil
}

// DeleteWebhook removes any webhook so long polling can receive updates.
func DeleteWebhook(api API) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}
