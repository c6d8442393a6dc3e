package telegrambot

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"
)

// Bot is a send-only Telegram bot used for admin notifications
type Bot struct {
	bot    *telebot.Bot
	logger *logrus.Logger
}

// NewBot creates a new Telegram bot. The bot never polls for updates.
// An empty apiURL uses the public Bot API.
func NewBot(token, apiURL string, logger *logrus.Logger) (*Bot, error) {
	settings := telebot.Settings{
		Token:   token,
		URL:     apiURL,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
		OnError: func(err error, _ telebot.Context) {
			logger.Errorf("Telegram bot error: %v", err)
		},
	}

	b, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &Bot{
		bot:    b,
		logger: logger,
	}, nil
}

// SendHTML sends an HTML formatted message to a chat
func (b *Bot) SendHTML(chatID int64, text string) error {
	if _, err := b.bot.Send(telebot.ChatID(chatID), text, telebot.ModeHTML, telebot.NoPreview); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	b.logger.Debugf("Sent message to %d", chatID)
	return nil
}
