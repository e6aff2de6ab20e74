// Package telegram оборачивает Telegram Bot API для остального кода бота
package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrBlockedByUser означает, что получатель навсегда недоступен: заблокировал
// бота или удалил аккаунт. Классификация по тексту ответа API выполняется
// только здесь; остальной код проверяет ошибку через errors.Is.
var ErrBlockedByUser = errors.New("recipient blocked the bot")

// Sender отправляет сообщения пользователям
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Client реализует Sender поверх Telegram Bot API
type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient создает клиент поверх авторизованного бота
func NewClient(bot *tgbotapi.BotAPI) *Client {
	return &Client{bot: bot}
}

// SendMessage отправляет пользователю HTML-сообщение
func (c *Client) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := c.bot.Send(msg); err != nil {
		return classify(chatID, err)
	}

	return nil
}

func classify(chatID int64, err error) error {
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "bot was blocked") ||
		strings.Contains(text, "user is deactivated") ||
		strings.Contains(text, "chat not found") {
		return fmt.Errorf("chat %d: %w", chatID, ErrBlockedByUser)
	}

	return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
}
