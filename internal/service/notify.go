package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"calagent/internal/logger"
)

const telegramSendTimeout = 5 * time.Second

// TelegramNotifier posts operator notifications to a Telegram chat.
// Delivery happens on a separate goroutine with its own timeout so a slow
// or failing Telegram API can never stall a push response.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
	log      *logger.Logger

	warnOnce sync.Once
}

func NewTelegramNotifier(botToken, chatID string, log *logger.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: telegramSendTimeout},
		log:      log,
	}
}

var _ Notifier = (*TelegramNotifier)(nil)

// Notify sends the message and returns immediately. Missing configuration
// is logged once and then silently skipped.
func (n *TelegramNotifier) Notify(message string) {
	if n.botToken == "" || n.chatID == "" {
		n.warnOnce.Do(func() {
			if n.log != nil {
				n.log.Warnw("telegram_not_configured", "hint", "set telegram.bot_token and telegram.chat_id")
			}
		})
		return
	}

	go n.send(message)
}

func (n *TelegramNotifier) send(message string) {
	payload, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    message,
	})
	if err != nil {
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		if n.log != nil {
			n.log.Errorw("telegram_send_failed", "err", err)
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		if n.log != nil {
			n.log.Errorw("telegram_api_error", "status", resp.StatusCode)
		}
	}
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Notify(string) {}
