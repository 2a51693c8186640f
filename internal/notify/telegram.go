// Package notify delivers best-effort event messages. Delivery failure
// is logged, never retried: state tracking upstream must not depend on
// the notifier.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	applog "ecosniper/internal/log"
)

// Telegram sends messages through the Bot API. Credentials can be
// replaced at runtime from the settings surface.
type Telegram struct {
	mu     sync.Mutex
	token  string
	chatID string
	HTTP   *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:  token,
		chatID: chatID,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Update swaps the bot credentials.
func (t *Telegram) Update(token, chatID string) {
	t.mu.Lock()
	t.token = token
	t.chatID = chatID
	t.mu.Unlock()
}

// Configured reports whether both credentials are set.
func (t *Telegram) Configured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token != "" && t.chatID != ""
}

// Notify posts one message. Returns false when unconfigured or on any
// transport/API failure.
func (t *Telegram) Notify(message string) bool {
	t.mu.Lock()
	token, chatID := t.token, t.chatID
	t.mu.Unlock()
	if token == "" || chatID == "" {
		applog.Warn("notify", "telegram not configured, dropping notification", nil)
		return false
	}

	payload, _ := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    message,
	})
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token)

	resp, err := t.HTTP.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		applog.Error("notify", "telegram send failed", err, nil)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		applog.Error("notify", "telegram rejected message", fmt.Errorf("status %d", resp.StatusCode), nil)
		return false
	}
	return true
}
