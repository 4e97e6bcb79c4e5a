// Package telegram sends job events to a chat through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/enercast/internal/notifier"
)

const (
	defaultName    = "telegram"
	defaultBaseURL = "https://api.telegram.org"
)

// Telegram implements notifier.Notifier. Params: bot_token and chat_id
// (required), name, events, base_url (a self-hosted Bot API server).
type Telegram struct {
	name     string
	botToken string
	chatID   string
	baseURL  string
	events   notifier.EventFilter
	client   *http.Client
}

// New creates a Telegram notifier that delivers every event
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Telegram) Name() string {
	if t.name == "" {
		return defaultName
	}
	return t.name
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"]; ok && chatID != nil {
		// numeric chat ids come through YAML as ints
		t.chatID = fmt.Sprint(chatID)
	}
	if name, ok := cfg.Params["name"].(string); ok {
		t.name = name
	}
	if base, ok := cfg.Params["base_url"].(string); ok && base != "" {
		t.baseURL = base
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}

	events, err := notifier.ParseEvents(cfg.Params["events"])
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	t.events = events

	if t.baseURL == "" {
		t.baseURL = defaultBaseURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

// Send posts the event as a plain-text chat message
func (t *Telegram) Send(ctx context.Context, ev notifier.Event) error {
	if !t.events.Accepts(ev) {
		return nil
	}
	return t.sendMessage(ctx, formatEvent(ev))
}

func formatEvent(ev notifier.Event) string {
	icon := "✅"
	switch ev.Type {
	case notifier.EventFailed:
		icon = "❌"
	case notifier.EventCancelled:
		icon = "⏹"
	}
	return icon + " " + ev.Text()
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.baseURL, "/"), t.botToken)

	body, err := json.Marshal(map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the request URL carries the token
		return fmt.Errorf("telegram: failed to send message: %w", redact(err, t.botToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result apiResponse
		_ = json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %s", resp.StatusCode, result.Description)
	}
	return nil
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}
