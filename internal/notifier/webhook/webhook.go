// Package webhook posts job events as JSON to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/enercast/internal/notifier"
)

const (
	// EventHeader carries the event type
	EventHeader = "X-Enercast-Event"
	// SignatureHeader carries "sha256=<hex hmac of body>" when a secret is set
	SignatureHeader = "X-Enercast-Signature"

	defaultName = "webhook"
)

// Webhook delivers events to one URL. Params: url (required), name,
// headers, events (subset of event types to deliver), secret.
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	events  notifier.EventFilter
	secret  []byte
	client  *http.Client
}

// New creates a webhook that delivers every event
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string {
	if w.name == "" {
		return defaultName
	}
	return w.name
}

func (w *Webhook) Init(cfg notifier.Config) error {
	if url, ok := cfg.Params["url"].(string); ok {
		w.url = url
	}
	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}
	if name, ok := cfg.Params["name"].(string); ok {
		w.name = name
	}
	if secret, ok := cfg.Params["secret"].(string); ok && secret != "" {
		w.secret = []byte(secret)
	}

	switch headers := cfg.Params["headers"].(type) {
	case map[string]string:
		w.headers = headers
	case map[string]any:
		w.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			w.headers[k] = fmt.Sprint(v)
		}
	}

	events, err := notifier.ParseEvents(cfg.Params["events"])
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	w.events = events

	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

// Accepts reports whether ev passes the events filter
func (w *Webhook) Accepts(ev notifier.Event) bool {
	return w.events.Accepts(ev)
}

// Send posts the event as JSON. Filtered events are dropped silently.
func (w *Webhook) Send(ctx context.Context, ev notifier.Event) error {
	if !w.Accepts(ev) {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, ev.Type)
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: request failed: %w", w.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook %s: server returned %d", w.Name(), resp.StatusCode)
	}
	return nil
}

// Sign returns the signature header value for body
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
