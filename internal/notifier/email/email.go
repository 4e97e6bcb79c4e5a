// Package email mails job events over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/newthinker/enercast/internal/notifier"
)

const (
	defaultName = "email"
	defaultPort = 587
)

// SendFunc has the signature of smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email implements notifier.Notifier. Params: host, from and to
// (required), port, username, password, name, events.
type Email struct {
	name     string
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	events   notifier.EventFilter
	send     SendFunc
}

// New creates an Email notifier that delivers every event
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string {
	if e.name == "" {
		return defaultName
	}
	return e.name
}

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	if port, ok := cfg.Params["port"]; ok && port != nil {
		p, err := parsePort(port)
		if err != nil {
			return err
		}
		e.port = p
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	if name, ok := cfg.Params["name"].(string); ok {
		e.name = name
	}
	switch to := cfg.Params["to"].(type) {
	case string:
		e.to = splitList(to)
	case []string:
		e.to = to
	case []any:
		e.to = e.to[:0]
		for _, v := range to {
			e.to = append(e.to, fmt.Sprint(v))
		}
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}

	events, err := notifier.ParseEvents(cfg.Params["events"])
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	e.events = events

	if e.port == 0 {
		e.port = defaultPort
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}
	return nil
}

func parsePort(v any) (int, error) {
	switch p := v.(type) {
	case int:
		return p, nil
	case int64:
		return int(p), nil
	case float64:
		if p == float64(int(p)) {
			return int(p), nil
		}
	case string:
		if n, err := strconv.Atoi(p); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("email: port must be an integer, got %v", v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Send mails the event as plain text. net/smtp takes no context, so ctx
// is only checked before dialing.
func (e *Email) Send(ctx context.Context, ev notifier.Event) error {
	if !e.events.Accepts(ev) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	if err := e.send(addr, auth, e.from, e.to, e.message(ev)); err != nil {
		return fmt.Errorf("email %s: %w", e.Name(), err)
	}
	return nil
}

func (e *Email) message(ev notifier.Event) []byte {
	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: Enercast: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		ev.Title(),
		strings.ReplaceAll(ev.Text(), "\n", "\r\n"),
	)
	return []byte(msg)
}
