package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fulfill/internal/config"
	"fulfill/internal/services"
)

const userAgent = "fulfill/0.1.0"

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

type sender interface {
	send(ctx context.Context, msg message) error
}

// NewService builds a notification service for the configured provider. When
// no provider is configured a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	n := cfg.Notifications
	timeout := time.Duration(n.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	var transport sender
	switch n.Provider {
	case config.ProviderPushPlus:
		if strings.TrimSpace(n.PushPlusToken) == "" {
			return noopService{}
		}
		transport = &pushPlusSender{endpoint: n.PushPlusURL, token: n.PushPlusToken, client: client}
	case config.ProviderNtfy:
		if strings.TrimSpace(n.NtfyTopic) == "" {
			return noopService{}
		}
		transport = &ntfySender{endpoint: n.NtfyTopic, client: client}
	default:
		return noopService{}
	}

	prefix := strings.TrimSpace(n.TitlePrefix)
	if prefix == "" {
		prefix = "工单系统"
	}
	return &service{
		sender: transport,
		prefix: prefix,
		enabled: map[Event]bool{
			EventLoginFailure:   n.LoginFailure,
			EventSystemError:    n.Errors,
			EventProcessFailure: n.ProcessFailure,
			EventRunSummary:     n.Summary,
			EventTest:           true,
		},
		now: time.Now,
	}
}

type service struct {
	sender  sender
	prefix  string
	enabled map[Event]bool
	now     func() time.Time
}

func (s *service) Publish(ctx context.Context, event Event, payload Payload) error {
	if s == nil || !s.enabled[event] {
		return nil
	}
	msg, ok := formatMessage(event, payload, s.prefix, s.now())
	if !ok {
		return nil
	}
	return s.sender.send(ctx, msg)
}

type pushPlusSender struct {
	endpoint string
	token    string
	client   *http.Client
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (p *pushPlusSender) send(ctx context.Context, msg message) error {
	body, err := json.Marshal(map[string]string{
		"token":    p.token,
		"title":    msg.title,
		"content":  msg.body,
		"template": "markdown",
	})
	if err != nil {
		return fmt.Errorf("encode pushplus payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "pushplus", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "notifications", "pushplus", "send", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return services.Wrap(services.ErrTransport, "notifications", "pushplus",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}
	var result pushPlusResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return services.Wrap(services.ErrBackend, "notifications", "pushplus", "decode response", err)
	}
	if result.Code != 200 {
		return services.Wrap(services.ErrBackend, "notifications", "pushplus",
			fmt.Sprintf("code %d: %s", result.Code, fallback(strings.TrimSpace(result.Msg), "unknown error")), nil)
	}
	return nil
}

type ntfySender struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySender) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "ntfy", "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/markdown; charset=utf-8")
	req.Header.Set("Markdown", "yes")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransport, "notifications", "ntfy", "send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrTransport, "notifications", "ntfy",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
