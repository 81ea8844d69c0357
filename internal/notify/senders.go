// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Endpoints, declared as vars so tests can substitute httptest servers.
var (
	telegramAPIBase = "https://api.telegram.org"
	pushoverAPIURL  = "https://api.pushover.net/1/messages.json"
)

// Platform message limits, in characters.
const (
	telegramLimit = 4096
	pushoverLimit = 1024
)

// Telegram sends digests through the Bot API sendMessage method.
type Telegram struct {
	Token  string
	ChatID string
	Client *http.Client
}

// Send posts one message per date group.
func (t *Telegram) Send(ctx context.Context, d types.Digest) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.Token)
	for _, msg := range Messages(d, telegramLimit, true) {
		body, err := json.Marshal(map[string]any{
			"chat_id":                  t.ChatID,
			"text":                     msg,
			"parse_mode":               "Markdown",
			"disable_web_page_preview": true,
		})
		if err != nil {
			return fmt.Errorf("marshaling telegram message: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if err := post(ctx, t.Client, req, "telegram"); err != nil {
			// The bot token is part of the URL.
			return errors.New(strings.ReplaceAll(err.Error(), t.Token, "<token>"))
		}
	}
	return nil
}

// Pushover sends digests through the Pushover messages API.
type Pushover struct {
	UserKey  string
	APIToken string
	Client   *http.Client
}

// Send posts one message per date group.
func (p *Pushover) Send(ctx context.Context, d types.Digest) error {
	title := d.Title
	if title == "" {
		title = "Paper digest"
	}
	for _, msg := range Messages(d, pushoverLimit, false) {
		form := url.Values{
			"token":   {p.APIToken},
			"user":    {p.UserKey},
			"title":   {title},
			"message": {msg},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, pushoverAPIURL, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if err := post(ctx, p.Client, req, "pushover"); err != nil {
			return err
		}
	}
	return nil
}

// Webhook posts the digest as JSON.
type Webhook struct {
	URL       string
	UserAgent string
	Client    *http.Client
}

// Send posts the whole digest in one request.
func (w *Webhook) Send(ctx context.Context, d types.Digest) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling digest: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.UserAgent != "" {
		req.Header.Set("User-Agent", w.UserAgent)
	}
	return post(ctx, w.Client, req, "webhook")
}

func post(ctx context.Context, client *http.Client, req *http.Request, name string) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 2)
	if err != nil {
		return fmt.Errorf("%s request: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned HTTP %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
