// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify delivers digests to Telegram, Pushover, and webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Notifier delivers a digest.
type Notifier interface {
	Send(ctx context.Context, d types.Digest) error
}

// Multi fans a digest out to every notifier and joins their errors.
type Multi []Notifier

// Send calls every notifier, even after a failure.
func (m Multi) Send(ctx context.Context, d types.Digest) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers whose credentials are present. It
// returns nil when none are configured.
func FromConfig(cfg types.NotifyConfig, hc *http.Client) Notifier {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	var m Multi
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		m = append(m, &Telegram{Token: cfg.TelegramBotToken, ChatID: cfg.TelegramChatID, Client: hc})
	}
	if cfg.PushoverUserKey != "" && cfg.PushoverAPIToken != "" {
		m = append(m, &Pushover{UserKey: cfg.PushoverUserKey, APIToken: cfg.PushoverAPIToken, Client: hc})
	}
	if cfg.WebhookURL != "" {
		m = append(m, &Webhook{URL: cfg.WebhookURL, Client: hc, UserAgent: cfg.UserAgent})
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

// Messages renders d as text messages of at most limit runes. Each date
// group starts a new message; a group too long for one message continues
// in the next. With markdown set, titles are bold and user text is escaped
// for Telegram's Markdown mode.
func Messages(d types.Digest, limit int, markdown bool) []string {
	esc := func(s string) string { return s }
	if markdown {
		esc = escapeMarkdown
	}

	var msgs []string
	heading := ""
	if d.Title != "" {
		if markdown {
			heading = "*" + esc(d.Title) + "*\n\n"
		} else {
			heading = d.Title + "\n\n"
		}
	}

	for _, day := range d.Days {
		header := fmt.Sprintf("📅 %s  (%d papers)\n%s\n\n", day.Date, len(day.Entries), strings.Repeat("─", 30))
		if len(d.Days) == 1 && len(day.Entries) == 1 {
			header = ""
		}
		cur := heading + header
		heading = ""
		blank := true

		for i, e := range day.Entries {
			block := entryBlock(i+1, e, esc, markdown)
			if !blank && runeLen(cur)+runeLen(block) > limit {
				msgs = append(msgs, strings.TrimRight(cur, "\n"))
				cur = fmt.Sprintf("📅 %s (cont.)\n\n", day.Date)
			}
			cur += block
			blank = false
		}
		msgs = append(msgs, truncateRunes(strings.TrimRight(cur, "\n"), limit))
	}
	return msgs
}

func entryBlock(n int, e types.DigestEntry, esc func(string) string, markdown bool) string {
	var b strings.Builder
	title := esc(e.Title)
	if markdown {
		title = "*" + title + "*"
	}
	fmt.Fprintf(&b, "%d. %s\n", n, title)
	aff := ""
	if e.Affiliation != "" {
		aff = " | " + esc(e.Affiliation)
	}
	fmt.Fprintf(&b, "   ⭐ Score: %d%s\n", e.Score, aff)
	fmt.Fprintf(&b, "   🔗 %s\n", e.PDFURL)
	if e.TLDR != "" {
		fmt.Fprintf(&b, "   💡 %s\n", esc(e.TLDR))
	}
	b.WriteString("\n")
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
