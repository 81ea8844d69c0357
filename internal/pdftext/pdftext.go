// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext downloads paper PDFs and extracts their plain text.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/paper-digest/internal/httputil"
)

const (
	defaultMaxPages = 12
	defaultMaxBytes = 40 << 20
)

// Extractor fetches a PDF and returns the text of its first pages.
type Extractor struct {
	Client    *http.Client
	UserAgent string
	// MaxPages bounds the pages read (default 12).
	MaxPages int
	// MaxBytes bounds the download size (default 40 MiB).
	MaxBytes int64
	Logger   *slog.Logger
}

// Extract downloads pdfURL and returns the plain text of its first
// MaxPages pages. Callers treat any error as "no full text".
func (e *Extractor) Extract(ctx context.Context, pdfURL string) (string, error) {
	data, err := e.download(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	text, err := e.textOf(data)
	if err != nil {
		return "", fmt.Errorf("reading PDF %s: %w", pdfURL, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("PDF %s has no extractable text", pdfURL)
	}
	e.logger().Debug("extracted PDF text", "url", pdfURL, "bytes", len(data), "chars", len(text))
	return text, nil
}

func (e *Extractor) download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 2)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", pdfURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: HTTP %d", pdfURL, resp.StatusCode)
	}

	limit := e.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pdfURL, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("PDF %s exceeds %d bytes", pdfURL, limit)
	}
	return data, nil
}

// textOf extracts text page by page. Pages that fail to decode are
// skipped. The PDF library panics on some malformed files, so panics are
// turned into errors.
func (e *Extractor) textOf(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	maxPages := e.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	maxPages = min(maxPages, r.NumPage())

	var b strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			e.logger().Debug("skipping unreadable PDF page", "page", i, "err", err)
			continue
		}
		b.WriteString(t)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
