// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source fetches paper metadata from the arXiv Atom API.
package source

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// submittedLayout is the timestamp format of the submittedDate filter.
const submittedLayout = "200601021504"

// Client queries the arXiv API. Requests are paced by a shared limiter so
// paging and explicit lookups together respect the API's etiquette.
type Client struct {
	cfg     types.SourceConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter replaces the request limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client for cfg. Zero-valued settings fall back to
// the defaults of types.DefaultConfig.
func NewClient(cfg types.SourceConfig, opts ...Option) *Client {
	def := types.DefaultConfig().Source
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	c := &Client{cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	if c.limiter == nil {
		if cfg.RequestInterval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(cfg.RequestInterval), 1)
		} else {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// ListByDateRange yields papers submitted in the closed interval of UTC
// calendar dates [start, end] in the configured categories, newest first.
// Pages are fetched lazily; iteration stops at MaxResults, at the last
// page, or at the first error, which is yielded once.
func (c *Client) ListByDateRange(ctx context.Context, start, end time.Time) iter.Seq2[types.RawPaper, error] {
	return func(yield func(types.RawPaper, error) bool) {
		if len(c.cfg.Categories) == 0 {
			yield(types.RawPaper{}, fmt.Errorf("no categories configured"))
			return
		}
		query := buildDateQuery(c.cfg.Categories, start, end)
		first, last := types.DateOf(start), types.DateOf(end)

		emitted := 0
		for offset := 0; offset < c.cfg.MaxResults; offset += c.cfg.PageSize {
			size := min(c.cfg.PageSize, c.cfg.MaxResults-offset)
			params := url.Values{
				"search_query": {query},
				"start":        {strconv.Itoa(offset)},
				"max_results":  {strconv.Itoa(size)},
				"sortBy":       {"submittedDate"},
				"sortOrder":    {"descending"},
			}
			page, err := c.fetch(ctx, params)
			if err != nil {
				yield(types.RawPaper{}, err)
				return
			}
			c.logger.Debug("fetched arXiv page", "start", offset, "entries", len(page))

			for _, p := range page {
				day := types.DateOf(p.Published)
				if day.Before(first) || day.After(last) {
					continue
				}
				if !yield(p, nil) {
					return
				}
				emitted++
			}
			if len(page) < size {
				return
			}
		}
		c.logger.Debug("arXiv listing reached max results", "emitted", emitted, "max", c.cfg.MaxResults)
	}
}

// GetByID fetches a single paper. idOrURL may be any form ExtractID
// accepts.
func (c *Client) GetByID(ctx context.Context, idOrURL string) (types.RawPaper, error) {
	id, ok := ExtractID(idOrURL)
	if !ok {
		return types.RawPaper{}, fmt.Errorf("%q: %w", idOrURL, types.ErrInvalidIdentifier)
	}

	page, err := c.fetch(ctx, url.Values{"id_list": {id}, "max_results": {"1"}})
	if err != nil {
		return types.RawPaper{}, err
	}
	for _, p := range page {
		if p.ID == id {
			return p, nil
		}
	}
	return types.RawPaper{}, fmt.Errorf("arXiv %s: %w", id, types.ErrNotFound)
}

// fetch performs one API request and parses the feed. Every failure is
// wrapped with ErrSourceUnavailable.
func (c *Client) fetch(ctx context.Context, params url.Values) ([]types.RawPaper, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w: %w", types.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 3)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w: %w", types.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("arXiv API returned HTTP %d: %w", resp.StatusCode, types.ErrSourceUnavailable)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w: %w", types.ErrSourceUnavailable, err)
	}
	return convertFeed(feed), nil
}

// buildDateQuery constructs the search_query for a category set and date
// range, e.g. "(cat:cs.CV OR cat:cs.CL) AND submittedDate:[202402030000 TO 202402032359]".
func buildDateQuery(cats []string, start, end time.Time) string {
	terms := make([]string, len(cats))
	for i, c := range cats {
		terms[i] = "cat:" + c
	}
	from := types.DateOf(start).Format(submittedLayout)
	to := types.DateOf(end).Add(23*time.Hour + 59*time.Minute).Format(submittedLayout)
	return fmt.Sprintf("(%s) AND submittedDate:[%s TO %s]", strings.Join(terms, " OR "), from, to)
}

// convertFeed maps feed items to raw records. Error entries, which the
// API returns for malformed id_list values, and entries without a
// recognizable identifier are dropped.
func convertFeed(feed *gofeed.Feed) []types.RawPaper {
	var out []types.RawPaper
	for _, item := range feed.Items {
		if strings.Contains(item.GUID, "/api/errors") {
			continue
		}
		id, ok := ExtractID(item.GUID)
		if !ok {
			continue
		}

		p := types.RawPaper{
			ID:              id,
			Title:           item.Title,
			Abstract:        strings.TrimSpace(item.Description),
			PrimaryCategory: primaryCategory(item),
			Categories:      item.Categories,
			PDFURL:          pdfLink(item, id),
		}
		for _, a := range item.Authors {
			if a != nil {
				p.Authors = append(p.Authors, a.Name)
			}
		}
		switch {
		case item.PublishedParsed != nil:
			p.Published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			p.Published = item.UpdatedParsed.UTC()
		}
		out = append(out, p)
	}
	return out
}

// primaryCategory reads the arxiv:primary_category extension element.
func primaryCategory(item *gofeed.Item) string {
	ext, ok := item.Extensions["arxiv"]
	if !ok {
		return ""
	}
	for _, e := range ext["primary_category"] {
		if term := e.Attrs["term"]; term != "" {
			return term
		}
	}
	return ""
}

// pdfLink picks the entry's PDF link or derives one from id.
func pdfLink(item *gofeed.Item, id string) string {
	for _, l := range item.Links {
		if strings.Contains(l, "/pdf/") {
			return strings.Replace(l, "http://", "https://", 1)
		}
	}
	return PDFURL(id)
}
