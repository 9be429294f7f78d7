package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// maxPageBytes caps how much of a game page is read when looking for a
// preview image.
const maxPageBytes = 2 << 20

// thumbnailSelectors are tried in order; the first non-empty value wins.
var thumbnailSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image"]`, "content"},
	{`meta[property="og:image:url"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
}

// NeedsThumbnail reports whether e has no real thumbnail.
func NeedsThumbnail(e Entry) bool {
	return e.Thumbnail == "" || strings.Contains(e.Thumbnail, "placeholder")
}

// Enricher fills in missing thumbnails from the preview images that game
// pages advertise.
type Enricher struct {
	client      *http.Client
	userAgent   string
	concurrency int
	logger      *slog.Logger
}

// NewEnricher creates an Enricher. A nil client uses http.DefaultClient.
func NewEnricher(client *http.Client, userAgent string, logger *slog.Logger) *Enricher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Enricher{
		client:      client,
		userAgent:   userAgent,
		concurrency: 4,
		logger:      logger.With("component", "enricher"),
	}
}

// Thumbnail fetches pageURL and returns its preview image resolved to an
// absolute URL. It returns "" when the page advertises none.
func (en *Enricher) Thumbnail(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	if en.userAgent != "" {
		req.Header.Set("User-Agent", en.userAgent)
	}

	resp, err := en.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", base.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", base.Host, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	for _, s := range thumbnailSelectors {
		v, ok := doc.Find(s.selector).First().Attr(s.attr)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		ref, err := url.Parse(v)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		return abs.String(), nil
	}
	return "", nil
}

// Enrich returns a copy of entries with missing thumbnails filled in and the
// number of entries it updated. Per-entry failures are logged and leave the
// entry unchanged; only context cancellation is returned as an error.
func (en *Enricher) Enrich(ctx context.Context, entries []Entry) ([]Entry, int, error) {
	out := make([]Entry, len(entries))
	copy(out, entries)
	found := make([]bool, len(out))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(en.concurrency)
	for i := range out {
		if !NeedsThumbnail(out[i]) {
			continue
		}
		g.Go(func() error {
			thumb, err := en.Thumbnail(gctx, out[i].URL)
			if err != nil {
				en.logger.Warn("thumbnail lookup failed", "id", out[i].ID, "err", err)
				return nil
			}
			if thumb == "" {
				en.logger.Debug("page has no preview image", "id", out[i].ID)
				return nil
			}
			out[i].Thumbnail = thumb
			found[i] = true
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	updated := 0
	for _, ok := range found {
		if ok {
			updated++
		}
	}
	return out, updated, nil
}
