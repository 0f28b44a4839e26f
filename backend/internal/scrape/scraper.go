package scrape

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"knowledge-base/backend/internal/constants"
	apperrors "knowledge-base/backend/pkg/errors"
	"knowledge-base/backend/pkg/logger"
)

// Page is what the scraper extracts from a fetched URL
type Page struct {
	URL         string
	Domain      string
	Title       string
	Description string
	Content     string
	HTMLContent string
	Favicon     string
	Image       string
}

// Scraper fetches pages that pass its policy and extracts their metadata
type Scraper struct {
	policy     Policy
	httpClient *http.Client
	logger     *zap.Logger
}

// NewScraper creates a scraper. Every request, redirect and dialed address
// is checked against policy.
func NewScraper(policy Policy, timeout time.Duration) *Scraper {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || !policy.AllowIP(ip) {
				return fmt.Errorf("connection to %s refused by policy", host)
			}
			return nil
		},
	}

	return &Scraper{
		policy: policy,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               nil,
				DialContext:         dialer.DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= constants.MaxScrapeRedirects {
					return fmt.Errorf("stopped after %d redirects", constants.MaxScrapeRedirects)
				}
				_, err := policy.Validate(req.URL.String())
				return err
			},
		},
		logger: logger.Named("scrape"),
	}
}

// Validate checks raw against the scraper's policy without fetching it
func (s *Scraper) Validate(raw string) (*url.URL, error) {
	return s.policy.Validate(raw)
}

// Scrape fetches raw and extracts its title, description, text content,
// favicon and preview image.
func (s *Scraper) Scrape(ctx context.Context, raw string) (*Page, error) {
	u, err := s.policy.Validate(raw)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperrors.NewScrapeFailed(raw, err)
	}
	req.Header.Set("User-Agent", constants.ScrapeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewContextCancelled("scrape", ctx.Err())
		}
		return nil, apperrors.NewScrapeFailed(raw, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewScrapeFailed(raw, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxScrapeBodyBytes))
	if err != nil {
		return nil, apperrors.NewScrapeFailed(raw, err)
	}

	// Relative links resolve against where the redirects ended up
	final := resp.Request.URL
	page, err := ParsePage(final, string(body))
	if err != nil {
		return nil, apperrors.NewScrapeFailed(raw, err)
	}
	page.URL = u.String()
	page.Domain = u.Hostname()

	s.logger.Info("Page scraped",
		zap.String("url", page.URL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	return page, nil
}

// ParsePage extracts page metadata from an HTML document fetched from base
func ParsePage(base *url.URL, src string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	page := &Page{
		URL:         base.String(),
		Domain:      base.Hostname(),
		HTMLContent: src,
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Favicon:     extractFavicon(doc, base),
		Image:       extractImage(doc),
	}
	// Content extraction removes nodes, so it runs last
	page.Content = extractContent(doc)
	return page, nil
}

// metaContent returns the first non-empty content attribute among selectors
func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractTitle(doc *goquery.Document) string {
	if title := metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	return metaContent(doc,
		`meta[property="og:description"]`,
		`meta[name="description"]`,
		`meta[name="twitter:description"]`,
	)
}

func extractImage(doc *goquery.Document) string {
	return metaContent(doc, `meta[property="og:image"]`, `meta[name="twitter:image"]`)
}

func extractFavicon(doc *goquery.Document, base *url.URL) string {
	for _, sel := range []string{`link[rel~="icon"]`, `link[rel="apple-touch-icon"]`} {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			return resolve(base, strings.TrimSpace(href))
		}
	}
	return base.Scheme + "://" + base.Host + "/favicon.ico"
}

func extractContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, noscript").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(blockText(root), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// blockText joins the text nodes under sel with newlines
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			b.WriteString(child.Text())
			b.WriteByte('\n')
			return
		}
		b.WriteString(blockText(child))
	})
	return b.String()
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
