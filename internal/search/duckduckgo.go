package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/safeguard/internal/util"
)

const duckDuckGoName = "duckduckgo"

// DuckDuckGoSearcher scrapes the DuckDuckGo HTML endpoint
type DuckDuckGoSearcher struct {
	baseURL    string
	num        int
	userAgent  string
	maxBody    int64
	httpClient *http.Client
	robots     *util.RobotsChecker
	logger     *slog.Logger
}

// DuckDuckGoOptions configures the HTML scraper
type DuckDuckGoOptions struct {
	BaseURL      string
	Results      int
	UserAgent    string
	MaxBodyBytes int64
	Client       *http.Client
	Robots       *util.RobotsChecker // nil skips the robots.txt check
	Logger       *slog.Logger
}

// NewDuckDuckGoSearcher creates the fallback searcher
func NewDuckDuckGoSearcher(opts DuckDuckGoOptions) *DuckDuckGoSearcher {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://html.duckduckgo.com/html/"
	}
	if opts.Results <= 0 {
		opts.Results = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 * 1024 * 1024
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &DuckDuckGoSearcher{
		baseURL:    opts.BaseURL,
		num:        opts.Results,
		userAgent:  opts.UserAgent,
		maxBody:    opts.MaxBodyBytes,
		httpClient: opts.Client,
		robots:     opts.Robots,
		logger:     opts.Logger.With("component", "search", "provider", duckDuckGoName),
	}
}

// Name returns the provider name
func (d *DuckDuckGoSearcher) Name() string {
	return duckDuckGoName
}

// Search fetches the HTML result page and parses organic results
func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	searchURL := d.baseURL + "?" + url.Values{"q": {query}}.Encode()

	if d.robots != nil && !d.robots.IsAllowed(ctx, searchURL) {
		return nil, fmt.Errorf("duckduckgo: disallowed by robots.txt")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, d.maxBody))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	base, _ := url.Parse(d.baseURL)
	results := parseResults(doc, base)
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	d.logger.DebugContext(ctx, "parsed results", "count", len(results))
	return rankResults(results, d.num), nil
}

// parseResults walks div.result containers, skipping ads
func parseResults(doc *html.Node, base *url.URL) []Result {
	var results []Result
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if hasClass(n, "result") && !hasClass(n, "result--ad") {
			if r, ok := parseResult(n, base); ok && !seen[r.URL] {
				seen[r.URL] = true
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return results
}

func parseResult(container *html.Node, base *url.URL) (Result, bool) {
	var r Result

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case r.URL == "" && hasClass(n, "result__a"):
			r.URL = resolveResultURL(base, attr(n, "href"))
			r.Title = nodeText(n)
		case r.Snippet == "" && hasClass(n, "result__snippet"):
			r.Snippet = nodeText(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(container)

	return r, r.URL != ""
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg= redirect links and drops
// anything that still points back at DuckDuckGo (ads, internal links).
func resolveResultURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		parsed, err = url.Parse(target)
		if err != nil {
			return ""
		}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if base != nil && parsed.Host == base.Host {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(parsed.Hostname()), "duckduckgo.com") {
		return ""
	}

	return parsed.String()
}

func hasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range strings.Fields(attr(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
