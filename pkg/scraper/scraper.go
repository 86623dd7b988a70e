package scraper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/speechbuddy/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	MaxDepth          int     // 0 loads only the given page
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
	Logger            *zap.Logger
}

// Scraper loads HTML pages as documents, following same-host links up to
// MaxDepth.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth cannot be negative")
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		log:     config.Logger,
	}, nil
}

// Load satisfies types.Loader.
func (s *Scraper) Load(ctx context.Context, source string) ([]models.Document, error) {
	return s.Scrape(ctx, source)
}

func (s *Scraper) Scrape(ctx context.Context, rawURL string) ([]models.Document, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	run := &crawl{
		Scraper:  s,
		baseHost: base.Host,
		visited:  make(map[string]bool),
	}
	if err := run.scrapeRecursive(ctx, rawURL, 0); err != nil {
		return nil, err
	}
	return run.documents, nil
}

// crawl holds the state of one Scrape call.
type crawl struct {
	*Scraper
	baseHost  string
	visited   map[string]bool
	documents []models.Document
}

func (c *crawl) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != c.baseHost {
		return false
	}

	ext := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range c.config.AllowedExtensions {
		if strings.HasSuffix(ext, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range c.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

func (c *crawl) scrapeRecursive(ctx context.Context, urlStr string, depth int) error {
	if depth > c.config.MaxDepth || c.visited[urlStr] {
		return nil
	}

	// the root page is always fetched, filters only apply to followed links
	if depth > 0 && !c.shouldProcessURL(urlStr) {
		return nil
	}

	c.visited[urlStr] = true
	if c.config.OnProgress != nil {
		c.config.OnProgress(urlStr)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	sum := sha1.Sum([]byte(urlStr))
	c.documents = append(c.documents, models.Document{
		ID:      hex.EncodeToString(sum[:8]),
		URL:     urlStr,
		Title:   strings.TrimSpace(doc.Find("title").Text()),
		Content: extractMainContent(doc),
		Metadata: map[string]interface{}{
			"depth":        depth,
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	})

	if depth == c.config.MaxDepth {
		return nil
	}

	base, err := url.Parse(urlStr)
	if err != nil {
		return err
	}
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}

		link, err := url.Parse(href)
		if err != nil {
			c.log.Debug("skipping unparsable link", zap.String("href", href), zap.Error(err))
			return
		}
		link = base.ResolveReference(link)
		link.Fragment = ""

		if err := c.scrapeRecursive(ctx, link.String(), depth+1); err != nil {
			c.log.Warn("error scraping url", zap.String("url", link.String()), zap.Error(err))
		}
	})

	return nil
}
