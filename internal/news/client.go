package news

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

// ErrNoHeadlines is returned when the home page has no matching links.
var ErrNoHeadlines = errors.New("no headlines found")

// Client talks to the news site. Requests are rate limited and go through
// HTTP_PROXY / HTTPS_PROXY when set.
type Client struct {
	config  tts.NewsConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// NewClient creates a client for the site described by config.
func NewClient(config tts.NewsConfig, opts ...Option) *Client {
	def := tts.DefaultNewsConfig()
	if config.HomeURL == "" {
		config.HomeURL = def.HomeURL
	}
	if config.Selector == "" {
		config.Selector = def.Selector
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment

	c := &Client{
		config:  config,
		http:    &http.Client{Transport: transport, Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  log.WithPrefix("news"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Headlines returns the news links on the home page in page order.
// Relative links are resolved and repeated URLs are dropped.
func (c *Client) Headlines(ctx context.Context) ([]tts.ContentItem, error) {
	base, err := url.Parse(c.config.HomeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid home url: %w", err)
	}

	doc, err := c.document(ctx, c.config.HomeURL)
	if err != nil {
		return nil, err
	}

	items := ParseHeadlines(doc, base, c.config.Selector)
	if len(items) == 0 {
		return nil, ErrNoHeadlines
	}
	c.logger.Debug("headlines loaded", "count", len(items))
	return items, nil
}

// Article returns the readable text of the page at pageURL.
func (c *Client) Article(ctx context.Context, pageURL string) (string, error) {
	doc, err := c.document(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return ArticleText(doc, c.config.Marker, c.config.MarkerSkip), nil
}

// Fetch implements tts.Fetcher. Identifiers that are not http(s) URLs are
// read as local files.
func (c *Client) Fetch(ctx context.Context, identifier string) (string, error) {
	var (
		text string
		err  error
	)
	if IsURL(identifier) {
		text, err = c.Article(ctx, identifier)
	} else {
		text, err = ReadFile(identifier)
	}
	if err != nil {
		return "", &tts.FetchError{Identifier: identifier, Err: err}
	}
	return text, nil
}

func (c *Client) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GET %s: %s", pageURL, resp.Status)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// IsURL reports whether s is an absolute http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
