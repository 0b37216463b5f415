// Package stac lists collections of a STAC catalog API.
package stac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"geoadmin-control/internal/domain"
)

// Provider is an organisation declared on a collection.
type Provider struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// Link is a STAC link object.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// Collection is a STAC collection. Its id matches a dataset id.
type Collection struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Providers []Provider `json:"providers,omitempty"`
	Links     []Link     `json:"links,omitempty"`
}

type collectionsPage struct {
	Collections []Collection `json:"collections"`
	Links       []Link       `json:"links"`
}

// Options configure a Client.
type Options struct {
	BaseURL    string
	RateLimit  float64 // requests per second; zero disables limiting
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client reads a STAC API through a rate limiter and a circuit breaker.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// statusError is a non-2xx answer of the API.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.url, e.code)
}

// New creates a Client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, domain.ErrValidation("invalid STAC url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	c := &Client{
		base:    base,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "stac"),
	}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "stac-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors are answers, not outages.
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || (errors.As(err, &se) && se.code < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// Collections returns every collection, following rel=next links.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	next := c.base.JoinPath("collections").String()
	seen := map[string]bool{}
	var out []Collection
	for next != "" {
		if seen[next] {
			return nil, fmt.Errorf("pagination loop at %s", next)
		}
		seen[next] = true

		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		var page collectionsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode %s: %w", next, err)
		}
		out = append(out, page.Collections...)

		if next, err = c.nextLink(next, page.Links); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) nextLink(current string, links []Link) (string, error) {
	for _, l := range links {
		if l.Rel != "next" || l.Href == "" {
			continue
		}
		cur, err := url.Parse(current)
		if err != nil {
			return "", err
		}
		ref, err := url.Parse(l.Href)
		if err != nil {
			return "", fmt.Errorf("parse next link %q: %w", l.Href, err)
		}
		return cur.ResolveReference(ref).String(), nil
	}
	return "", nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{code: resp.StatusCode, url: target}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return nil, err
		}
		return nil, domain.ErrUnavailable("stac", err)
	}
	return body, nil
}
