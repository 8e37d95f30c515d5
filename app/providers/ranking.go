package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rankpulse/rankpulse/app/cfg"
	"github.com/rankpulse/rankpulse/app/serp"
)

// SpaceSERPClient queries a SpaceSERP-compatible search API. Requests are
// paced by a token-bucket limiter and guarded by a circuit breaker so a
// provider outage fails fast instead of burning the retry budget of every
// keyword in a pull.
type SpaceSERPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]

	apiKey    string
	endpoint  string
	location  string
	domain    string
	country   string
	language  string
	device    string
	pageSize  int
	userAgent string
}

func NewSpaceSERPClient(httpClient *http.Client) (*SpaceSERPClient, error) {
	c := cfg.Get()

	if c.SerpAPIKey == "" {
		return nil, fmt.Errorf("ranking API key is not set: %w", ErrInvalidConfiguration)
	}
	if c.SerpEndpoint == "" {
		return nil, fmt.Errorf("ranking endpoint is not set: %w", ErrInvalidConfiguration)
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "ranking-provider",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &SpaceSERPClient{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		breaker:    breaker,
		apiKey:     c.SerpAPIKey,
		endpoint:   c.SerpEndpoint,
		location:   c.SerpLocation,
		domain:     c.SerpDomain,
		country:    c.SerpCountry,
		language:   c.SerpLanguage,
		device:     c.SerpDevice,
		pageSize:   c.SerpPageSize,
		userAgent:  c.UserAgent,
	}, nil
}

// FetchRankings retrieves the result page for a keyword. The raw body is
// returned untouched alongside the parsed organic results.
func (c *SpaceSERPClient) FetchRankings(ctx context.Context, keyword string) (*RankingResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, keyword)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("ranking provider unavailable: %w", ErrTransient)
		}
		return nil, err
	}

	results, err := serp.ParsePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ranking response: %w", err)
	}

	return &RankingResponse{Raw: raw, Results: results}, nil
}

func (c *SpaceSERPClient) fetch(ctx context.Context, keyword string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.requestURL(keyword), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rankings: %w", ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("HTTP %d from ranking provider: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return nil, fmt.Errorf("HTTP %d from ranking provider: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", ErrTransient)
	}

	return data, nil
}

func (c *SpaceSERPClient) requestURL(keyword string) string {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("q", keyword)
	params.Set("location", c.location)
	params.Set("domain", c.domain)
	params.Set("gl", c.country)
	params.Set("hl", c.language)
	params.Set("device", c.device)
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("resultFormat", "json")

	return c.endpoint + "?" + params.Encode()
}
