package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const gscQueryURL = "https://www.googleapis.com/webmasters/v3/sites/%s/searchAnalytics/query"

const gscRowLimit = 25000

// GSCClient fetches search analytics rows from the Google Search Console
// API using per-project OAuth credentials persisted alongside the project.
type GSCClient struct {
	tokenSource oauth2.TokenSource
	baseClient  *http.Client
}

// gscCredentials is the persisted credential document: an OAuth client plus
// the refresh token obtained during the one-time consent flow.
type gscCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// NewGSCClient builds a client from a stored credential JSON document.
// Malformed or incomplete documents fail with ErrInvalidConfiguration.
func NewGSCClient(httpClient *http.Client, credentialsJSON string) (*GSCClient, error) {
	var creds gscCredentials
	if err := json.Unmarshal([]byte(credentialsJSON), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse analytics credentials: %w", ErrInvalidConfiguration)
	}

	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, fmt.Errorf("analytics credentials are incomplete: %w", ErrInvalidConfiguration)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/webmasters.readonly"},
	}

	token := &oauth2.Token{RefreshToken: creds.RefreshToken}

	return &GSCClient{
		tokenSource: conf.TokenSource(context.Background(), token),
		baseClient:  httpClient,
	}, nil
}

var _ AnalyticsProvider = (*GSCClient)(nil)

// FetchRows queries date/query/page dimensioned rows for a verified site in
// [from, to], both YYYY-MM-DD inclusive. Pages through the API until a short
// batch signals the end.
func (c *GSCClient) FetchRows(ctx context.Context, siteURL, from, to string) ([]AnalyticsRow, error) {
	var rows []AnalyticsRow

	for startRow := 0; ; startRow += gscRowLimit {
		batch, err := c.fetchPage(ctx, siteURL, from, to, startRow)
		if err != nil {
			return nil, err
		}

		rows = append(rows, batch...)

		if len(batch) < gscRowLimit {
			return rows, nil
		}
	}
}

func (c *GSCClient) fetchPage(ctx context.Context, siteURL, from, to string, startRow int) ([]AnalyticsRow, error) {
	body, err := json.Marshal(map[string]any{
		"startDate":  from,
		"endDate":    to,
		"dimensions": []string{"date", "query", "page"},
		"rowLimit":   gscRowLimit,
		"startRow":   startRow,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analytics request: %w", err)
	}

	endpoint := fmt.Sprintf(gscQueryURL, url.PathEscape(siteURL))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh analytics token: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.baseClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analytics rows: %w", ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("HTTP %d from analytics provider: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return nil, fmt.Errorf("HTTP %d from analytics provider: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", ErrTransient)
	}

	var decoded struct {
		Rows []struct {
			Keys        []string `json:"keys"`
			Clicks      float64  `json:"clicks"`
			Impressions float64  `json:"impressions"`
			CTR         float64  `json:"ctr"`
			Position    float64  `json:"position"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse analytics response: %w", err)
	}

	rows := make([]AnalyticsRow, 0, len(decoded.Rows))
	for _, row := range decoded.Rows {
		if len(row.Keys) != 3 {
			continue
		}
		rows = append(rows, AnalyticsRow{
			Date:        row.Keys[0],
			Query:       row.Keys[1],
			Page:        row.Keys[2],
			Clicks:      int(row.Clicks),
			Impressions: int(row.Impressions),
			CTR:         row.CTR,
			Position:    row.Position,
		})
	}

	return rows, nil
}
