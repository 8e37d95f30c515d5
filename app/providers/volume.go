package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rankpulse/rankpulse/app/cfg"
)

// NewVolumeProvider builds the configured search volume strategy. Supported
// providers are "grepwords", "dataforseo" and "disabled".
func NewVolumeProvider(httpClient *http.Client) (VolumeProvider, error) {
	c := cfg.Get()

	switch c.VolumeProvider {
	case "grepwords", "":
		if c.GrepwordsAPIKey == "" {
			return nil, fmt.Errorf("grepwords API key is not set: %w", ErrInvalidConfiguration)
		}
		return &GrepwordsClient{
			httpClient: httpClient,
			apiKey:     c.GrepwordsAPIKey,
			endpoint:   c.GrepwordsEndpoint,
			country:    c.VolumeCountry,
			language:   c.VolumeLanguage,
			userAgent:  c.UserAgent,
		}, nil
	case "dataforseo":
		if c.DataForSEOLogin == "" || c.DataForSEOPassword == "" {
			return nil, fmt.Errorf("dataforseo credentials are not set: %w", ErrInvalidConfiguration)
		}
		return &DataForSEOClient{
			httpClient: httpClient,
			login:      c.DataForSEOLogin,
			password:   c.DataForSEOPassword,
			country:    c.VolumeCountry,
			language:   c.VolumeLanguage,
			userAgent:  c.UserAgent,
		}, nil
	case "disabled":
		return DisabledVolume{}, nil
	default:
		return nil, fmt.Errorf("unknown volume provider %q: %w", c.VolumeProvider, ErrInvalidConfiguration)
	}
}

// GrepwordsClient fetches monthly search volume from the Grepwords API.
type GrepwordsClient struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	country    string
	language   string
	userAgent  string
}

var _ VolumeProvider = (*GrepwordsClient)(nil)

func (c *GrepwordsClient) Name() string {
	return "grepwords"
}

func (c *GrepwordsClient) FetchVolume(ctx context.Context, keyword string) (int, error) {
	body, err := json.Marshal(map[string]string{
		"term":     keyword,
		"country":  c.country,
		"language": c.language,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode volume request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Grepwords takes the key in a bare api_key header, not Authorization
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("api_key", c.apiKey)

	data, err := doVolumeRequest(c.httpClient, req)
	if err != nil {
		return 0, err
	}

	var decoded struct {
		Data struct {
			Volume int `json:"volume"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return 0, fmt.Errorf("failed to parse volume response: %w", err)
	}

	return decoded.Data.Volume, nil
}

// DataForSEOClient fetches monthly search volume from the DataForSEO live
// endpoint using basic auth.
type DataForSEOClient struct {
	httpClient *http.Client
	login      string
	password   string
	country    string
	language   string
	userAgent  string
}

var _ VolumeProvider = (*DataForSEOClient)(nil)

const dataForSEOEndpoint = "https://api.dataforseo.com/v3/keywords_data/google_ads/search_volume/live"

func (c *DataForSEOClient) Name() string {
	return "dataforseo"
}

func (c *DataForSEOClient) FetchVolume(ctx context.Context, keyword string) (int, error) {
	body, err := json.Marshal([]map[string]any{{
		"keywords":      []string{keyword},
		"location_name": c.country,
		"language_code": c.language,
	}})
	if err != nil {
		return 0, fmt.Errorf("failed to encode volume request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", dataForSEOEndpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.login, c.password)

	data, err := doVolumeRequest(c.httpClient, req)
	if err != nil {
		return 0, err
	}

	var decoded struct {
		Tasks []struct {
			Result []struct {
				SearchVolume int `json:"search_volume"`
			} `json:"result"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return 0, fmt.Errorf("failed to parse volume response: %w", err)
	}

	if len(decoded.Tasks) == 0 || len(decoded.Tasks[0].Result) == 0 {
		return 0, nil
	}

	return decoded.Tasks[0].Result[0].SearchVolume, nil
}

// DisabledVolume reports zero volume for every keyword. Used when no volume
// provider is configured; observations still record ranks.
type DisabledVolume struct{}

var _ VolumeProvider = DisabledVolume{}

func (DisabledVolume) Name() string {
	return "disabled"
}

func (DisabledVolume) FetchVolume(ctx context.Context, keyword string) (int, error) {
	return 0, nil
}

func doVolumeRequest(httpClient *http.Client, req *http.Request) ([]byte, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volume: %w", ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("HTTP %d from volume provider: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return nil, fmt.Errorf("HTTP %d from volume provider: %w", resp.StatusCode, ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", ErrTransient)
	}

	return data, nil
}
