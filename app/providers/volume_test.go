package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestGrepwordsFetchVolume(t *testing.T) {
	var received map[string]string
	var apiKey, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api_key")
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.Write([]byte(`{"data":{"volume":3400}}`))
	}))
	defer server.Close()

	client := &GrepwordsClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		endpoint:   server.URL,
		country:    "us",
		language:   "en",
	}

	volume, err := client.FetchVolume(context.Background(), "blue widgets")
	if err != nil {
		t.Fatalf("Failed to fetch volume: %s", err)
	}

	if volume != 3400 {
		t.Errorf("Expected volume 3400, got %d", volume)
	}
	if apiKey != "test-key" {
		t.Errorf("Expected key in api_key header, got %q", apiKey)
	}
	if auth != "" {
		t.Errorf("Expected no Authorization header, got %q", auth)
	}
	if received["term"] != "blue widgets" || received["country"] != "us" || received["language"] != "en" {
		t.Errorf("Unexpected request body: %v", received)
	}
}

func TestGrepwordsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &GrepwordsClient{httpClient: server.Client(), apiKey: "k", endpoint: server.URL}

	_, err := client.FetchVolume(context.Background(), "widgets")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestDataForSEOParsesNestedResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "login" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"tasks":[{"result":[{"search_volume":880}]}]}`))
	}))
	defer server.Close()

	client := &DataForSEOClient{
		httpClient: server.Client(),
		login:      "login",
		password:   "secret",
		country:    "United States",
		language:   "en",
	}

	// Point the request at the test server through a rewriting transport.
	client.httpClient = &http.Client{Transport: rewriteTransport{target: server.URL}}

	volume, err := client.FetchVolume(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("Failed to fetch volume: %s", err)
	}
	if volume != 880 {
		t.Errorf("Expected volume 880, got %d", volume)
	}
}

func TestDisabledVolume(t *testing.T) {
	volume, err := DisabledVolume{}.FetchVolume(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("Expected no error, got %s", err)
	}
	if volume != 0 {
		t.Errorf("Expected zero volume, got %d", volume)
	}
}

type rewriteTransport struct {
	target string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten, err := http.NewRequestWithContext(req.Context(), req.Method, t.target, req.Body)
	if err != nil {
		return nil, err
	}
	rewritten.Header = req.Header
	return http.DefaultTransport.RoundTrip(rewritten)
}
