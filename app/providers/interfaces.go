package providers

import (
	"context"

	"github.com/rankpulse/rankpulse/app/serp"
)

// RankingResponse carries both the opaque provider payload, persisted as-is,
// and the typed projection used for rank resolution.
type RankingResponse struct {
	Raw     []byte
	Results []serp.Result
}

// RankingProvider fetches the result page for a keyword query.
type RankingProvider interface {
	FetchRankings(ctx context.Context, keyword string) (*RankingResponse, error)
}

// VolumeProvider fetches the monthly search volume for a keyword.
type VolumeProvider interface {
	FetchVolume(ctx context.Context, keyword string) (int, error)
	Name() string
}

// AnalyticsRow is one date/query/page row from a search analytics provider.
type AnalyticsRow struct {
	Date        string
	Query       string
	Page        string
	Clicks      int
	Impressions int
	CTR         float64
	Position    float64
}

// AnalyticsProvider fetches click/impression rows for a verified site.
type AnalyticsProvider interface {
	FetchRows(ctx context.Context, siteURL, from, to string) ([]AnalyticsRow, error)
}
