package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rankpulse/rankpulse/app/analytics"
	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/metrics"
	"github.com/rankpulse/rankpulse/app/providers"
	"github.com/rankpulse/rankpulse/app/serp"
)

// Result summarizes one pull: how many keywords produced an observation and
// how many failed after retries.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Pipeline ingests rank observations for a project's active keywords. Each
// keyword runs in its own goroutine; the shared fetcher caps how many
// provider calls are actually in flight.
type Pipeline struct {
	fetcher    *providers.Fetcher
	ranking    providers.RankingProvider
	volume     providers.VolumeProvider
	httpClient *http.Client

	projects database.ProjectRepository
	keywords database.KeywordRepository
	serpRepo database.SerpRepository
	gscRepo  database.GSCRepository

	now func() time.Time
}

func New(fetcher *providers.Fetcher, ranking providers.RankingProvider, volume providers.VolumeProvider,
	httpClient *http.Client, projects database.ProjectRepository, keywords database.KeywordRepository,
	serpRepo database.SerpRepository, gscRepo database.GSCRepository) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		ranking:    ranking,
		volume:     volume,
		httpClient: httpClient,
		projects:   projects,
		keywords:   keywords,
		serpRepo:   serpRepo,
		gscRepo:    gscRepo,
		now:        time.Now,
	}
}

// Run pulls rankings for every active keyword of a project, optionally
// restricted to a tag. One keyword's failure never aborts the others; an
// observation row is appended for each success, unranked keywords included.
func (p *Pipeline) Run(ctx context.Context, projectID, tagID int64) (*Result, error) {
	project, err := p.projects.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %d: %w", projectID, analytics.ErrNotFound)
	}

	keywords, err := p.keywords.GetActiveKeywords(projectID, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords: %w", err)
	}

	if len(keywords) == 0 {
		slog.Debug("No active keywords to pull", "project", project.Name, "tag_id", tagID)
		return &Result{}, nil
	}

	var processed, failed int64
	var wg sync.WaitGroup

	for _, keyword := range keywords {
		wg.Add(1)
		go func(keyword database.Keyword) {
			defer wg.Done()

			if err := p.processKeyword(ctx, project, keyword); err != nil {
				atomic.AddInt64(&failed, 1)
				slog.Error("Failed to process keyword", "project", project.Name, "keyword", keyword.Keyword, "error", err)
				return
			}
			atomic.AddInt64(&processed, 1)
		}(keyword)
	}

	wg.Wait()

	result := &Result{
		Processed: int(atomic.LoadInt64(&processed)),
		Failed:    int(atomic.LoadInt64(&failed)),
	}

	outcome := "success"
	if result.Failed > 0 {
		outcome = "partial"
	}
	metrics.RecordPull(outcome, len(keywords))

	return result, nil
}

// RunKeyword pulls rankings for a single keyword immediately, outside any
// scheduled cadence.
func (p *Pipeline) RunKeyword(ctx context.Context, keywordID int64) error {
	keyword, err := p.keywords.GetKeyword(keywordID)
	if err != nil {
		return fmt.Errorf("failed to get keyword: %w", err)
	}
	if keyword == nil {
		return fmt.Errorf("keyword %d: %w", keywordID, analytics.ErrNotFound)
	}

	project, err := p.projects.GetProject(keyword.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %d: %w", keyword.ProjectID, analytics.ErrNotFound)
	}

	return p.processKeyword(ctx, project, *keyword)
}

func (p *Pipeline) processKeyword(ctx context.Context, project *database.Project, keyword database.Keyword) error {
	now := p.now()

	volume := p.resolveVolume(ctx, keyword, now)

	var resp *providers.RankingResponse
	start := time.Now()
	err := p.fetcher.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = p.ranking.FetchRankings(ctx, keyword.Keyword)
		return fetchErr
	})
	if err != nil {
		metrics.RecordFetch("ranking", "error", time.Since(start))
		return fmt.Errorf("failed to fetch rankings: %w", err)
	}
	metrics.RecordFetch("ranking", "success", time.Since(start))

	rank := serp.ResolveRank(resp.Results, project.Domain)

	if _, err := p.serpRepo.AddObservation(keyword.ID, now, rank, resp.Raw, volume); err != nil {
		return fmt.Errorf("failed to store observation: %w", err)
	}
	metrics.RecordObservation()

	slog.Debug("Keyword processed", "project", project.Name, "keyword", keyword.Keyword, "rank", rank, "volume", volume)

	return nil
}

// resolveVolume reuses the stored search volume while it is fresh and
// refreshes it through the volume provider once it passes the staleness
// window. A failed refresh falls back to the stored value; volume is
// enrichment, not a reason to lose the rank observation.
func (p *Pipeline) resolveVolume(ctx context.Context, keyword database.Keyword, now time.Time) int {
	if !analytics.IsStale(keyword.LastVolumeUpdate, now, analytics.VolumeMaxAgeDays) {
		return keyword.SearchVolume
	}

	var volume int
	start := time.Now()
	err := p.fetcher.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		volume, fetchErr = p.volume.FetchVolume(ctx, keyword.Keyword)
		return fetchErr
	})
	if err != nil {
		metrics.RecordFetch(p.volume.Name(), "error", time.Since(start))
		slog.Warn("Failed to refresh search volume, reusing stored value",
			"keyword", keyword.Keyword, "stored_volume", keyword.SearchVolume, "error", err)
		return keyword.SearchVolume
	}
	metrics.RecordFetch(p.volume.Name(), "success", time.Since(start))

	if err := p.keywords.UpdateSearchVolume(keyword.ID, volume, now); err != nil {
		slog.Warn("Failed to persist refreshed search volume", "keyword", keyword.Keyword, "error", err)
	}

	return volume
}

// SyncAnalytics pulls Search Console rows for a project and stores the ones
// whose query matches a tracked keyword. Best effort; callers treat a
// failure as a warning, not a pull failure.
func (p *Pipeline) SyncAnalytics(ctx context.Context, projectID int64, siteURL string, from, to time.Time) error {
	credentials, err := p.gscRepo.GetCredentials(projectID)
	if err != nil {
		return fmt.Errorf("failed to get analytics credentials: %w", err)
	}
	if credentials == "" {
		slog.Debug("No analytics credentials configured, skipping sync", "project_id", projectID)
		return nil
	}

	client, err := providers.NewGSCClient(p.httpClient, credentials)
	if err != nil {
		return fmt.Errorf("failed to build analytics client: %w", err)
	}

	keywords, err := p.keywords.GetKeywords(projectID)
	if err != nil {
		return fmt.Errorf("failed to get keywords: %w", err)
	}

	byQuery := make(map[string]int64, len(keywords))
	for _, keyword := range keywords {
		byQuery[strings.ToLower(keyword.Keyword)] = keyword.ID
	}

	var rows []providers.AnalyticsRow
	err = p.fetcher.Do(ctx, func(ctx context.Context) error {
		var fetchErr error
		rows, fetchErr = client.FetchRows(ctx, siteURL, database.FormatDate(from), database.FormatDate(to))
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("failed to fetch analytics rows: %w", err)
	}

	stored := 0
	for _, row := range rows {
		keywordID, ok := byQuery[strings.ToLower(row.Query)]
		if !ok {
			continue
		}

		err := p.gscRepo.AddRow(database.GSCRow{
			KeywordID:   keywordID,
			Date:        row.Date,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Position:    row.Position,
			Query:       row.Query,
			Page:        row.Page,
		})
		if err != nil {
			return fmt.Errorf("failed to store analytics row: %w", err)
		}
		stored++
	}

	slog.Info("Analytics rows synced", "project_id", projectID, "fetched", len(rows), "stored", stored)

	return nil
}
