package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rankpulse/rankpulse/app/analytics"
	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/metrics"
	"github.com/rankpulse/rankpulse/app/providers"
	"github.com/rankpulse/rankpulse/app/serp"
)

const acmePayload = `{"organic_results":[
	{"position":1,"link":"https://rival.com/page","domain":"rival.com"},
	{"position":2,"link":"https://www.acme.com/products","domain":"acme.com"}
]}`

const noAcmePayload = `{"organic_results":[
	{"position":1,"link":"https://rival.com/page","domain":"rival.com"}
]}`

// Interface-embedding stubs: only the methods a test exercises are
// implemented, anything else panics loudly.

type stubProjects struct {
	database.ProjectRepository
	project *database.Project
}

func (s *stubProjects) GetProject(id int64) (*database.Project, error) {
	if s.project != nil && s.project.ID == id {
		return s.project, nil
	}
	return nil, nil
}

type stubKeywords struct {
	database.KeywordRepository
	active        []database.Keyword
	mu            sync.Mutex
	volumeUpdates map[int64]int
}

func (s *stubKeywords) GetActiveKeywords(projectID, tagID int64) ([]database.Keyword, error) {
	return s.active, nil
}

func (s *stubKeywords) GetKeyword(id int64) (*database.Keyword, error) {
	for _, keyword := range s.active {
		if keyword.ID == id {
			return &keyword, nil
		}
	}
	return nil, nil
}

func (s *stubKeywords) UpdateSearchVolume(keywordID int64, volume int, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volumeUpdates == nil {
		s.volumeUpdates = make(map[int64]int)
	}
	s.volumeUpdates[keywordID] = volume
	return nil
}

type storedObservation struct {
	keywordID int64
	rank      int
	volume    int
	payload   []byte
}

type stubSerp struct {
	database.SerpRepository
	mu     sync.Mutex
	stored []storedObservation
}

func (s *stubSerp) AddObservation(keywordID int64, date time.Time, rank int, fullData []byte, searchVolume int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, storedObservation{keywordID, rank, searchVolume, fullData})
	return int64(len(s.stored)), nil
}

func (s *stubSerp) observations() []storedObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storedObservation(nil), s.stored...)
}

type rankingFunc func(ctx context.Context, keyword string) (*providers.RankingResponse, error)

func (f rankingFunc) FetchRankings(ctx context.Context, keyword string) (*providers.RankingResponse, error) {
	return f(ctx, keyword)
}

type volumeStub struct {
	volume int
	err    error
	mu     sync.Mutex
	calls  int
}

func (v *volumeStub) FetchVolume(ctx context.Context, keyword string) (int, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.volume, v.err
}

func (v *volumeStub) Name() string { return "stub" }

func (v *volumeStub) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func rankingFromPayload(payload string) rankingFunc {
	return func(ctx context.Context, keyword string) (*providers.RankingResponse, error) {
		raw := []byte(payload)
		results, err := serp.ParsePayload(raw)
		if err != nil {
			return nil, err
		}
		return &providers.RankingResponse{Raw: raw, Results: results}, nil
	}
}

func newTestPipeline(ranking providers.RankingProvider, volume providers.VolumeProvider,
	keywords *stubKeywords, serpRepo *stubSerp) *Pipeline {
	fetcher := providers.NewFetcher(3, 0, time.Millisecond)
	projects := &stubProjects{
		project: &database.Project{ID: 1, Name: "Acme", Domain: "acme.com", Active: true},
	}
	return New(fetcher, ranking, volume, nil, projects, keywords, serpRepo, nil)
}

func TestRunRecordsRankedObservation(t *testing.T) {
	keywords := &stubKeywords{
		active: []database.Keyword{{ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true}},
	}
	serpRepo := &stubSerp{}
	volume := &volumeStub{volume: 3400}

	p := newTestPipeline(rankingFromPayload(acmePayload), volume, keywords, serpRepo)

	result, err := p.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}

	if result.Processed != 1 || result.Failed != 0 {
		t.Errorf("Expected 1 processed / 0 failed, got %d / %d", result.Processed, result.Failed)
	}

	stored := serpRepo.observations()
	if len(stored) != 1 {
		t.Fatalf("Expected 1 observation, got %d", len(stored))
	}
	if stored[0].rank != 2 {
		t.Errorf("Expected rank 2, got %d", stored[0].rank)
	}
	if stored[0].volume != 3400 {
		t.Errorf("Expected refreshed volume 3400, got %d", stored[0].volume)
	}
	if len(stored[0].payload) == 0 {
		t.Error("Expected raw payload stored with the observation")
	}

	if keywords.volumeUpdates[10] != 3400 {
		t.Errorf("Expected volume update persisted, got %v", keywords.volumeUpdates)
	}
}

func TestRunRecordsUnrankedObservation(t *testing.T) {
	keywords := &stubKeywords{
		active: []database.Keyword{{ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true}},
	}
	serpRepo := &stubSerp{}

	p := newTestPipeline(rankingFromPayload(noAcmePayload), &volumeStub{}, keywords, serpRepo)

	result, err := p.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}

	if result.Processed != 1 {
		t.Errorf("Expected unranked keyword to count as processed, got %+v", result)
	}

	stored := serpRepo.observations()
	if len(stored) != 1 || stored[0].rank != -1 {
		t.Errorf("Expected a single observation with rank -1, got %+v", stored)
	}
}

func TestRunReusesFreshVolume(t *testing.T) {
	recent := database.FormatTime(time.Now().AddDate(0, 0, -5))
	keywords := &stubKeywords{
		active: []database.Keyword{{
			ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true,
			SearchVolume: 2100, LastVolumeUpdate: recent,
		}},
	}
	serpRepo := &stubSerp{}
	volume := &volumeStub{volume: 9999}

	p := newTestPipeline(rankingFromPayload(acmePayload), volume, keywords, serpRepo)

	if _, err := p.Run(context.Background(), 1, 0); err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}

	if volume.callCount() != 0 {
		t.Errorf("Expected no volume fetch for fresh data, got %d calls", volume.callCount())
	}

	stored := serpRepo.observations()
	if len(stored) != 1 || stored[0].volume != 2100 {
		t.Errorf("Expected stored volume 2100 reused, got %+v", stored)
	}
}

func TestRunKeepsObservationWhenVolumeFails(t *testing.T) {
	keywords := &stubKeywords{
		active: []database.Keyword{{
			ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true, SearchVolume: 500,
		}},
	}
	serpRepo := &stubSerp{}
	volume := &volumeStub{err: errors.New("volume provider down")}

	p := newTestPipeline(rankingFromPayload(acmePayload), volume, keywords, serpRepo)

	result, err := p.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}

	if result.Processed != 1 || result.Failed != 0 {
		t.Errorf("Expected volume failure to be tolerated, got %+v", result)
	}

	stored := serpRepo.observations()
	if len(stored) != 1 || stored[0].volume != 500 {
		t.Errorf("Expected stored volume fallback 500, got %+v", stored)
	}
}

func TestRunContainsKeywordFailures(t *testing.T) {
	keywords := &stubKeywords{
		active: []database.Keyword{
			{ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true},
			{ID: 11, ProjectID: 1, Keyword: "red widgets", Active: true},
		},
	}
	serpRepo := &stubSerp{}

	ranking := rankingFunc(func(ctx context.Context, keyword string) (*providers.RankingResponse, error) {
		if keyword == "red widgets" {
			return nil, fmt.Errorf("provider rejected query")
		}
		return rankingFromPayload(acmePayload)(ctx, keyword)
	})

	p := newTestPipeline(ranking, &volumeStub{}, keywords, serpRepo)

	result, err := p.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}

	if result.Processed != 1 || result.Failed != 1 {
		t.Errorf("Expected 1 processed / 1 failed, got %d / %d", result.Processed, result.Failed)
	}
	if len(serpRepo.observations()) != 1 {
		t.Errorf("Expected only the successful keyword stored, got %d", len(serpRepo.observations()))
	}
}

type slowVolume struct {
	delay  time.Duration
	volume int
}

func (v slowVolume) FetchVolume(ctx context.Context, keyword string) (int, error) {
	time.Sleep(v.delay)
	return v.volume, nil
}

func (v slowVolume) Name() string { return "slow" }

// rankingFetchSeconds reads the accumulated ranking fetch latency from the
// registered histogram.
func rankingFetchSeconds(t *testing.T) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %s", err)
	}

	for _, family := range families {
		if family.GetName() != "rankpulse_provider_fetch_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "provider" && label.GetValue() == "ranking" {
					return metric.GetHistogram().GetSampleSum()
				}
			}
		}
	}
	return 0
}

func TestRankingFetchMetricExcludesVolumeLatency(t *testing.T) {
	metrics.Init()

	keywords := &stubKeywords{
		active: []database.Keyword{{ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true}},
	}
	serpRepo := &stubSerp{}

	p := newTestPipeline(rankingFromPayload(acmePayload), slowVolume{delay: 120 * time.Millisecond, volume: 10}, keywords, serpRepo)

	before := rankingFetchSeconds(t)
	if _, err := p.Run(context.Background(), 1, 0); err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}
	delta := rankingFetchSeconds(t) - before

	if delta > 0.1 {
		t.Errorf("Expected ranking fetch latency without the volume lookup, recorded %.3fs", delta)
	}
}

func TestRunKeywordSingleFetch(t *testing.T) {
	keywords := &stubKeywords{
		active: []database.Keyword{{ID: 10, ProjectID: 1, Keyword: "blue widgets", Active: true}},
	}
	serpRepo := &stubSerp{}
	volume := &volumeStub{volume: 3400}

	p := newTestPipeline(rankingFromPayload(acmePayload), volume, keywords, serpRepo)

	if err := p.RunKeyword(context.Background(), 10); err != nil {
		t.Fatalf("Failed to fetch keyword: %s", err)
	}

	stored := serpRepo.observations()
	if len(stored) != 1 || stored[0].rank != 2 {
		t.Errorf("Expected a single observation with rank 2, got %+v", stored)
	}
}

func TestRunKeywordUnknown(t *testing.T) {
	p := newTestPipeline(rankingFromPayload(acmePayload), &volumeStub{}, &stubKeywords{}, &stubSerp{})

	err := p.RunKeyword(context.Background(), 999)
	if !errors.Is(err, analytics.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown keyword, got %v", err)
	}
}

func TestRunUnknownProject(t *testing.T) {
	p := newTestPipeline(rankingFromPayload(acmePayload), &volumeStub{}, &stubKeywords{}, &stubSerp{})

	_, err := p.Run(context.Background(), 999, 0)
	if !errors.Is(err, analytics.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown project, got %v", err)
	}
}

func TestRunEmptyKeywordSet(t *testing.T) {
	serpRepo := &stubSerp{}
	p := newTestPipeline(rankingFromPayload(acmePayload), &volumeStub{}, &stubKeywords{}, serpRepo)

	result, err := p.Run(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Failed to run pull: %s", err)
	}

	if result.Processed != 0 || result.Failed != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
	if len(serpRepo.observations()) != 0 {
		t.Error("Expected no observations")
	}
}
