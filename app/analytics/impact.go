package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/rankpulse/rankpulse/app/database"
)

// ErrNoData indicates there is legitimately nothing to report for the
// requested input, as opposed to a fault.
var ErrNoData = errors.New("no data")

// Impact estimates the monetary value of a ranking: expected clicks
// (CTR x volume) carried through the project's conversion assumptions.
// Unranked keywords (rank < 1) and keywords without volume contribute 0.
func Impact(rank, searchVolume int, avgCTR, conversionRate, conversionValue float64) float64 {
	if rank < 1 || searchVolume <= 0 {
		return 0
	}
	return avgCTR * float64(searchVolume) * conversionRate * conversionValue
}

// ImpactResult is the estimate for one keyword at one observation.
type ImpactResult struct {
	KeywordID    int64     `json:"keyword_id"`
	Keyword      string    `json:"keyword"`
	Rank         int       `json:"rank"`
	SearchVolume int       `json:"search_volume"`
	AvgCTR       float64   `json:"avg_ctr"`
	Impact       float64   `json:"impact"`
	Date         time.Time `json:"date"`
}

// ImpactEstimator resolves the inputs of Impact from stored state.
type ImpactEstimator struct {
	projects database.ProjectRepository
	keywords database.KeywordRepository
	serp     database.SerpRepository
	ctr      *CTRModel
}

func NewImpactEstimator(projects database.ProjectRepository, keywords database.KeywordRepository,
	serp database.SerpRepository, ctr *CTRModel) *ImpactEstimator {
	return &ImpactEstimator{
		projects: projects,
		keywords: keywords,
		serp:     serp,
		ctr:      ctr,
	}
}

// ForKeyword estimates impact from the keyword's latest observation.
func (e *ImpactEstimator) ForKeyword(keywordID int64) (*ImpactResult, error) {
	keyword, project, err := e.resolve(keywordID)
	if err != nil {
		return nil, err
	}

	obs, err := e.serp.GetLatestObservation(keywordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest observation: %w", err)
	}
	if obs == nil {
		return nil, fmt.Errorf("keyword %d has no observations: %w", keywordID, ErrNoData)
	}

	return e.estimate(keyword, project, obs)
}

// PreviousForKeyword estimates impact from the most recent observation
// strictly before the given time, for trend comparison.
func (e *ImpactEstimator) PreviousForKeyword(keywordID int64, before time.Time) (*ImpactResult, error) {
	keyword, project, err := e.resolve(keywordID)
	if err != nil {
		return nil, err
	}

	obs, err := e.serp.GetLatestObservationBefore(keywordID, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get previous observation: %w", err)
	}
	if obs == nil {
		return nil, fmt.Errorf("keyword %d has no observation before %s: %w", keywordID, before.Format(time.RFC3339), ErrNoData)
	}

	return e.estimate(keyword, project, obs)
}

func (e *ImpactEstimator) resolve(keywordID int64) (*database.Keyword, *database.Project, error) {
	keyword, err := e.keywords.GetKeyword(keywordID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get keyword: %w", err)
	}
	if keyword == nil {
		return nil, nil, fmt.Errorf("keyword %d: %w", keywordID, ErrNotFound)
	}

	project, err := e.projects.GetProject(keyword.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, nil, fmt.Errorf("project %d: %w", keyword.ProjectID, ErrNotFound)
	}

	return keyword, project, nil
}

func (e *ImpactEstimator) estimate(keyword *database.Keyword, project *database.Project, obs *database.Observation) (*ImpactResult, error) {
	var avgCTR float64
	if obs.Rank >= 1 {
		var err error
		avgCTR, err = e.ctr.AvgCTR(project.ID, obs.Rank)
		if err != nil {
			return nil, fmt.Errorf("failed to get avg CTR: %w", err)
		}
	}

	return &ImpactResult{
		KeywordID:    keyword.ID,
		Keyword:      keyword.Keyword,
		Rank:         obs.Rank,
		SearchVolume: obs.SearchVolume,
		AvgCTR:       avgCTR,
		Impact:       Impact(obs.Rank, obs.SearchVolume, avgCTR, project.ConversionRate, project.ConversionValue),
		Date:         obs.Date,
	}, nil
}
