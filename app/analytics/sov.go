package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/serp"
)

const (
	sovRankLimit = 10
	// Sum of (11-p) for p in 1..10; the linear decay weights sum to 1.
	sovWeightDenominator = 55.0
)

// SOVReport is the share-of-voice output: a per-domain time series across
// the full requested range and a point-in-time snapshot of the most recent
// day that produced data.
type SOVReport struct {
	Days        []string             `json:"days"`
	Series      map[string][]float64 `json:"series"`
	Snapshot    map[string]float64   `json:"snapshot"`
	SnapshotDay string               `json:"snapshot_day"`
}

// SOVAggregator computes volume-weighted, position-decayed visibility shares
// per competing domain per day from stored observations.
type SOVAggregator struct {
	serpRepo database.SerpRepository
}

func NewSOVAggregator(serpRepo database.SerpRepository) *SOVAggregator {
	return &SOVAggregator{serpRepo: serpRepo}
}

// Run aggregates observations of the project's (optionally tag-filtered)
// keywords in [from, to]. Only observations with rank in [1,10] contribute;
// when none qualify, ErrNoData is returned instead of an empty series.
func (a *SOVAggregator) Run(projectID int64, from, to time.Time, tagID int64) (*SOVReport, error) {
	rows, err := a.serpRepo.GetObservationsInRange(projectID, from, to, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}

	scores := make(map[string]map[string]float64) // day -> domain -> weighted volume
	totals := make(map[string]float64)            // day -> total volume denominator

	for _, row := range rows {
		if row.Rank < 1 || row.Rank > sovRankLimit {
			continue
		}

		results, err := serp.ParsePayload(row.FullData)
		if err != nil {
			slog.Warn("Skipping observation with unparsable payload", "observation_id", row.ID, "error", err)
			continue
		}

		if len(results) > sovRankLimit {
			results = results[:sovRankLimit]
		}

		day := row.Date.UTC().Format("2006-01-02")
		volume := float64(row.SearchVolume)

		for _, result := range results {
			domain := result.Host()
			if domain == "" || result.Position < 1 || result.Position > sovRankLimit {
				continue
			}

			if scores[day] == nil {
				scores[day] = make(map[string]float64)
			}
			weight := float64(sovRankLimit+1-result.Position) / sovWeightDenominator
			scores[day][domain] += weight * volume
		}

		// Denominator accumulates once per qualifying observation, not
		// once per result entry.
		totals[day] += volume
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("no observation ranked in the top %d in range: %w", sovRankLimit, ErrNoData)
	}

	shares := make(map[string]map[string]float64, len(scores))
	domains := make(map[string]bool)
	var computedDays []string

	for day, byDomain := range scores {
		if totals[day] == 0 {
			slog.Warn("Skipping day with zero total volume", "day", day)
			continue
		}

		// Normalize against the day's accumulated scores so shares always
		// sum to 100 even when payloads carry fewer than 10 entries.
		var total float64
		for _, value := range byDomain {
			total += value
		}
		if total == 0 {
			continue
		}

		shares[day] = make(map[string]float64, len(byDomain))
		for domain, value := range byDomain {
			shares[day][domain] = value / total * 100
			domains[domain] = true
		}
		computedDays = append(computedDays, day)
	}

	if len(shares) == 0 {
		return nil, fmt.Errorf("all days in range had zero search volume: %w", ErrNoData)
	}

	report := &SOVReport{
		Days:     calendarDays(from, to),
		Series:   make(map[string][]float64, len(domains)),
		Snapshot: make(map[string]float64),
	}

	for domain := range domains {
		series := make([]float64, len(report.Days))
		for i, day := range report.Days {
			if byDomain, ok := shares[day]; ok {
				series[i] = byDomain[domain]
			}
		}
		report.Series[domain] = series
	}

	sort.Strings(computedDays)
	report.SnapshotDay = computedDays[len(computedDays)-1]
	for domain, share := range shares[report.SnapshotDay] {
		report.Snapshot[domain] = share
	}

	return report, nil
}

func calendarDays(from, to time.Time) []string {
	var days []string
	for d := from.UTC().Truncate(24 * time.Hour); !d.After(to.UTC()); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
