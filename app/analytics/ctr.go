package analytics

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rankpulse/rankpulse/app/database"
)

// ErrNotFound indicates the referenced project or keyword does not exist.
var ErrNotFound = errors.New("not found")

const maxCTRRank = 100

// CTRModel computes and caches the per-project average CTR curve keyed by
// rank position. The curve is rebuilt from the last 90 days of non-branded
// Search Console rows at most once per 90 days; ranks without click data are
// filled by a logarithmic fit and finally by a static industry curve, so the
// result always covers ranks 1..100.
type CTRModel struct {
	projects database.ProjectRepository
	gsc      database.GSCRepository
	cache    database.CTRRepository
	now      func() time.Time
}

func NewCTRModel(projects database.ProjectRepository, gsc database.GSCRepository, cache database.CTRRepository) *CTRModel {
	return &CTRModel{
		projects: projects,
		gsc:      gsc,
		cache:    cache,
		now:      time.Now,
	}
}

// AvgCTR returns the expected click-through rate for a rank. Ranks above 100
// are clamped to 100.
func (m *CTRModel) AvgCTR(projectID int64, rank int) (float64, error) {
	if rank < 1 {
		return 0, nil
	}
	if rank > maxCTRRank {
		rank = maxCTRRank
	}

	curve, err := m.CurveForProject(projectID)
	if err != nil {
		return 0, err
	}

	return curve[rank], nil
}

// CurveForProject returns the cached curve when fresh, otherwise recomputes
// and persists it.
func (m *CTRModel) CurveForProject(projectID int64) (map[int]float64, error) {
	now := m.now()

	entry, err := m.cache.GetCTRCache(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read CTR cache: %w", err)
	}

	if entry != nil && !IsStale(entry.LastUpdated, now, CTRMaxAgeDays) {
		curve, err := decodeCurve(entry.AvgCTRJSON)
		if err == nil {
			return curve, nil
		}
		slog.Warn("Ignoring corrupt CTR cache entry", "project_id", projectID, "error", err)
	}

	return m.recompute(projectID, now)
}

func (m *CTRModel) recompute(projectID int64, now time.Time) (map[int]float64, error) {
	project, err := m.projects.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}

	from := now.AddDate(0, 0, -CTRMaxAgeDays)
	rows, err := m.gsc.GetRowsForProject(projectID, database.FormatDate(from), database.FormatDate(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics rows: %w", err)
	}

	branded := brandedTerms(project.BrandedTerms)

	clicks := make(map[int]int)
	impressions := make(map[int]int)
	for _, row := range rows {
		if isBranded(row.Query, branded) {
			continue
		}

		rank := int(math.Round(row.Position))
		if rank < 1 || rank > maxCTRRank {
			continue
		}

		clicks[rank] += row.Clicks
		impressions[rank] += row.Impressions
	}

	curve := make(map[int]float64, maxCTRRank)
	for rank, imp := range impressions {
		if imp > 0 {
			curve[rank] = float64(clicks[rank]) / float64(imp)
		}
	}

	extrapolate(curve)

	for rank := 1; rank <= maxCTRRank; rank++ {
		if v, ok := curve[rank]; !ok || v == 0 {
			curve[rank] = FallbackCTR(rank)
		}
	}

	encoded, err := encodeCurve(curve)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CTR curve: %w", err)
	}

	err = m.cache.SetCTRCache(database.CTRCacheEntry{
		ProjectID:      projectID,
		AvgCTRJSON:     encoded,
		LastUpdated:    database.FormatTime(now),
		DateRangeStart: database.FormatDate(from),
		DateRangeEnd:   database.FormatDate(now),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist CTR cache: %w", err)
	}

	slog.Info("CTR curve recomputed", "project_id", projectID, "rows", len(rows), "observed_ranks", len(impressions))

	return curve, nil
}

// extrapolate fits ctr = a*ln(rank) + b by least squares over observed
// positive-CTR points and fills unobserved ranks, clamped non-negative.
// Skipped when fewer than 2 points exist.
func extrapolate(curve map[int]float64) {
	var xs, ys []float64
	for rank, ctr := range curve {
		if ctr > 0 {
			xs = append(xs, math.Log(float64(rank)))
			ys = append(ys, ctr)
		}
	}

	if len(xs) < 2 {
		return
	}

	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return
	}

	a := (n*sumXY - sumX*sumY) / denom
	b := (sumY - a*sumX) / n

	for rank := 1; rank <= maxCTRRank; rank++ {
		if _, ok := curve[rank]; ok {
			continue
		}
		v := a*math.Log(float64(rank)) + b
		if v < 0 {
			v = 0
		}
		curve[rank] = v
	}
}

func brandedTerms(raw string) []string {
	var terms []string
	for _, term := range strings.Split(raw, ",") {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func isBranded(query string, terms []string) bool {
	q := strings.ToLower(query)
	for _, term := range terms {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}

func encodeCurve(curve map[int]float64) (string, error) {
	byPosition := make(map[string]float64, len(curve))
	for rank, ctr := range curve {
		byPosition[strconv.Itoa(rank)] = ctr
	}

	data, err := json.Marshal(byPosition)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeCurve(encoded string) (map[int]float64, error) {
	var byPosition map[string]float64
	if err := json.Unmarshal([]byte(encoded), &byPosition); err != nil {
		return nil, err
	}

	curve := make(map[int]float64, len(byPosition))
	for key, ctr := range byPosition {
		rank, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid rank key %q", key)
		}
		curve[rank] = ctr
	}

	if len(curve) == 0 {
		return nil, fmt.Errorf("empty CTR curve")
	}

	return curve, nil
}
