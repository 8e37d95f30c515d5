package database

import (
	"time"
)

type Project struct {
	ID              int64
	Name            string
	Domain          string
	BrandedTerms    string // Comma-separated branded term list
	ConversionRate  float64
	ConversionValue float64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Keyword struct {
	ID               int64
	ProjectID        int64
	Keyword          string
	Active           bool
	SearchVolume     int
	LastVolumeUpdate string // Text timestamp; legacy rows carry mixed formats
	CreatedAt        time.Time
}

// Observation is one timestamped capture of rank + search volume + raw
// provider payload for a keyword. Rows are append-only; "latest" means
// maximum timestamp, not one per calendar day.
type Observation struct {
	ID           int64
	KeywordID    int64
	Date         time.Time
	Rank         int // 1-based position, -1 when the domain was not found
	FullData     []byte
	SearchVolume int
	CreatedAt    time.Time
}

// ObservationRow is the denormalized shape consumed by the Share of Voice
// aggregator and rank reports.
type ObservationRow struct {
	ID           int64
	KeywordID    int64
	Keyword      string
	Date         time.Time
	Rank         int
	SearchVolume int
	FullData     []byte
}

type Tag struct {
	ID   int64
	Name string
}

type GSCRow struct {
	ID          int64
	KeywordID   int64
	Date        string
	Clicks      int
	Impressions int
	CTR         float64
	Position    float64
	Query       string
	Page        string
}

// CTRCacheEntry holds the per-project average CTR curve keyed by rank
// position, recomputed at most every 90 days.
type CTRCacheEntry struct {
	ProjectID      int64
	AvgCTRJSON     string
	LastUpdated    string
	DateRangeStart string
	DateRangeEnd   string
}

type PullFrequency string

const (
	FrequencyDaily   PullFrequency = "daily"
	FrequencyWeekly  PullFrequency = "weekly"
	FrequencyMonthly PullFrequency = "monthly"
	FrequencyTest    PullFrequency = "test"
)

type ScheduledPull struct {
	ID        int64
	ProjectID int64
	TagID     int64 // 0 when the pull covers the whole project
	Frequency PullFrequency
	LastRun   *time.Time
	NextPull  time.Time
	CreatedAt time.Time
}
