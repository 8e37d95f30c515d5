package database

import (
	"time"
)

type ProjectRepository interface {
	UpsertProject(name, domain, brandedTerms string, conversionRate, conversionValue float64) (int64, error)
	GetProject(id int64) (*Project, error)
	GetProjectByName(name string) (*Project, error)
	GetProjects() ([]Project, error)
	SetProjectActive(id int64, active bool) error
	DeleteProject(id int64) error
	GetProjectCount() (int, error)
}

type KeywordRepository interface {
	UpsertKeyword(projectID int64, keyword string) (int64, error)
	GetKeyword(id int64) (*Keyword, error)
	GetKeywords(projectID int64) ([]Keyword, error)
	GetActiveKeywords(projectID, tagID int64) ([]Keyword, error)
	UpdateSearchVolume(keywordID int64, volume int, updatedAt time.Time) error
	SetKeywordActive(id int64, active bool) error
	DeleteKeyword(id int64) error

	EnsureTag(name string) (int64, error)
	GetTags() ([]Tag, error)
	TagKeyword(keywordID, tagID int64) error
	UntagKeyword(keywordID, tagID int64) error
}

type SerpRepository interface {
	AddObservation(keywordID int64, date time.Time, rank int, fullData []byte, searchVolume int) (int64, error)
	GetObservation(id int64) (*Observation, error)
	GetLatestObservation(keywordID int64) (*Observation, error)
	GetLatestObservationBefore(keywordID int64, before time.Time) (*Observation, error)
	GetRankHistory(keywordID int64, limit int) ([]Observation, error)
	GetObservationsInRange(projectID int64, from, to time.Time, tagID int64) ([]ObservationRow, error)
}

type GSCRepository interface {
	AddRow(row GSCRow) error
	GetRowsForProject(projectID int64, from, to string) ([]GSCRow, error)
	GetCredentials(projectID int64) (string, error)
	SetCredentials(projectID int64, credentials string) error
}

type CTRRepository interface {
	GetCTRCache(projectID int64) (*CTRCacheEntry, error)
	SetCTRCache(entry CTRCacheEntry) error
}

type PullRepository interface {
	UpsertPull(projectID, tagID int64, frequency PullFrequency, nextPull time.Time) (int64, error)
	GetPulls() ([]ScheduledPull, error)
	GetPull(id int64) (*ScheduledPull, error)
	UpdatePullRun(id int64, lastRun, nextPull time.Time) error
	UpdateNextPull(id int64, nextPull time.Time) error
	DeletePull(id int64) error
}
