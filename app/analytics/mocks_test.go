package analytics

import (
	"time"

	"github.com/rankpulse/rankpulse/app/database"
)

type mockProjectRepo struct {
	projects map[int64]*database.Project
}

var _ database.ProjectRepository = (*mockProjectRepo)(nil)

func (m *mockProjectRepo) UpsertProject(name, domain, brandedTerms string, conversionRate, conversionValue float64) (int64, error) {
	return 0, nil
}

func (m *mockProjectRepo) GetProject(id int64) (*database.Project, error) {
	return m.projects[id], nil
}

func (m *mockProjectRepo) GetProjectByName(name string) (*database.Project, error) {
	for _, p := range m.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProjectRepo) GetProjects() ([]database.Project, error) {
	var projects []database.Project
	for _, p := range m.projects {
		projects = append(projects, *p)
	}
	return projects, nil
}

func (m *mockProjectRepo) SetProjectActive(id int64, active bool) error { return nil }
func (m *mockProjectRepo) DeleteProject(id int64) error                 { return nil }
func (m *mockProjectRepo) GetProjectCount() (int, error)                { return len(m.projects), nil }

type mockKeywordRepo struct {
	keywords map[int64]*database.Keyword
}

var _ database.KeywordRepository = (*mockKeywordRepo)(nil)

func (m *mockKeywordRepo) UpsertKeyword(projectID int64, keyword string) (int64, error) {
	return 0, nil
}

func (m *mockKeywordRepo) GetKeyword(id int64) (*database.Keyword, error) {
	return m.keywords[id], nil
}

func (m *mockKeywordRepo) GetKeywords(projectID int64) ([]database.Keyword, error) {
	return nil, nil
}

func (m *mockKeywordRepo) GetActiveKeywords(projectID, tagID int64) ([]database.Keyword, error) {
	var keywords []database.Keyword
	for _, k := range m.keywords {
		if k.ProjectID == projectID && k.Active {
			keywords = append(keywords, *k)
		}
	}
	return keywords, nil
}

func (m *mockKeywordRepo) UpdateSearchVolume(keywordID int64, volume int, updatedAt time.Time) error {
	return nil
}

func (m *mockKeywordRepo) SetKeywordActive(id int64, active bool) error { return nil }
func (m *mockKeywordRepo) DeleteKeyword(id int64) error                 { return nil }
func (m *mockKeywordRepo) EnsureTag(name string) (int64, error)         { return 0, nil }
func (m *mockKeywordRepo) GetTags() ([]database.Tag, error)             { return nil, nil }
func (m *mockKeywordRepo) TagKeyword(keywordID, tagID int64) error      { return nil }
func (m *mockKeywordRepo) UntagKeyword(keywordID, tagID int64) error    { return nil }

type mockSerpRepo struct {
	latest     map[int64]*database.Observation
	previous   map[int64]*database.Observation
	rangeRows  []database.ObservationRow
	rangeError error
}

var _ database.SerpRepository = (*mockSerpRepo)(nil)

func (m *mockSerpRepo) AddObservation(keywordID int64, date time.Time, rank int, fullData []byte, searchVolume int) (int64, error) {
	return 0, nil
}

func (m *mockSerpRepo) GetObservation(id int64) (*database.Observation, error) {
	return nil, nil
}

func (m *mockSerpRepo) GetLatestObservation(keywordID int64) (*database.Observation, error) {
	return m.latest[keywordID], nil
}

func (m *mockSerpRepo) GetLatestObservationBefore(keywordID int64, before time.Time) (*database.Observation, error) {
	return m.previous[keywordID], nil
}

func (m *mockSerpRepo) GetRankHistory(keywordID int64, limit int) ([]database.Observation, error) {
	return nil, nil
}

func (m *mockSerpRepo) GetObservationsInRange(projectID int64, from, to time.Time, tagID int64) ([]database.ObservationRow, error) {
	if m.rangeError != nil {
		return nil, m.rangeError
	}
	return m.rangeRows, nil
}

type mockGSCRepo struct {
	rows []database.GSCRow
}

var _ database.GSCRepository = (*mockGSCRepo)(nil)

func (m *mockGSCRepo) AddRow(row database.GSCRow) error { return nil }

func (m *mockGSCRepo) GetRowsForProject(projectID int64, from, to string) ([]database.GSCRow, error) {
	return m.rows, nil
}

func (m *mockGSCRepo) GetCredentials(projectID int64) (string, error)         { return "", nil }
func (m *mockGSCRepo) SetCredentials(projectID int64, credentials string) error { return nil }

type mockCTRRepo struct {
	entry *database.CTRCacheEntry
	saved *database.CTRCacheEntry
}

var _ database.CTRRepository = (*mockCTRRepo)(nil)

func (m *mockCTRRepo) GetCTRCache(projectID int64) (*database.CTRCacheEntry, error) {
	return m.entry, nil
}

func (m *mockCTRRepo) SetCTRCache(entry database.CTRCacheEntry) error {
	m.saved = &entry
	return nil
}
