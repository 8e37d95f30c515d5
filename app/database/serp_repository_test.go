package database

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func seedKeyword(t *testing.T, db *DB) int64 {
	t.Helper()

	projectRepo := NewProjectRepo(db)
	projectID, err := projectRepo.UpsertProject("acme", "example.com", "", 0.02, 50)
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}

	keywordRepo := NewKeywordRepo(db)
	keywordID, err := keywordRepo.UpsertKeyword(projectID, "anvils")
	if err != nil {
		t.Fatalf("Failed to create keyword: %v", err)
	}

	return keywordID
}

func TestLatestObservationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	keywordID := seedKeyword(t, db)
	repo := NewSerpRepo(db)

	earlier := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	later := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	if _, err := repo.AddObservation(keywordID, earlier, 5, []byte(`{"organic_results":[]}`), 100); err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}

	id, err := repo.AddObservation(keywordID, later, 3, []byte(`{"organic_results":[]}`), 120)
	if err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}

	latest, err := repo.GetLatestObservation(keywordID)
	if err != nil {
		t.Fatalf("Failed to get latest observation: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected latest observation, got nil")
	}

	if latest.ID != id {
		t.Errorf("Expected latest observation id %d, got %d", id, latest.ID)
	}
	if latest.Rank != 3 {
		t.Errorf("Expected rank 3, got %d", latest.Rank)
	}
	if latest.SearchVolume != 120 {
		t.Errorf("Expected search volume 120, got %d", latest.SearchVolume)
	}
	if !latest.Date.Equal(later) {
		t.Errorf("Expected date %v, got %v", later, latest.Date)
	}
}

func TestAppendOnlySameDay(t *testing.T) {
	db := newTestDB(t)
	keywordID := seedKeyword(t, db)
	repo := NewSerpRepo(db)

	morning := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)

	if _, err := repo.AddObservation(keywordID, morning, 4, []byte(`{}`), 100); err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}
	if _, err := repo.AddObservation(keywordID, evening, 6, []byte(`{}`), 100); err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}

	history, err := repo.GetRankHistory(keywordID, 10)
	if err != nil {
		t.Fatalf("Failed to get rank history: %v", err)
	}

	// Two fetches on the same calendar day produce two distinct rows
	if len(history) != 2 {
		t.Fatalf("Expected 2 observations, got %d", len(history))
	}

	latest, err := repo.GetLatestObservation(keywordID)
	if err != nil {
		t.Fatalf("Failed to get latest observation: %v", err)
	}
	if latest.Rank != 6 {
		t.Errorf("Expected latest rank 6 (max timestamp), got %d", latest.Rank)
	}
}

func TestLatestObservationBefore(t *testing.T) {
	db := newTestDB(t)
	keywordID := seedKeyword(t, db)
	repo := NewSerpRepo(db)

	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if _, err := repo.AddObservation(keywordID, day1, 8, []byte(`{}`), 90); err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}
	if _, err := repo.AddObservation(keywordID, day2, 2, []byte(`{}`), 90); err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}

	previous, err := repo.GetLatestObservationBefore(keywordID, day2)
	if err != nil {
		t.Fatalf("Failed to get previous observation: %v", err)
	}
	if previous == nil {
		t.Fatal("Expected previous observation, got nil")
	}
	if previous.Rank != 8 {
		t.Errorf("Expected previous rank 8, got %d", previous.Rank)
	}

	none, err := repo.GetLatestObservationBefore(keywordID, day1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("Expected no observation strictly before the first row, got %+v", none)
	}
}

func TestObservationsInRangeDayBounds(t *testing.T) {
	db := newTestDB(t)

	projectRepo := NewProjectRepo(db)
	projectID, err := projectRepo.UpsertProject("acme", "example.com", "", 0.02, 50)
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}

	keywordRepo := NewKeywordRepo(db)
	keywordID, err := keywordRepo.UpsertKeyword(projectID, "anvils")
	if err != nil {
		t.Fatalf("Failed to create keyword: %v", err)
	}

	repo := NewSerpRepo(db)

	// Captured in the morning of the to-date; the range bound carries no
	// clock component.
	observed := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	if _, err := repo.AddObservation(keywordID, observed, 4, []byte(`{}`), 100); err != nil {
		t.Fatalf("Failed to add observation: %v", err)
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	rows, err := repo.GetObservationsInRange(projectID, from, to, 0)
	if err != nil {
		t.Fatalf("Failed to get observations in range: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected observation on the to-date to be included, got %d rows", len(rows))
	}
	if rows[0].Rank != 4 {
		t.Errorf("Expected rank 4, got %d", rows[0].Rank)
	}

	// A to-date before the observation day still excludes it
	rows, err = repo.GetObservationsInRange(projectID, from, to.AddDate(0, 0, -1), 0)
	if err != nil {
		t.Fatalf("Failed to get observations in range: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows before the observation day, got %d", len(rows))
	}
}

func TestParseTimeFormats(t *testing.T) {
	inputs := []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00+02:00",
		"2024-03-01T10:00:00",
		"2024-03-01 10:00:00",
		"2024-03-01",
	}

	for _, input := range inputs {
		if _, err := ParseTime(input); err != nil {
			t.Errorf("Expected %q to parse, got error: %v", input, err)
		}
	}

	if _, err := ParseTime("not a time"); err == nil {
		t.Error("Expected error for unparsable timestamp")
	}
}
