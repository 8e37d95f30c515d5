package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SerpRepo handles database operations for rank observations. The table is
// append-only: every pipeline run inserts a new row, and "latest" is always
// the maximum timestamp for a keyword.
type SerpRepo struct {
	db *DB
}

var _ SerpRepository = (*SerpRepo)(nil)

func NewSerpRepo(db *DB) *SerpRepo {
	return &SerpRepo{db: db}
}

func (r *SerpRepo) AddObservation(keywordID int64, date time.Time, rank int, fullData []byte, searchVolume int) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO serp_data (keyword_id, date, rank, full_data, search_volume)
		VALUES (?, ?, ?, ?, ?)
	`, keywordID, FormatTime(date), rank, string(fullData), searchVolume)
	if err != nil {
		return 0, fmt.Errorf("failed to add observation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get observation id: %w", err)
	}

	return id, nil
}

func (r *SerpRepo) GetObservation(id int64) (*Observation, error) {
	return r.getObservation(`
		SELECT id, keyword_id, date, rank, full_data, COALESCE(search_volume, 0), created_at
		FROM serp_data
		WHERE id = ?
	`, id)
}

func (r *SerpRepo) GetLatestObservation(keywordID int64) (*Observation, error) {
	return r.getObservation(`
		SELECT id, keyword_id, date, rank, full_data, COALESCE(search_volume, 0), created_at
		FROM serp_data
		WHERE keyword_id = ?
		ORDER BY date DESC, id DESC
		LIMIT 1
	`, keywordID)
}

// GetLatestObservationBefore returns the most recent observation strictly
// before the given time, used for trend comparisons.
func (r *SerpRepo) GetLatestObservationBefore(keywordID int64, before time.Time) (*Observation, error) {
	return r.getObservation(`
		SELECT id, keyword_id, date, rank, full_data, COALESCE(search_volume, 0), created_at
		FROM serp_data
		WHERE keyword_id = ? AND date < ?
		ORDER BY date DESC, id DESC
		LIMIT 1
	`, keywordID, FormatTime(before))
}

func (r *SerpRepo) getObservation(query string, args ...interface{}) (*Observation, error) {
	var o Observation
	var date, fullData, createdAt string

	err := r.db.QueryRow(query, args...).Scan(
		&o.ID, &o.KeywordID, &date, &o.Rank, &fullData, &o.SearchVolume, &createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}

	o.FullData = []byte(fullData)
	if t, err := ParseTime(date); err == nil {
		o.Date = t
	}
	if t, err := ParseTime(createdAt); err == nil {
		o.CreatedAt = t
	}

	return &o, nil
}

func (r *SerpRepo) GetRankHistory(keywordID int64, limit int) ([]Observation, error) {
	rows, err := r.db.Query(`
		SELECT id, keyword_id, date, rank, full_data, COALESCE(search_volume, 0), created_at
		FROM serp_data
		WHERE keyword_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?
	`, keywordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get rank history: %w", err)
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		var o Observation
		var date, fullData, createdAt string

		err := rows.Scan(&o.ID, &o.KeywordID, &date, &o.Rank, &fullData, &o.SearchVolume, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}

		o.FullData = []byte(fullData)
		if t, err := ParseTime(date); err == nil {
			o.Date = t
		}
		if t, err := ParseTime(createdAt); err == nil {
			o.CreatedAt = t
		}
		observations = append(observations, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observation rows: %w", err)
	}

	return observations, nil
}

// GetObservationsInRange returns all observations of a project's keywords
// whose date falls inside [from, to], optionally restricted to a tag. The
// bounds are compared at day granularity, so an observation captured at any
// time on the to-date is included.
func (r *SerpRepo) GetObservationsInRange(projectID int64, from, to time.Time, tagID int64) ([]ObservationRow, error) {
	query := `
		SELECT s.id, s.keyword_id, k.keyword, s.date, s.rank, COALESCE(s.search_volume, 0), s.full_data
		FROM serp_data s
		JOIN keywords k ON k.id = s.keyword_id
		WHERE k.project_id = ? AND date(s.date) >= ? AND date(s.date) <= ?
	`
	args := []interface{}{projectID, FormatDate(from), FormatDate(to)}

	if tagID > 0 {
		query += " AND k.id IN (SELECT keyword_id FROM keyword_tags WHERE tag_id = ?)"
		args = append(args, tagID)
	}

	query += " ORDER BY s.date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations in range: %w", err)
	}
	defer rows.Close()

	var result []ObservationRow
	for rows.Next() {
		var row ObservationRow
		var date, fullData string

		err := rows.Scan(&row.ID, &row.KeywordID, &row.Keyword, &date, &row.Rank, &row.SearchVolume, &fullData)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}

		row.FullData = []byte(fullData)
		if t, err := ParseTime(date); err == nil {
			row.Date = t
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observation rows: %w", err)
	}

	return result, nil
}
