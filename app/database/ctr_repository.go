package database

import (
	"database/sql"
	"fmt"
)

// CTRRepo handles database operations for the per-project CTR curve cache.
type CTRRepo struct {
	db *DB
}

var _ CTRRepository = (*CTRRepo)(nil)

func NewCTRRepo(db *DB) *CTRRepo {
	return &CTRRepo{db: db}
}

func (r *CTRRepo) GetCTRCache(projectID int64) (*CTRCacheEntry, error) {
	var entry CTRCacheEntry
	err := r.db.QueryRow(`
		SELECT project_id, avg_ctr_per_position, last_updated, date_range_start, date_range_end
		FROM ctr_cache
		WHERE project_id = ?
	`, projectID).Scan(&entry.ProjectID, &entry.AvgCTRJSON, &entry.LastUpdated,
		&entry.DateRangeStart, &entry.DateRangeEnd)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get CTR cache: %w", err)
	}

	return &entry, nil
}

// SetCTRCache replaces any prior cache entry for the project.
func (r *CTRRepo) SetCTRCache(entry CTRCacheEntry) error {
	_, err := r.db.Exec(`
		REPLACE INTO ctr_cache (project_id, avg_ctr_per_position, last_updated, date_range_start, date_range_end)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ProjectID, entry.AvgCTRJSON, entry.LastUpdated, entry.DateRangeStart, entry.DateRangeEnd)

	if err != nil {
		return fmt.Errorf("failed to set CTR cache: %w", err)
	}

	return nil
}
