package database

import (
	"database/sql"
	"fmt"
)

// GSCRepo handles database operations for Search Console analytics rows and
// per-project credentials.
type GSCRepo struct {
	db *DB
}

var _ GSCRepository = (*GSCRepo)(nil)

func NewGSCRepo(db *DB) *GSCRepo {
	return &GSCRepo{db: db}
}

// AddRow inserts one analytics row. Re-syncing an overlapping date range
// updates metrics in place instead of duplicating rows.
func (r *GSCRepo) AddRow(row GSCRow) error {
	_, err := r.db.Exec(`
		INSERT INTO gsc_data (keyword_id, date, clicks, impressions, ctr, position, query, page)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (keyword_id, date, query, page) DO UPDATE SET
			clicks = excluded.clicks,
			impressions = excluded.impressions,
			ctr = excluded.ctr,
			position = excluded.position
	`, row.KeywordID, row.Date, row.Clicks, row.Impressions, row.CTR, row.Position, row.Query, row.Page)

	if err != nil {
		return fmt.Errorf("failed to add GSC row: %w", err)
	}

	return nil
}

// GetRowsForProject returns analytics rows for all keywords of a project
// within a date range (dates compared as YYYY-MM-DD text).
func (r *GSCRepo) GetRowsForProject(projectID int64, from, to string) ([]GSCRow, error) {
	rows, err := r.db.Query(`
		SELECT g.id, g.keyword_id, g.date, g.clicks, g.impressions, g.ctr, g.position,
		       COALESCE(g.query, ''), COALESCE(g.page, '')
		FROM gsc_data g
		JOIN keywords k ON k.id = g.keyword_id
		WHERE k.project_id = ? AND g.date >= ? AND g.date <= ?
	`, projectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get GSC rows: %w", err)
	}
	defer rows.Close()

	var result []GSCRow
	for rows.Next() {
		var row GSCRow
		err := rows.Scan(&row.ID, &row.KeywordID, &row.Date, &row.Clicks, &row.Impressions,
			&row.CTR, &row.Position, &row.Query, &row.Page)
		if err != nil {
			return nil, fmt.Errorf("failed to scan GSC row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating GSC rows: %w", err)
	}

	return result, nil
}

// GetCredentials returns the stored credential JSON for a project, or an
// empty string when none is stored.
func (r *GSCRepo) GetCredentials(projectID int64) (string, error) {
	var credentials string
	err := r.db.QueryRow(`
		SELECT credentials FROM gsc_credentials WHERE project_id = ?
	`, projectID).Scan(&credentials)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get GSC credentials: %w", err)
	}

	return credentials, nil
}

func (r *GSCRepo) SetCredentials(projectID int64, credentials string) error {
	_, err := r.db.Exec(`
		INSERT INTO gsc_credentials (project_id, credentials)
		VALUES (?, ?)
		ON CONFLICT(project_id) DO UPDATE SET credentials = excluded.credentials
	`, projectID, credentials)

	if err != nil {
		return fmt.Errorf("failed to set GSC credentials: %w", err)
	}

	return nil
}
