package database

import (
	"database/sql"
	"fmt"
	"time"
)

// PullRepo handles database operations for scheduled pulls
type PullRepo struct {
	db *DB
}

var _ PullRepository = (*PullRepo)(nil)

func NewPullRepo(db *DB) *PullRepo {
	return &PullRepo{db: db}
}

// UpsertPull inserts or updates the recurring pull for a (project, tag)
// selector. An existing pull keeps its last_run but picks up the new
// frequency and next_pull.
func (r *PullRepo) UpsertPull(projectID, tagID int64, frequency PullFrequency, nextPull time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM scheduled_pulls
		WHERE project_id = ? AND COALESCE(tag_id, 0) = ?
	`, projectID, tagID).Scan(&id)

	if err == nil {
		_, err = r.db.Exec(`
			UPDATE scheduled_pulls SET frequency = ?, next_pull = ? WHERE id = ?
		`, string(frequency), FormatTime(nextPull), id)
		if err != nil {
			return 0, fmt.Errorf("failed to update scheduled pull: %w", err)
		}
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to check existing scheduled pull: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO scheduled_pulls (project_id, tag_id, frequency, next_pull)
		VALUES (?, ?, ?, ?)
	`, projectID, nullableID(tagID), string(frequency), FormatTime(nextPull))
	if err != nil {
		return 0, fmt.Errorf("failed to insert scheduled pull: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scheduled pull id: %w", err)
	}

	return id, nil
}

func (r *PullRepo) GetPulls() ([]ScheduledPull, error) {
	rows, err := r.db.Query(`
		SELECT id, project_id, COALESCE(tag_id, 0), frequency, last_run, next_pull, created_at
		FROM scheduled_pulls
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled pulls: %w", err)
	}
	defer rows.Close()

	var pulls []ScheduledPull
	for rows.Next() {
		pull, err := scanPull(rows.Scan)
		if err != nil {
			return nil, err
		}
		pulls = append(pulls, *pull)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled pull rows: %w", err)
	}

	return pulls, nil
}

func (r *PullRepo) GetPull(id int64) (*ScheduledPull, error) {
	row := r.db.QueryRow(`
		SELECT id, project_id, COALESCE(tag_id, 0), frequency, last_run, next_pull, created_at
		FROM scheduled_pulls
		WHERE id = ?
	`, id)

	pull, err := scanPull(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pull, nil
}

func scanPull(scan func(...interface{}) error) (*ScheduledPull, error) {
	var p ScheduledPull
	var frequency string
	var lastRun sql.NullString
	var nextPull, createdAt string

	err := scan(&p.ID, &p.ProjectID, &p.TagID, &frequency, &lastRun, &nextPull, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan scheduled pull row: %w", err)
	}

	p.Frequency = PullFrequency(frequency)
	if lastRun.Valid {
		if t, err := ParseTime(lastRun.String); err == nil {
			p.LastRun = &t
		}
	}
	if t, err := ParseTime(nextPull); err == nil {
		p.NextPull = t
	}
	if t, err := ParseTime(createdAt); err == nil {
		p.CreatedAt = t
	}

	return &p, nil
}

// UpdatePullRun records a completed execution and the next scheduled time.
func (r *PullRepo) UpdatePullRun(id int64, lastRun, nextPull time.Time) error {
	_, err := r.db.Exec(`
		UPDATE scheduled_pulls SET last_run = ?, next_pull = ? WHERE id = ?
	`, FormatTime(lastRun), FormatTime(nextPull), id)

	if err != nil {
		return fmt.Errorf("failed to update scheduled pull run: %w", err)
	}

	return nil
}

func (r *PullRepo) UpdateNextPull(id int64, nextPull time.Time) error {
	_, err := r.db.Exec(`
		UPDATE scheduled_pulls SET next_pull = ? WHERE id = ?
	`, FormatTime(nextPull), id)

	if err != nil {
		return fmt.Errorf("failed to update next pull time: %w", err)
	}

	return nil
}

func (r *PullRepo) DeletePull(id int64) error {
	_, err := r.db.Exec("DELETE FROM scheduled_pulls WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete scheduled pull: %w", err)
	}
	return nil
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
