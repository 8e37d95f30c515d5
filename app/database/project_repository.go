package database

import (
	"database/sql"
	"fmt"
)

// ProjectRepo handles database operations for projects
type ProjectRepo struct {
	db *DB
}

var _ ProjectRepository = (*ProjectRepo)(nil)

func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// UpsertProject inserts or updates a project keyed by its unique name.
func (r *ProjectRepo) UpsertProject(name, domain, brandedTerms string, conversionRate, conversionValue float64) (int64, error) {
	existing, err := r.GetProjectByName(name)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing project: %w", err)
	}

	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE projects
			SET domain = ?, branded_terms = ?, conversion_rate = ?, conversion_value = ?, updated_at = datetime('now')
			WHERE id = ?
		`, domain, brandedTerms, conversionRate, conversionValue, existing.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update project: %w", err)
		}
		return existing.ID, nil
	}

	result, err := r.db.Exec(`
		INSERT INTO projects (name, domain, branded_terms, conversion_rate, conversion_value)
		VALUES (?, ?, ?, ?, ?)
	`, name, domain, brandedTerms, conversionRate, conversionValue)
	if err != nil {
		return 0, fmt.Errorf("failed to insert project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get project id: %w", err)
	}

	return id, nil
}

func (r *ProjectRepo) GetProject(id int64) (*Project, error) {
	return r.getProject("WHERE id = ?", id)
}

func (r *ProjectRepo) GetProjectByName(name string) (*Project, error) {
	return r.getProject("WHERE name = ?", name)
}

func (r *ProjectRepo) getProject(where string, arg interface{}) (*Project, error) {
	var p Project
	var active int
	var createdAt, updatedAt string

	err := r.db.QueryRow(`
		SELECT id, name, domain, COALESCE(branded_terms, ''), COALESCE(conversion_rate, 0),
		       COALESCE(conversion_value, 0), COALESCE(active, 1), created_at, updated_at
		FROM projects `+where, arg).Scan(
		&p.ID, &p.Name, &p.Domain, &p.BrandedTerms, &p.ConversionRate,
		&p.ConversionValue, &active, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p.Active = active != 0
	if t, err := ParseTime(createdAt); err == nil {
		p.CreatedAt = t
	}
	if t, err := ParseTime(updatedAt); err == nil {
		p.UpdatedAt = t
	}

	return &p, nil
}

func (r *ProjectRepo) GetProjects() ([]Project, error) {
	rows, err := r.db.Query(`
		SELECT id, name, domain, COALESCE(branded_terms, ''), COALESCE(conversion_rate, 0),
		       COALESCE(conversion_value, 0), COALESCE(active, 1), created_at, updated_at
		FROM projects
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var active int
		var createdAt, updatedAt string

		err := rows.Scan(&p.ID, &p.Name, &p.Domain, &p.BrandedTerms, &p.ConversionRate,
			&p.ConversionValue, &active, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}

		p.Active = active != 0
		if t, err := ParseTime(createdAt); err == nil {
			p.CreatedAt = t
		}
		if t, err := ParseTime(updatedAt); err == nil {
			p.UpdatedAt = t
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return projects, nil
}

func (r *ProjectRepo) SetProjectActive(id int64, active bool) error {
	_, err := r.db.Exec(`
		UPDATE projects
		SET active = ?, updated_at = datetime('now')
		WHERE id = ?
	`, boolToInt(active), id)

	if err != nil {
		return fmt.Errorf("failed to set project active status: %w", err)
	}

	return nil
}

// DeleteProject removes a project; keywords, observations, analytics rows
// and schedules cascade via foreign keys.
func (r *ProjectRepo) DeleteProject(id int64) error {
	_, err := r.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (r *ProjectRepo) GetProjectCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get project count: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
