package database

import (
	"database/sql"
	"fmt"
	"time"
)

// KeywordRepo handles database operations for keywords and tags
type KeywordRepo struct {
	db *DB
}

var _ KeywordRepository = (*KeywordRepo)(nil)

func NewKeywordRepo(db *DB) *KeywordRepo {
	return &KeywordRepo{db: db}
}

// UpsertKeyword inserts a keyword or returns the existing row's id. The
// cached search volume of an existing keyword is left untouched.
func (r *KeywordRepo) UpsertKeyword(projectID int64, keyword string) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		SELECT id FROM keywords WHERE project_id = ? AND keyword = ?
	`, projectID, keyword).Scan(&id)

	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to check existing keyword: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO keywords (project_id, keyword, active)
		VALUES (?, ?, 1)
	`, projectID, keyword)
	if err != nil {
		return 0, fmt.Errorf("failed to insert keyword: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get keyword id: %w", err)
	}

	return id, nil
}

func (r *KeywordRepo) GetKeyword(id int64) (*Keyword, error) {
	var k Keyword
	var active int
	var lastUpdate sql.NullString
	var createdAt string

	err := r.db.QueryRow(`
		SELECT id, project_id, keyword, COALESCE(active, 1), COALESCE(search_volume, 0),
		       last_volume_update, created_at
		FROM keywords
		WHERE id = ?
	`, id).Scan(&k.ID, &k.ProjectID, &k.Keyword, &active, &k.SearchVolume, &lastUpdate, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword: %w", err)
	}

	k.Active = active != 0
	k.LastVolumeUpdate = lastUpdate.String
	if t, err := ParseTime(createdAt); err == nil {
		k.CreatedAt = t
	}

	return &k, nil
}

func (r *KeywordRepo) GetKeywords(projectID int64) ([]Keyword, error) {
	return r.queryKeywords(`
		SELECT id, project_id, keyword, COALESCE(active, 1), COALESCE(search_volume, 0),
		       last_volume_update, created_at
		FROM keywords
		WHERE project_id = ?
		ORDER BY keyword
	`, projectID)
}

// GetActiveKeywords returns the active keywords of a project, optionally
// restricted to a tag (tagID 0 means no tag filter).
func (r *KeywordRepo) GetActiveKeywords(projectID, tagID int64) ([]Keyword, error) {
	if tagID > 0 {
		return r.queryKeywords(`
			SELECT k.id, k.project_id, k.keyword, COALESCE(k.active, 1), COALESCE(k.search_volume, 0),
			       k.last_volume_update, k.created_at
			FROM keywords k
			JOIN keyword_tags kt ON kt.keyword_id = k.id
			WHERE k.project_id = ? AND k.active = 1 AND kt.tag_id = ?
			ORDER BY k.keyword
		`, projectID, tagID)
	}

	return r.queryKeywords(`
		SELECT id, project_id, keyword, COALESCE(active, 1), COALESCE(search_volume, 0),
		       last_volume_update, created_at
		FROM keywords
		WHERE project_id = ? AND active = 1
		ORDER BY keyword
	`, projectID)
}

func (r *KeywordRepo) queryKeywords(query string, args ...interface{}) ([]Keyword, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get keywords: %w", err)
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		var k Keyword
		var active int
		var lastUpdate sql.NullString
		var createdAt string

		err := rows.Scan(&k.ID, &k.ProjectID, &k.Keyword, &active, &k.SearchVolume, &lastUpdate, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword row: %w", err)
		}

		k.Active = active != 0
		k.LastVolumeUpdate = lastUpdate.String
		if t, err := ParseTime(createdAt); err == nil {
			k.CreatedAt = t
		}
		keywords = append(keywords, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword rows: %w", err)
	}

	return keywords, nil
}

// UpdateSearchVolume refreshes the cached volume and its update timestamp.
func (r *KeywordRepo) UpdateSearchVolume(keywordID int64, volume int, updatedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE keywords
		SET search_volume = ?, last_volume_update = ?
		WHERE id = ?
	`, volume, FormatTime(updatedAt), keywordID)

	if err != nil {
		return fmt.Errorf("failed to update search volume: %w", err)
	}

	return nil
}

func (r *KeywordRepo) SetKeywordActive(id int64, active bool) error {
	_, err := r.db.Exec("UPDATE keywords SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to set keyword active status: %w", err)
	}
	return nil
}

// DeleteKeyword removes a keyword; its observations and tag links cascade.
func (r *KeywordRepo) DeleteKeyword(id int64) error {
	_, err := r.db.Exec("DELETE FROM keywords WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete keyword: %w", err)
	}
	return nil
}

// EnsureTag returns the id of the named tag, creating it if missing.
func (r *KeywordRepo) EnsureTag(name string) (int64, error) {
	var id int64
	err := r.db.QueryRow("SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to check existing tag: %w", err)
	}

	result, err := r.db.Exec("INSERT INTO tags (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tag: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get tag id: %w", err)
	}

	return id, nil
}

func (r *KeywordRepo) GetTags() ([]Tag, error) {
	rows, err := r.db.Query("SELECT id, name FROM tags ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag rows: %w", err)
	}

	return tags, nil
}

func (r *KeywordRepo) TagKeyword(keywordID, tagID int64) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO keyword_tags (keyword_id, tag_id) VALUES (?, ?)
	`, keywordID, tagID)
	if err != nil {
		return fmt.Errorf("failed to tag keyword: %w", err)
	}
	return nil
}

func (r *KeywordRepo) UntagKeyword(keywordID, tagID int64) error {
	_, err := r.db.Exec("DELETE FROM keyword_tags WHERE keyword_id = ? AND tag_id = ?", keywordID, tagID)
	if err != nil {
		return fmt.Errorf("failed to untag keyword: %w", err)
	}
	return nil
}
