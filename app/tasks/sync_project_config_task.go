package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rankpulse/rankpulse/app/config"
	"github.com/rankpulse/rankpulse/app/database"
)

// SyncProjectConfigTask upserts a project's YAML configuration into the
// database: the project row, its keywords and tags, and the credentials-free
// parts of its schedule. Keywords removed from the file stay in the database
// so their history survives; they are just never pulled again once
// deactivated by hand.
type SyncProjectConfigTask struct {
	Task
	ProjectConfig *config.Project

	projects database.ProjectRepository
	keywords database.KeywordRepository
}

func NewSyncProjectConfigTask(projectConfig *config.Project,
	projects database.ProjectRepository, keywords database.KeywordRepository) *SyncProjectConfigTask {
	return &SyncProjectConfigTask{
		Task:          NewTask(TaskTypeSyncProjectConfig, projectConfig.Name),
		ProjectConfig: projectConfig,
		projects:      projects,
		keywords:      keywords,
	}
}

func (t *SyncProjectConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cfg := t.ProjectConfig

	projectID, err := t.projects.UpsertProject(
		cfg.Name,
		cfg.Domain,
		strings.Join(cfg.Branded, ","),
		cfg.Conversion.Rate,
		cfg.Conversion.Value)
	if err != nil {
		slog.Error("Task failed", "type", "SyncProjectConfig", "project", t.ProjectName, "error", err)
		return fmt.Errorf("failed to sync project config to database: %w", err)
	}

	for _, keyword := range cfg.Keywords {
		keywordID, err := t.keywords.UpsertKeyword(projectID, keyword.Keyword)
		if err != nil {
			return fmt.Errorf("failed to sync keyword %q: %w", keyword.Keyword, err)
		}

		for _, tag := range keyword.Tags {
			tagID, err := t.keywords.EnsureTag(tag)
			if err != nil {
				return fmt.Errorf("failed to ensure tag %q: %w", tag, err)
			}
			if err := t.keywords.TagKeyword(keywordID, tagID); err != nil {
				return fmt.Errorf("failed to tag keyword %q: %w", keyword.Keyword, err)
			}
		}
	}

	slog.Info("Task completed",
		"type", "SyncProjectConfig",
		"project", t.ProjectName,
		"duration", t.GetDuration(),
		"keywords", len(cfg.Keywords))

	return nil
}
