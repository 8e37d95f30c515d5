package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rankpulse/rankpulse/app/pipeline"
)

// PullTask runs one rank pull for a project (optionally restricted to a
// tag) and then best-effort syncs Search Console analytics. Retries happen
// inside the fetcher per keyword, so the task itself runs at most once;
// OnComplete lets the scheduler re-arm the pull regardless of outcome.
type PullTask struct {
	Task
	ProjectID  int64
	TagID      int64
	GSCSiteURL string
	OnComplete func(result *pipeline.Result, err error)

	pipeline *pipeline.Pipeline
}

func NewPullTask(projectName string, projectID, tagID int64, gscSiteURL string,
	p *pipeline.Pipeline, onComplete func(result *pipeline.Result, err error)) *PullTask {
	task := NewTask(TaskTypePull, projectName)
	task.MaxRetries = 0

	return &PullTask{
		Task:       task,
		ProjectID:  projectID,
		TagID:      tagID,
		GSCSiteURL: gscSiteURL,
		OnComplete: onComplete,
		pipeline:   p,
	}
}

func (t *PullTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		t.complete(nil, ctx.Err())
		return ctx.Err()
	default:
	}

	result, err := t.pipeline.Run(ctx, t.ProjectID, t.TagID)
	if err != nil {
		t.complete(nil, err)
		slog.Error("Task failed", "type", "Pull", "project", t.ProjectName, "error", err)
		return fmt.Errorf("failed to run pull: %w", err)
	}

	if t.GSCSiteURL != "" {
		now := time.Now()
		if syncErr := t.pipeline.SyncAnalytics(ctx, t.ProjectID, t.GSCSiteURL, now.AddDate(0, 0, -30), now); syncErr != nil {
			slog.Warn("Analytics sync failed", "project", t.ProjectName, "error", syncErr)
		}
	}

	t.complete(result, nil)

	slog.Info("Task completed",
		"type", "Pull",
		"project", t.ProjectName,
		"duration", t.GetDuration(),
		"processed", result.Processed,
		"failed", result.Failed)

	return nil
}

func (t *PullTask) complete(result *pipeline.Result, err error) {
	if t.OnComplete != nil {
		t.OnComplete(result, err)
	}
}
