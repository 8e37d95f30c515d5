package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rankpulse/rankpulse/app/analytics"
	"github.com/rankpulse/rankpulse/app/config"
	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/pipeline"
	"github.com/rankpulse/rankpulse/app/scheduler"
	"github.com/rankpulse/rankpulse/app/tasks"
)

func NewHandler(configCache *config.ConfigCache, projects database.ProjectRepository,
	keywords database.KeywordRepository, serpRepo database.SerpRepository,
	gscRepo database.GSCRepository, pulls database.PullRepository,
	ctrModel *analytics.CTRModel, impact *analytics.ImpactEstimator,
	sov *analytics.SOVAggregator, p *pipeline.Pipeline, sched scheduler.SchedulerInterface) *Handler {
	return &Handler{
		configCache: configCache,
		projects:    projects,
		keywords:    keywords,
		serpRepo:    serpRepo,
		gscRepo:     gscRepo,
		pulls:       pulls,
		ctrModel:    ctrModel,
		impact:      impact,
		sov:         sov,
		pipeline:    p,
		scheduler:   sched,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if projectCount, err := h.projects.GetProjectCount(); err == nil {
		health["projects"] = projectCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	if projectCount, err := h.projects.GetProjectCount(); err == nil {
		stats["projects"] = projectCount
	}

	if pulls, err := h.pulls.GetPulls(); err == nil {
		stats["scheduled_pulls"] = len(pulls)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.projects.GetProjects()
	if err != nil {
		slog.Error("Database error", "operation", "get_projects", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(projects))
	for _, project := range projects {
		result = append(result, projectInfo(&project))
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetProject(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, projectInfo(project))
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.projects.UpsertProject(req.Name, req.Domain, strings.Join(req.BrandedTerms, ","),
		req.ConversionRate, req.ConversionValue)
	if err != nil {
		slog.Error("Database error", "operation", "upsert_project", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) DeleteProject(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	if err := h.projects.DeleteProject(project.ID); err != nil {
		slog.Error("Database error", "operation", "delete_project", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) SetProjectActive(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.projects.SetProjectActive(project.ID, *req.Active); err != nil {
		slog.Error("Database error", "operation", "set_project_active", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListKeywords(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	keywords, err := h.keywords.GetKeywords(project.ID)
	if err != nil {
		slog.Error("Database error", "operation", "get_keywords", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(keywords))
	for _, keyword := range keywords {
		info := map[string]interface{}{
			"id":            keyword.ID,
			"keyword":       keyword.Keyword,
			"active":        keyword.Active,
			"search_volume": keyword.SearchVolume,
		}
		if keyword.LastVolumeUpdate != "" {
			info["last_volume_update"] = keyword.LastVolumeUpdate
		}
		if obs, err := h.serpRepo.GetLatestObservation(keyword.ID); err == nil && obs != nil {
			info["rank"] = obs.Rank
			info["observed_at"] = obs.Date.Format(time.RFC3339)
		}
		result = append(result, info)
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) AddKeywords(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	var req addKeywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]int64, 0, len(req.Keywords))
	for _, keyword := range req.Keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		id, err := h.keywords.UpsertKeyword(project.ID, keyword)
		if err != nil {
			slog.Error("Database error", "operation", "upsert_keyword", "keyword", keyword, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		ids = append(ids, id)
	}

	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

func (h *Handler) DeleteKeyword(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	if err := h.keywords.DeleteKeyword(keyword.ID); err != nil {
		slog.Error("Database error", "operation", "delete_keyword", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) SetKeywordActive(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.keywords.SetKeywordActive(keyword.ID, *req.Active); err != nil {
		slog.Error("Database error", "operation", "set_keyword_active", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

// FetchKeyword runs a one-shot ranking fetch for a single keyword and
// returns the observation it produced.
func (h *Handler) FetchKeyword(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	if err := h.pipeline.RunKeyword(c.Request.Context(), keyword.ID); err != nil {
		slog.Error("Single keyword fetch failed", "keyword", keyword.Keyword, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetch failed"})
		return
	}

	observation, err := h.serpRepo.GetLatestObservation(keyword.ID)
	if err != nil || observation == nil {
		slog.Error("Database error", "operation", "get_latest_observation", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"keyword_id":    keyword.ID,
		"keyword":       keyword.Keyword,
		"rank":          observation.Rank,
		"search_volume": observation.SearchVolume,
		"observed_at":   observation.Date,
	})
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.keywords.GetTags()
	if err != nil {
		slog.Error("Database error", "operation", "get_tags", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(tags))
	for _, tag := range tags {
		result = append(result, map[string]interface{}{"id": tag.ID, "name": tag.Name})
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) TagKeyword(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	var req tagKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tagID, err := h.keywords.EnsureTag(req.Tag)
	if err != nil {
		slog.Error("Database error", "operation", "ensure_tag", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.keywords.TagKeyword(keyword.ID, tagID); err != nil {
		slog.Error("Database error", "operation", "tag_keyword", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tag_id": tagID})
}

func (h *Handler) UntagKeyword(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	tagID, err := strconv.ParseInt(c.Param("tagId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
		return
	}

	if err := h.keywords.UntagKeyword(keyword.ID, tagID); err != nil {
		slog.Error("Database error", "operation", "untag_keyword", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetRankHistory(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	limit := 30
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	history, err := h.serpRepo.GetRankHistory(keyword.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_rank_history", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(history))
	for _, obs := range history {
		result = append(result, map[string]interface{}{
			"observation_id": obs.ID,
			"date":           obs.Date.Format(time.RFC3339),
			"rank":           obs.Rank,
			"search_volume":  obs.SearchVolume,
		})
	}

	c.JSON(http.StatusOK, gin.H{"keyword": keyword.Keyword, "history": result})
}

// GetObservationPayload returns the raw provider payload stored with one
// observation, for result-page inspection.
func (h *Handler) GetObservationPayload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid observation id"})
		return
	}

	obs, err := h.serpRepo.GetObservation(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_observation", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if obs == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Data(http.StatusOK, "application/json", obs.FullData)
}

func (h *Handler) GetImpact(c *gin.Context) {
	keyword, ok := h.keywordByParam(c)
	if !ok {
		return
	}

	var result *analytics.ImpactResult
	var err error

	if raw := c.Query("before"); raw != "" {
		before, parseErr := database.ParseTime(raw)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before timestamp"})
			return
		}
		result, err = h.impact.PreviousForKeyword(keyword.ID, before)
	} else {
		result, err = h.impact.ForKeyword(keyword.ID)
	}

	if errors.Is(err, analytics.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no observation available"})
		return
	}
	if err != nil {
		slog.Error("Impact estimation failed", "keyword", keyword.Keyword, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetShareOfVoice(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if raw := c.Query("from"); raw != "" {
		parsed, err := database.ParseTime(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := database.ParseTime(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		to = parsed
	}

	var tagID int64
	if raw := c.Query("tag_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
			return
		}
		tagID = parsed
	}

	report, err := h.sov.Run(project.ID, from, to, tagID)
	if errors.Is(err, analytics.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no ranked observations in range"})
		return
	}
	if err != nil {
		slog.Error("Share of voice aggregation failed", "project", project.Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetCTRCurve(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	curve, err := h.ctrModel.CurveForProject(project.ID)
	if err != nil {
		slog.Error("CTR curve computation failed", "project", project.Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	byRank := make(map[string]float64, len(curve))
	for rank, ctr := range curve {
		byRank[strconv.Itoa(rank)] = ctr
	}

	c.JSON(http.StatusOK, gin.H{"project_id": project.ID, "curve": byRank})
}

// TriggerPull enqueues an ad hoc pull for a project, optionally restricted
// to a tag, outside any recurring schedule.
func (h *Handler) TriggerPull(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	var tagID int64
	if raw := c.Query("tag_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
			return
		}
		tagID = parsed
	}

	siteURL := ""
	if projectConfig, err := h.configCache.GetConfig(project.Name); err == nil {
		siteURL = projectConfig.GSCSiteURL
	}

	task := tasks.NewPullTask(project.Name, project.ID, tagID, siteURL, h.pipeline, nil)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue pull task", "project", project.Name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task queue unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.GetID()})
}

func (h *Handler) ListPulls(c *gin.Context) {
	pulls, err := h.pulls.GetPulls()
	if err != nil {
		slog.Error("Database error", "operation", "get_pulls", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(pulls))
	for _, pull := range pulls {
		info := map[string]interface{}{
			"id":         pull.ID,
			"project_id": pull.ProjectID,
			"frequency":  string(pull.Frequency),
			"next_pull":  pull.NextPull.Format(time.RFC3339),
		}
		if pull.TagID != 0 {
			info["tag_id"] = pull.TagID
		}
		if pull.LastRun != nil {
			info["last_run"] = pull.LastRun.Format(time.RFC3339)
		}
		result = append(result, info)
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) RunPullNow(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pull id"})
		return
	}

	if err := h.scheduler.RunNow(id); err != nil {
		slog.Error("Manual pull trigger failed", "pull_id", id, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"pull_id": id})
}

func (h *Handler) RunPullDelayed(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pull id"})
		return
	}

	if err := h.scheduler.RunInOneMinute(id); err != nil {
		slog.Error("Delayed pull trigger failed", "pull_id", id, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"pull_id": id, "delay": "1m"})
}

func (h *Handler) SetGSCCredentials(c *gin.Context) {
	project, ok := h.projectByParam(c)
	if !ok {
		return
	}

	var req setCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gscRepo.SetCredentials(project.ID, req.Credentials); err != nil {
		slog.Error("Database error", "operation", "set_credentials", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) projectByParam(c *gin.Context) (*database.Project, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return nil, false
	}

	project, err := h.projects.GetProject(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_project", "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if project == nil {
		c.Status(http.StatusNotFound)
		return nil, false
	}

	return project, true
}

func (h *Handler) keywordByParam(c *gin.Context) (*database.Keyword, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid keyword id"})
		return nil, false
	}

	keyword, err := h.keywords.GetKeyword(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_keyword", "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if keyword == nil {
		c.Status(http.StatusNotFound)
		return nil, false
	}

	return keyword, true
}

func projectInfo(project *database.Project) map[string]interface{} {
	info := map[string]interface{}{
		"id":               project.ID,
		"name":             project.Name,
		"domain":           project.Domain,
		"active":           project.Active,
		"conversion_rate":  project.ConversionRate,
		"conversion_value": project.ConversionValue,
	}
	if project.BrandedTerms != "" {
		info["branded_terms"] = strings.Split(project.BrandedTerms, ",")
	}
	return info
}
