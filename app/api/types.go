package api

import (
	"github.com/rankpulse/rankpulse/app/analytics"
	"github.com/rankpulse/rankpulse/app/config"
	"github.com/rankpulse/rankpulse/app/database"
	"github.com/rankpulse/rankpulse/app/pipeline"
	"github.com/rankpulse/rankpulse/app/scheduler"
)

type Handler struct {
	configCache *config.ConfigCache
	projects    database.ProjectRepository
	keywords    database.KeywordRepository
	serpRepo    database.SerpRepository
	gscRepo     database.GSCRepository
	pulls       database.PullRepository
	ctrModel    *analytics.CTRModel
	impact      *analytics.ImpactEstimator
	sov         *analytics.SOVAggregator
	pipeline    *pipeline.Pipeline
	scheduler   scheduler.SchedulerInterface
}

type createProjectRequest struct {
	Name            string   `json:"name" binding:"required"`
	Domain          string   `json:"domain" binding:"required"`
	BrandedTerms    []string `json:"branded_terms"`
	ConversionRate  float64  `json:"conversion_rate"`
	ConversionValue float64  `json:"conversion_value"`
}

type addKeywordsRequest struct {
	Keywords []string `json:"keywords" binding:"required"`
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type tagKeywordRequest struct {
	Tag string `json:"tag" binding:"required"`
}

type setCredentialsRequest struct {
	Credentials string `json:"credentials" binding:"required"`
}
