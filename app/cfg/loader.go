package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./rankpulse.db" description:"Path to the SQLite database file"`

	// Application configuration
	ProjectsDir  string `long:"projects-dir" env:"PROJECTS_DIR" default:"./projects" description:"Directory containing project configuration files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Fetcher configuration
	FetchConcurrency int `long:"fetch-concurrency" env:"FETCH_CONCURRENCY" default:"4" description:"Maximum concurrent in-flight external calls"`
	FetchMaxRetries  int `long:"fetch-max-retries" env:"FETCH_MAX_RETRIES" default:"3" description:"Retry attempts for rate-limited or transient failures"`
	FetchBaseDelayMS int `long:"fetch-base-delay-ms" env:"FETCH_BASE_DELAY_MS" default:"500" description:"Base retry delay in milliseconds (doubled per attempt)"`

	// Ranking provider (SpaceSERP-compatible)
	SerpAPIKey   string `long:"serp-api-key" env:"SERP_API_KEY" description:"API key for the ranking provider"`
	SerpEndpoint string `long:"serp-endpoint" env:"SERP_ENDPOINT" default:"https://api.spaceserp.com/google/search" description:"Ranking provider endpoint"`
	SerpLocation string `long:"serp-location" env:"SERP_LOCATION" default:"Midtown Manhattan,New York,United States" description:"Ranking provider location parameter"`
	SerpDomain   string `long:"serp-domain" env:"SERP_DOMAIN" default:"google.com" description:"Search engine domain"`
	SerpCountry  string `long:"serp-country" env:"SERP_COUNTRY" default:"us" description:"Search country code (gl)"`
	SerpLanguage string `long:"serp-language" env:"SERP_LANGUAGE" default:"en" description:"Search language code (hl)"`
	SerpDevice   string `long:"serp-device" env:"SERP_DEVICE" default:"desktop" description:"Device type for ranking requests"`
	SerpPageSize int    `long:"serp-page-size" env:"SERP_PAGE_SIZE" default:"100" description:"Number of results to request per keyword"`

	// Search volume provider
	VolumeProvider     string `long:"volume-provider" env:"VOLUME_PROVIDER" default:"grepwords" description:"Search volume provider (grepwords, dataforseo, disabled)"`
	GrepwordsAPIKey    string `long:"grepwords-api-key" env:"GREPWORDS_API_KEY" description:"API key for the Grepwords volume provider"`
	GrepwordsEndpoint  string `long:"grepwords-endpoint" env:"GREPWORDS_ENDPOINT" default:"https://data.grepwords.com/v1/keywords/lookup" description:"Grepwords endpoint"`
	DataForSEOLogin    string `long:"dataforseo-login" env:"DATAFORSEO_LOGIN" description:"DataForSEO API login"`
	DataForSEOPassword string `long:"dataforseo-password" env:"DATAFORSEO_PASSWORD" description:"DataForSEO API password"`
	VolumeCountry      string `long:"volume-country" env:"VOLUME_COUNTRY" default:"us" description:"Country code for volume lookups"`
	VolumeLanguage     string `long:"volume-language" env:"VOLUME_LANGUAGE" default:"en" description:"Language code for volume lookups"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RankPulse/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		ProjectsDir:        raw.ProjectsDir,
		Port:               raw.Port,
		WorkerCount:        raw.WorkerCount,
		APIAccessKey:       raw.APIAccessKey,
		FetchConcurrency:   raw.FetchConcurrency,
		FetchMaxRetries:    raw.FetchMaxRetries,
		FetchBaseDelayMS:   raw.FetchBaseDelayMS,
		SerpAPIKey:         raw.SerpAPIKey,
		SerpEndpoint:       raw.SerpEndpoint,
		SerpLocation:       raw.SerpLocation,
		SerpDomain:         raw.SerpDomain,
		SerpCountry:        raw.SerpCountry,
		SerpLanguage:       raw.SerpLanguage,
		SerpDevice:         raw.SerpDevice,
		SerpPageSize:       raw.SerpPageSize,
		VolumeProvider:     raw.VolumeProvider,
		GrepwordsAPIKey:    raw.GrepwordsAPIKey,
		GrepwordsEndpoint:  raw.GrepwordsEndpoint,
		DataForSEOLogin:    raw.DataForSEOLogin,
		DataForSEOPassword: raw.DataForSEOPassword,
		VolumeCountry:      raw.VolumeCountry,
		VolumeLanguage:     raw.VolumeLanguage,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
