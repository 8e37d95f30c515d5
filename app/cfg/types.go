package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ProjectsDir  string
	Port         string
	WorkerCount  int
	APIAccessKey string

	// Fetcher configuration
	FetchConcurrency int
	FetchMaxRetries  int
	FetchBaseDelayMS int

	// Ranking provider (SpaceSERP-compatible)
	SerpAPIKey   string
	SerpEndpoint string
	SerpLocation string
	SerpDomain   string
	SerpCountry  string
	SerpLanguage string
	SerpDevice   string
	SerpPageSize int

	// Search volume provider
	VolumeProvider     string
	GrepwordsAPIKey    string
	GrepwordsEndpoint  string
	DataForSEOLogin    string
	DataForSEOPassword string
	VolumeCountry      string
	VolumeLanguage     string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
