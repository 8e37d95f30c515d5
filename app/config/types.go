package config

// Project configuration types, loaded from per-project YAML files.

type Project struct {
	Name       string     // Derived from filename (without .yml extension)
	Domain     string     `yaml:"domain"`
	GSCSiteURL string     `yaml:"gsc_site_url"`
	Branded    []string   `yaml:"branded_terms"`
	Conversion Conversion `yaml:"conversion"`
	Schedule   Schedule   `yaml:"schedule"`
	Keywords   []Keyword  `yaml:"keywords"`
}

type Conversion struct {
	Rate  float64 `yaml:"rate"`
	Value float64 `yaml:"value"`
}

type Schedule struct {
	Enabled   bool   `yaml:"enabled"`
	Frequency string `yaml:"frequency"` // daily, weekly, monthly, test
}

type Keyword struct {
	Keyword string   `yaml:"keyword"`
	Tags    []string `yaml:"tags"`
}
