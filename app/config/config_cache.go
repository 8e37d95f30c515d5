package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ConfigCache loads and caches per-project YAML configuration files. The
// file name (without extension) is the project name.
type ConfigCache struct {
	projectsDir string
	cache       map[string]*Project
	mu          sync.RWMutex
}

func NewConfigCache(projectsDir string) *ConfigCache {
	return &ConfigCache{
		projectsDir: projectsDir,
		cache:       make(map[string]*Project),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.projectsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.projectsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		projectName := fileName[:len(fileName)-4] // Remove .yml extension

		project, err := cc.LoadConfig(projectName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "project", projectName, "domain", project.Domain,
			"keywords", len(project.Keywords), "frequency", project.Schedule.Frequency)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(projectName string) (*Project, error) {
	configFile := cc.getConfigFilePath(projectName)
	project, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	// Set project name from parameter
	project.Name = projectName

	if err := cc.validateConfig(project); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[project.Name] = project

	return project, nil
}

func (cc *ConfigCache) GetConfig(projectName string) (*Project, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	project, ok := cc.cache[projectName]
	if !ok {
		return nil, fmt.Errorf("project config with name '%s' not found", projectName)
	}
	return project, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Project {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Project, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Project, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if project.Schedule.Frequency == "" {
		project.Schedule.Frequency = "daily"
	}
	if project.Conversion.Rate == 0 {
		project.Conversion.Rate = 0.02
	}
	if project.Conversion.Value == 0 {
		project.Conversion.Value = 1
	}

	return &project, nil
}

func (cc *ConfigCache) validateConfig(project *Project) error {
	if project == nil {
		return fmt.Errorf("project config is nil")
	}

	requiredFields := map[string]string{
		"project name":   project.Name,
		"project domain": project.Domain,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	validFrequencies := map[string]bool{
		"daily":   true,
		"weekly":  true,
		"monthly": true,
		"test":    true,
	}

	if !validFrequencies[project.Schedule.Frequency] {
		return fmt.Errorf("invalid schedule frequency: %s", project.Schedule.Frequency)
	}

	if project.Conversion.Rate < 0 || project.Conversion.Rate > 1 {
		return fmt.Errorf("conversion rate must be between 0 and 1")
	}
	if project.Conversion.Value < 0 {
		return fmt.Errorf("conversion value must be non-negative")
	}

	for i, keyword := range project.Keywords {
		if keyword.Keyword == "" {
			return fmt.Errorf("keyword at index %d is empty", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(projectName string) string {
	return filepath.Join(cc.projectsDir, projectName+".yml")
}
