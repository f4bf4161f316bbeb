package feed

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxItems = 50
	DefaultTimeout  = 30
)

// ConfigCache holds source definitions loaded from <feeds-dir>/<name>.yml.
type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

// Run (re)loads every config file. A missing directory yields an empty cache.
func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		slog.Warn("Feeds directory not found", "path", cc.feedsDir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	loaded := make(map[string]*Config, len(files))
	for _, file := range files {
		feedName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.parseConfig(file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		config.Name = feedName

		if err := validateConfig(config); err != nil {
			return fmt.Errorf("invalid config %s: %w", file, err)
		}

		loaded[feedName] = config
		slog.Debug("Configuration loaded", "feed", feedName, "source", config.SourceLabel(), "enabled", config.Settings.Enabled)
	}

	cc.mu.Lock()
	cc.cache = loaded
	cc.mu.Unlock()

	return nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return feedConfig, nil
}

// GetEnabledConfigs returns enabled sources ordered by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make([]*Config, 0, len(cc.cache))
	for _, name := range slices.Sorted(maps.Keys(cc.cache)) {
		if config := cc.cache[name]; config.Settings.Enabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Sources are enabled unless the file says otherwise.
	feedConfig := Config{Settings: ConfigSettings{Enabled: true}}
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if feedConfig.Settings.MaxItems == 0 {
		feedConfig.Settings.MaxItems = DefaultMaxItems
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = DefaultTimeout
	}

	return &feedConfig, nil
}

func validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	if feedConfig.Name == "" {
		return fmt.Errorf("feed name is required")
	}
	if feedConfig.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	if parsed, err := url.Parse(feedConfig.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("feed URL must be absolute: %s", feedConfig.URL)
	}

	if feedConfig.Settings.MaxItems < 0 {
		return fmt.Errorf("max items must be non-negative")
	}
	if feedConfig.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	for i, filter := range feedConfig.Filters {
		if !slices.Contains(filterFields, filter.Field) {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
