// Package config loads chessdb's on-disk configuration, following the
// teacher's LoadConfig/isJSONFile/isYAMLFile pattern (spec §2.2):
// file-extension dispatch between JSON and YAML into the same struct.
package config

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConfigVersion is the only config schema version this build understands.
const ConfigVersion = 1

// Config is chessdb's full on-disk configuration.
type Config struct {
	originalFilepath string

	Version uint64 `json:"version" yaml:"version"`

	// DataDir is the database's root directory: one subdirectory per
	// chesskey.Level, each holding a partition's run files plus that
	// level's headerstore blob/index.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// IndexGranularity is the sparse index's sampling interval (entries
	// between consecutive samples).
	IndexGranularity int `json:"index_granularity" yaml:"index_granularity"`

	// MemoryBudgetBytes bounds the working set of a single sort/merge
	// stage (pipeline sort buffers, partition MergeAll's k-way merge
	// element count).
	MemoryBudgetBytes int64 `json:"memory_budget_bytes" yaml:"memory_budget_bytes"`

	// SortWorkers is the number of concurrent sort/write goroutines a
	// pipeline runs.
	SortWorkers int `json:"sort_workers" yaml:"sort_workers"`

	// FilePoolCapacity bounds the number of OS file handles internal/filestore.Pool
	// keeps open at once.
	FilePoolCapacity int `json:"file_pool_capacity" yaml:"file_pool_capacity"`

	// ListenAddress is consumed only by the out-of-scope query transport
	// (spec §2.4's serve stub); it lives here because it's ambient
	// configuration, not query-engine logic.
	ListenAddress string `json:"listen_address" yaml:"listen_address"`
}

// Default returns a Config with reasonable defaults for local use.
func Default() Config {
	return Config{
		Version:           ConfigVersion,
		DataDir:           "./chessdb-data",
		IndexGranularity:  128,
		MemoryBudgetBytes: 64 << 20,
		SortWorkers:       4,
		FilePoolCapacity:  256,
		ListenAddress:     "127.0.0.1:8080",
	}
}

// Load reads configFilepath (JSON or YAML, by extension) into a Config.
func Load(configFilepath string) (*Config, error) {
	var cfg Config
	switch {
	case isJSONFile(configFilepath):
		if err := loadFromJSON(configFilepath, &cfg); err != nil {
			return nil, err
		}
	case isYAMLFile(configFilepath):
		if err := loadFromYAML(configFilepath, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("config: file %q must be JSON or YAML", configFilepath)
	}
	cfg.originalFilepath = configFilepath
	return &cfg, nil
}

// ConfigFilepath returns the path this Config was loaded from, empty if
// it was built with Default.
func (c *Config) ConfigFilepath() string {
	return c.originalFilepath
}

// Validate checks the loaded config's invariants.
func (c *Config) Validate() error {
	if c.Version != ConfigVersion {
		return fmt.Errorf("config: version %d unsupported, want %d", c.Version, ConfigVersion)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must be set")
	}
	if c.IndexGranularity <= 0 {
		return fmt.Errorf("config: index_granularity must be positive")
	}
	if c.MemoryBudgetBytes <= 0 {
		return fmt.Errorf("config: memory_budget_bytes must be positive")
	}
	if c.SortWorkers <= 0 {
		return fmt.Errorf("config: sort_workers must be positive")
	}
	if c.FilePoolCapacity <= 0 {
		return fmt.Errorf("config: file_pool_capacity must be positive")
	}
	return nil
}

func isJSONFile(filepath string) bool {
	return strings.HasSuffix(filepath, ".json")
}

func isYAMLFile(filepath string) bool {
	return strings.HasSuffix(filepath, ".yaml") || strings.HasSuffix(filepath, ".yml")
}

func loadFromJSON(configFilepath string, dst any) error {
	b, err := os.ReadFile(configFilepath)
	if err != nil {
		return fmt.Errorf("config: open %q: %w", configFilepath, err)
	}
	return json.Unmarshal(b, dst)
}

func loadFromYAML(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("config: open %q: %w", configFilepath, err)
	}
	defer file.Close()
	return yaml.NewDecoder(file).Decode(dst)
}
