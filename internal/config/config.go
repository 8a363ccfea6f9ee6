package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/clusterview/internal/kmeans"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/clusterview.defaults.json"

// Config holds run defaults for the CLI and the web UI. Every field is
// optional; the Get* methods supply fallbacks for fields left unset, so
// partial files are safe. Command-line flags override loaded values.
type Config struct {
	// Input
	DatasetPath *string `json:"dataset_path,omitempty"`
	XColumn     *string `json:"x_column,omitempty"`
	YColumn     *string `json:"y_column,omitempty"`

	// Clustering
	Clusters      *int    `json:"clusters,omitempty"`
	MaxIterations *int    `json:"max_iterations,omitempty"`
	Seed          *uint64 `json:"seed,omitempty"`

	// Output
	OutputPath *string `json:"output_path,omitempty"` // augmented CSV
	PlotDir    *string `json:"plot_dir,omitempty"`
	DBPath     *string `json:"db_path,omitempty"` // empty disables run history

	// Web UI
	Listen *string `json:"listen,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file.
// The file must have a .json extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Clusters != nil && *c.Clusters < 1 {
		return fmt.Errorf("clusters must be at least 1, got %d", *c.Clusters)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative, got %d", *c.MaxIterations)
	}
	if c.DatasetPath != nil && *c.DatasetPath == "" {
		return fmt.Errorf("dataset_path must not be empty")
	}
	if c.XColumn != nil && *c.XColumn == "" {
		return fmt.Errorf("x_column must not be empty")
	}
	if c.YColumn != nil && *c.YColumn == "" {
		return fmt.Errorf("y_column must not be empty")
	}
	if c.Listen != nil && *c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	return nil
}

// GetDatasetPath returns the dataset_path value or the default.
func (c *Config) GetDatasetPath() string {
	if c.DatasetPath == nil {
		return "wine.csv"
	}
	return *c.DatasetPath
}

// GetXColumn returns the x_column value or the default.
func (c *Config) GetXColumn() string {
	if c.XColumn == nil {
		return "Alcohol"
	}
	return *c.XColumn
}

// GetYColumn returns the y_column value or the default.
func (c *Config) GetYColumn() string {
	if c.YColumn == nil {
		return "Malic_Acid"
	}
	return *c.YColumn
}

// GetClusters returns the clusters value or the default.
func (c *Config) GetClusters() int {
	if c.Clusters == nil {
		return 3
	}
	return *c.Clusters
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *Config) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return kmeans.DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetSeed returns the seed value or the default.
func (c *Config) GetSeed() uint64 {
	if c.Seed == nil {
		return kmeans.DefaultSeed
	}
	return *c.Seed
}

// GetOutputPath returns the output_path value or the default.
func (c *Config) GetOutputPath() string {
	if c.OutputPath == nil {
		return "output.csv"
	}
	return *c.OutputPath
}

// GetPlotDir returns the plot_dir value or the default.
func (c *Config) GetPlotDir() string {
	if c.PlotDir == nil {
		return "plots"
	}
	return *c.PlotDir
}

// GetDBPath returns the db_path value or the default. An empty path
// disables run history.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return "clusterview.db"
	}
	return *c.DBPath
}

// GetListen returns the listen value or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return "localhost:8080"
	}
	return *c.Listen
}

// KMeansOptions converts the clustering settings into engine options.
func (c *Config) KMeansOptions() []kmeans.Option {
	return []kmeans.Option{
		kmeans.WithMaxIterations(c.GetMaxIterations()),
		kmeans.WithSeed(c.GetSeed()),
	}
}
