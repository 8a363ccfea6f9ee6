package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/clusterview/internal/kmeans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	assert.Equal(t, "wine.csv", cfg.GetDatasetPath())
	assert.Equal(t, "Alcohol", cfg.GetXColumn())
	assert.Equal(t, "Malic_Acid", cfg.GetYColumn())
	assert.Equal(t, 3, cfg.GetClusters())
	assert.Equal(t, kmeans.DefaultMaxIterations, cfg.GetMaxIterations())
	assert.Equal(t, kmeans.DefaultSeed, cfg.GetSeed())
	assert.Equal(t, "output.csv", cfg.GetOutputPath())
	assert.Equal(t, "plots", cfg.GetPlotDir())
	assert.Equal(t, "clusterview.db", cfg.GetDBPath())
	assert.Equal(t, "localhost:8080", cfg.GetListen())
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaultsFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultConfigPath))
	require.NoError(t, err)

	assert.Equal(t, "Alcohol", cfg.GetXColumn())
	assert.Equal(t, 3, cfg.GetClusters())
	assert.Equal(t, uint64(42), cfg.GetSeed())
}

func TestLoad_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"clusters": 5, "seed": 7, "db_path": ""}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.GetClusters())
	assert.Equal(t, uint64(7), cfg.GetSeed())
	assert.Equal(t, "", cfg.GetDBPath())
	// unset fields fall back
	assert.Equal(t, "wine.csv", cfg.GetDatasetPath())
	assert.Equal(t, kmeans.DefaultMaxIterations, cfg.GetMaxIterations())
	assert.Len(t, cfg.KMeansOptions(), 2)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, ".json extension"},
		{"bad json", "cfg.json", `{"clusters":`, "failed to parse"},
		{"zero clusters", "cfg.json", `{"clusters": 0}`, "clusters must be at least 1"},
		{"negative iterations", "cfg.json", `{"max_iterations": -1}`, "max_iterations must be non-negative"},
		{"empty dataset", "cfg.json", `{"dataset_path": ""}`, "dataset_path"},
		{"empty x column", "cfg.json", `{"x_column": ""}`, "x_column"},
		{"empty y column", "cfg.json", `{"y_column": ""}`, "y_column"},
		{"empty listen", "cfg.json", `{"listen": ""}`, "listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat")
}

func TestLoad_TooLarge(t *testing.T) {
	body := `{"dataset_path": "` + strings.Repeat("a", 1024*1024) + `"}`
	_, err := Load(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
