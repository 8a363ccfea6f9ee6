package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/clusterview/internal/config"
	"github.com/banshee-data/clusterview/internal/dataset"
	"github.com/banshee-data/clusterview/internal/db"
	"github.com/banshee-data/clusterview/internal/fsutil"
	"github.com/banshee-data/clusterview/internal/kmeans"
	"github.com/banshee-data/clusterview/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoGroups = "x,y\n1,1\n1,2\n9,9\n9,10\n"

func testFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("clusterview", flag.ContinueOnError)
	fs.String("data", "", "")
	fs.String("x", "", "")
	fs.String("y", "", "")
	fs.Int("k", 0, "")
	fs.Int("max-iter", 0, "")
	fs.Uint64("seed", 0, "")
	fs.String("out", "", "")
	fs.String("db", "", "")
	fs.String("listen", "", "")
	fs.Bool("png", false, "")
	return fs
}

func TestApplyFlags_OverridesOnlyGivenFlags(t *testing.T) {
	fs := testFlagSet()
	require.NoError(t, fs.Parse([]string{"-k", "5", "-seed", "9", "-x", "Hue", "-db", "", "-png"}))

	path := "wine.csv"
	cfg := config.Empty()
	cfg.DatasetPath = &path

	applyFlags(fs, cfg)

	assert.Equal(t, 5, cfg.GetClusters())
	assert.Equal(t, uint64(9), cfg.GetSeed())
	assert.Equal(t, "Hue", cfg.GetXColumn())
	assert.Equal(t, "", cfg.GetDBPath())
	assert.Equal(t, "wine.csv", cfg.GetDatasetPath())
	assert.Equal(t, "Malic_Acid", cfg.GetYColumn())
	assert.Equal(t, kmeans.DefaultMaxIterations, cfg.GetMaxIterations())
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Empty(), cfg)

	_, err = loadConfig("settings.yaml")
	assert.Error(t, err)
}

func TestLoadTable(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.AddFile("/data/two.csv", []byte(twoGroups))

	data, x, y := "/data/two.csv", "x", "y"
	cfg := config.Empty()
	cfg.DatasetPath, cfg.XColumn, cfg.YColumn = &data, &x, &y

	table, err := loadTable(mfs, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Rows())

	// defaults name wine columns this file lacks
	cfg.XColumn, cfg.YColumn = nil, nil
	_, err = loadTable(mfs, cfg)
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)
	assert.Contains(t, err.Error(), `"Alcohol"`)

	missing := "/data/none.csv"
	cfg.DatasetPath = &missing
	_, err = loadTable(mfs, cfg)
	assert.Error(t, err)
}

func TestRunOnce_LogsOverwrite(t *testing.T) {
	var logged []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(prev)

	table, err := dataset.Parse(strings.NewReader(twoGroups))
	require.NoError(t, err)

	x, y, k, out := "x", "y", 2, "/work/output.csv"
	cfg := config.Empty()
	cfg.XColumn, cfg.YColumn, cfg.Clusters, cfg.OutputPath = &x, &y, &k, &out

	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, runOnce(context.Background(), &bytes.Buffer{}, cfg, table, mfs, nil, outputs{}))
	assert.NotContains(t, logged, "overwriting /work/output.csv")

	require.NoError(t, runOnce(context.Background(), &bytes.Buffer{}, cfg, table, mfs, nil, outputs{}))
	assert.Contains(t, logged, "overwriting /work/output.csv")
}

func TestRunOnce(t *testing.T) {
	table, err := dataset.Parse(strings.NewReader(twoGroups))
	require.NoError(t, err)

	store, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	x, y, k, out, plots := "x", "y", 2, "/work/output.csv", "/work/plots"
	cfg := config.Empty()
	cfg.XColumn, cfg.YColumn, cfg.Clusters = &x, &y, &k
	cfg.OutputPath, cfg.PlotDir = &out, &plots

	mfs := fsutil.NewMemoryFileSystem()
	var buf bytes.Buffer
	require.NoError(t, runOnce(context.Background(), &buf, cfg, table, mfs, store, outputs{PNG: true, HTML: true}))

	listing := buf.String()
	assert.Contains(t, listing, "Centroid: 0 (")
	assert.Contains(t, listing, "Centroid: 1 (")
	assert.Contains(t, listing, "converged")

	exported, ok := mfs.Contents(out)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(exported), "x,y,cluster\n"))

	assert.Equal(t, []string{
		"/work/plots/kmeans_x_y_k2.html",
		"/work/plots/kmeans_x_y_k2.png",
	}, mfs.Files("/work/plots"))

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].K)
	assert.Equal(t, kmeans.DefaultSeed, runs[0].Seed)
}

func TestRunOnce_Errors(t *testing.T) {
	table, err := dataset.Parse(strings.NewReader(twoGroups))
	require.NoError(t, err)
	mfs := fsutil.NewMemoryFileSystem()

	x, y := "x", "y"
	cfg := config.Empty()
	cfg.XColumn, cfg.YColumn = &x, &y

	// default k of 3 still fits four rows
	require.NoError(t, runOnce(context.Background(), &bytes.Buffer{}, cfg, table, mfs, nil, outputs{}))

	k := 5
	cfg.Clusters = &k
	err = runOnce(context.Background(), &bytes.Buffer{}, cfg, table, mfs, nil, outputs{})
	assert.ErrorIs(t, err, kmeans.ErrInvalidClusterCount)

	missing := "nope"
	cfg.XColumn = &missing
	err = runOnce(context.Background(), &bytes.Buffer{}, cfg, table, mfs, nil, outputs{})
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)
}
