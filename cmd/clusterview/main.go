package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/banshee-data/clusterview/internal/api"
	"github.com/banshee-data/clusterview/internal/charts"
	"github.com/banshee-data/clusterview/internal/config"
	"github.com/banshee-data/clusterview/internal/dataset"
	"github.com/banshee-data/clusterview/internal/db"
	"github.com/banshee-data/clusterview/internal/fsutil"
	"github.com/banshee-data/clusterview/internal/kmeans"
	"github.com/banshee-data/clusterview/internal/monitoring"
	"github.com/banshee-data/clusterview/internal/report"
	"github.com/banshee-data/clusterview/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	dataPath    = flag.String("data", "", "Dataset CSV path")
	xColumn     = flag.String("x", "", "Column plotted on the x axis")
	yColumn     = flag.String("y", "", "Column plotted on the y axis")
	clusters    = flag.Int("k", 0, "Number of clusters")
	maxIter     = flag.Int("max-iter", 0, "Maximum update passes (0 returns the initial centroids)")
	seed        = flag.Uint64("seed", 0, "Seed for initial centroid sampling")
	outPath     = flag.String("out", "", "Path of the augmented CSV")
	writePNG    = flag.Bool("png", false, "Write a PNG scatter plot into the plot directory")
	writeHTML   = flag.Bool("html", false, "Write an interactive HTML chart into the plot directory")
	dbPath      = flag.String("db", "", "Run history database (empty string disables history)")
	serve       = flag.Bool("serve", false, "Start the web UI instead of a one-shot run")
	listen      = flag.String("listen", "", "Web UI listen address")
	openUI      = flag.Bool("open", false, "Open the web UI in a browser once listening")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("clusterview %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(flag.CommandLine, cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid settings: %v", err)
	}

	fsys := fsutil.OSFileSystem{}
	table, err := loadTable(fsys, cfg)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	log.Printf("loaded %d rows from %s", table.Rows(), cfg.GetDatasetPath())

	var store *db.DB
	if path := cfg.GetDBPath(); path != "" {
		store, err = db.NewDB(path)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		if err := serveUI(ctx, cfg, table, fsys, store, *openUI); err != nil {
			log.Fatalf("web UI failed: %v", err)
		}
		return
	}

	opts := outputs{PNG: *writePNG, HTML: *writeHTML}
	if err := runOnce(ctx, os.Stdout, cfg, table, fsys, store, opts); err != nil {
		log.Fatalf("clustering failed: %v", err)
	}
}

// loadConfig reads path, or returns an empty config when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Empty(), nil
	}
	return config.Load(path)
}

// applyFlags copies every flag given on the command line into cfg, so that
// flags override the file and unset flags keep the file's values.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DatasetPath = stringFlag(f)
		case "x":
			cfg.XColumn = stringFlag(f)
		case "y":
			cfg.YColumn = stringFlag(f)
		case "k":
			v := f.Value.(flag.Getter).Get().(int)
			cfg.Clusters = &v
		case "max-iter":
			v := f.Value.(flag.Getter).Get().(int)
			cfg.MaxIterations = &v
		case "seed":
			v := f.Value.(flag.Getter).Get().(uint64)
			cfg.Seed = &v
		case "out":
			cfg.OutputPath = stringFlag(f)
		case "db":
			cfg.DBPath = stringFlag(f)
		case "listen":
			cfg.Listen = stringFlag(f)
		}
	})
}

func stringFlag(f *flag.Flag) *string {
	v := f.Value.String()
	return &v
}

// loadTable reads the configured dataset and checks that the configured x
// and y columns exist, so a bad selection fails before any run.
func loadTable(fsys fsutil.FileSystem, cfg *config.Config) (*dataset.Table, error) {
	table, err := dataset.Load(fsys, cfg.GetDatasetPath())
	if err != nil {
		return nil, err
	}
	if err := table.RequireColumns(cfg.GetXColumn(), cfg.GetYColumn()); err != nil {
		return nil, fmt.Errorf("invalid column selection: %w", err)
	}
	return table, nil
}

// outputs selects the optional chart files of a one-shot run.
type outputs struct {
	PNG  bool
	HTML bool
}

// runOnce clusters the configured columns, prints the listing and summary
// to w and writes the augmented CSV, the requested charts and the history
// record.
func runOnce(ctx context.Context, w io.Writer, cfg *config.Config, table *dataset.Table, fsys fsutil.FileSystem, store *db.DB, opts outputs) error {
	xName, yName := cfg.GetXColumn(), cfg.GetYColumn()
	pts, err := table.Points(xName, yName)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := kmeans.Run(pts, cfg.GetClusters(), cfg.KMeansOptions()...)
	if err != nil {
		return err
	}
	monitoring.LogRun("cli", cfg.GetClusters(), res, time.Since(start))

	if err := report.Write(w, xName, yName, pts, res); err != nil {
		return fmt.Errorf("failed to write listing: %w", err)
	}
	if err := report.WriteSummary(w, pts, res); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if fsys.Exists(cfg.GetOutputPath()) {
		monitoring.Logf("overwriting %s", cfg.GetOutputPath())
	}
	if err := dataset.Export(fsys, cfg.GetOutputPath(), table, res.Labels); err != nil {
		return err
	}
	monitoring.Logf("saved results to %s", cfg.GetOutputPath())

	sc := charts.Scatter{XLabel: xName, YLabel: yName, Points: pts, Result: res}
	base := filepath.Join(cfg.GetPlotDir(), charts.BaseName(xName, yName, cfg.GetClusters()))
	if opts.PNG {
		if err := sc.SavePNG(fsys, base+".png"); err != nil {
			return fmt.Errorf("failed to save plot: %w", err)
		}
		monitoring.Logf("saved plot to %s.png", base)
	}
	if opts.HTML {
		if err := saveHTML(fsys, base+".html", sc); err != nil {
			return fmt.Errorf("failed to save chart: %w", err)
		}
		monitoring.Logf("saved chart to %s.html", base)
	}

	if store != nil {
		run := db.NewRun(db.RunParams{
			DatasetPath:   cfg.GetDatasetPath(),
			XColumn:       xName,
			YColumn:       yName,
			K:             cfg.GetClusters(),
			MaxIterations: cfg.GetMaxIterations(),
			Seed:          cfg.GetSeed(),
		}, pts, res)
		if err := store.RecordRun(ctx, run); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		monitoring.Logf("recorded run %s", run.RunID)
	}
	return nil
}

func saveHTML(fsys fsutil.FileSystem, path string, sc charts.Scatter) error {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	if err := sc.WriteHTML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// serveUI runs the web UI until ctx is cancelled.
func serveUI(ctx context.Context, cfg *config.Config, table *dataset.Table, fsys fsutil.FileSystem, store *db.DB, open bool) error {
	srv := api.NewServer(table, cfg, fsys, store)

	var attachErr error
	extra := func(mux *http.ServeMux) {
		if store != nil {
			attachErr = store.AttachAdminRoutes(mux)
		}
	}
	ready := func(addr string) {
		if attachErr != nil {
			log.Printf("admin routes disabled: %v", attachErr)
		}
		url := "http://" + addr + "/"
		log.Printf("web UI listening on %s", url)
		if open {
			openBrowser(url)
		}
	}
	return srv.ListenAndServe(ctx, cfg.GetListen(), extra, ready)
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		log.Printf("Unsupported platform: %s", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
