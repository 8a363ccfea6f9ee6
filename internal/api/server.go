// Package api serves the browser UI and JSON endpoints for running
// clusterings against the loaded dataset.
package api

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/clusterview/internal/charts"
	"github.com/banshee-data/clusterview/internal/config"
	"github.com/banshee-data/clusterview/internal/dataset"
	"github.com/banshee-data/clusterview/internal/db"
	"github.com/banshee-data/clusterview/internal/fsutil"
	"github.com/banshee-data/clusterview/internal/httputil"
	"github.com/banshee-data/clusterview/internal/kmeans"
	"github.com/banshee-data/clusterview/internal/monitoring"
	"github.com/banshee-data/clusterview/internal/report"
)

// ANSI escape codes for status coloring in request logs
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const defaultRunsLimit = 20

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Server runs clusterings over one immutable table.
type Server struct {
	table *dataset.Table
	cfg   *config.Config
	fsys  fsutil.FileSystem
	// store is optional; nil disables run history.
	store *db.DB

	// exportMu serializes writes to the shared output file.
	exportMu sync.Mutex
}

// NewServer creates a Server. store may be nil.
func NewServer(table *dataset.Table, cfg *config.Config, fsys fsutil.FileSystem, store *db.DB) *Server {
	return &Server{
		table: table,
		cfg:   cfg,
		fsys:  fsys,
		store: store,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the routes of the UI and API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.showIndex)
	mux.HandleFunc("GET /api/columns", s.listColumns)
	mux.HandleFunc("GET /api/cluster", s.runCluster)
	mux.HandleFunc("POST /api/cluster", s.runCluster)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("GET /chart", s.showChart)
	mux.HandleFunc("GET /plot.png", s.showPlot)
	return mux
}

// clusterRequest is a parsed and range-checked run request.
type clusterRequest struct {
	XColumn       string
	YColumn       string
	K             int
	MaxIterations int
	Seed          uint64
}

// requestError is a client error answered with 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequestf(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// parseClusterRequest reads x, y, k, max_iter and seed from the query or
// form, falling back to the configured defaults.
func (s *Server) parseClusterRequest(r *http.Request) (clusterRequest, error) {
	req := clusterRequest{
		XColumn:       s.cfg.GetXColumn(),
		YColumn:       s.cfg.GetYColumn(),
		K:             s.cfg.GetClusters(),
		MaxIterations: s.cfg.GetMaxIterations(),
		Seed:          s.cfg.GetSeed(),
	}

	if err := r.ParseForm(); err != nil {
		return req, badRequestf("invalid form: %v", err)
	}
	if v := r.FormValue("x"); v != "" {
		req.XColumn = v
	}
	if v := r.FormValue("y"); v != "" {
		req.YColumn = v
	}
	if v := r.FormValue("k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return req, badRequestf("invalid 'k' parameter %q: must be an integer", v)
		}
		req.K = k
	}
	if v := r.FormValue("max_iter"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, badRequestf("invalid 'max_iter' parameter %q: must be an integer", v)
		}
		req.MaxIterations = n
	}
	if v := r.FormValue("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, badRequestf("invalid 'seed' parameter %q: must be a non-negative integer", v)
		}
		req.Seed = seed
	}
	return req, nil
}

// clusterOutcome is one finished run with the inputs it used.
type clusterOutcome struct {
	req    clusterRequest
	points []kmeans.Point
	result *kmeans.Result
}

func (s *Server) cluster(r *http.Request) (*clusterOutcome, error) {
	req, err := s.parseClusterRequest(r)
	if err != nil {
		return nil, err
	}

	pts, err := s.table.Points(req.XColumn, req.YColumn)
	if err != nil {
		return nil, &requestError{msg: err.Error()}
	}

	start := time.Now()
	res, err := kmeans.Run(pts, req.K, kmeans.WithMaxIterations(req.MaxIterations), kmeans.WithSeed(req.Seed))
	if err != nil {
		if errors.Is(err, kmeans.ErrInvalidClusterCount) || errors.Is(err, kmeans.ErrEmptyInput) || errors.Is(err, kmeans.ErrInvalidMaxIterations) {
			return nil, &requestError{msg: err.Error()}
		}
		return nil, err
	}
	monitoring.LogRun("api", req.K, res, time.Since(start))

	return &clusterOutcome{req: req, points: pts, result: res}, nil
}

func writeClusterError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		httputil.BadRequest(w, reqErr.msg)
		return
	}
	httputil.InternalServerError(w, err.Error())
}

// ClusterResponse is the JSON body of /api/cluster.
type ClusterResponse struct {
	RunID      string                  `json:"run_id,omitempty"`
	XColumn    string                  `json:"x_column"`
	YColumn    string                  `json:"y_column"`
	K          int                     `json:"k"`
	Seed       uint64                  `json:"seed"`
	Result     *kmeans.Result          `json:"result"`
	Summary    []report.ClusterSummary `json:"summary"`
	Inertia    float64                 `json:"inertia"`
	Listing    string                  `json:"listing"`
	OutputPath string                  `json:"output_path"`
}

func (s *Server) runCluster(w http.ResponseWriter, r *http.Request) {
	out, err := s.cluster(r)
	if err != nil {
		writeClusterError(w, err)
		return
	}

	var listing bytes.Buffer
	if err := report.Write(&listing, out.req.XColumn, out.req.YColumn, out.points, out.result); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render listing: %v", err))
		return
	}

	outputPath := s.cfg.GetOutputPath()
	s.exportMu.Lock()
	err = dataset.Export(s.fsys, outputPath, s.table, out.result.Labels)
	s.exportMu.Unlock()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to save results: %v", err))
		return
	}

	resp := ClusterResponse{
		XColumn:    out.req.XColumn,
		YColumn:    out.req.YColumn,
		K:          out.req.K,
		Seed:       out.req.Seed,
		Result:     out.result,
		Summary:    report.Summarize(out.points, out.result),
		Inertia:    report.Inertia(out.points, out.result),
		Listing:    listing.String(),
		OutputPath: outputPath,
	}

	if s.store != nil {
		run := db.NewRun(db.RunParams{
			DatasetPath:   s.cfg.GetDatasetPath(),
			XColumn:       out.req.XColumn,
			YColumn:       out.req.YColumn,
			K:             out.req.K,
			MaxIterations: out.req.MaxIterations,
			Seed:          out.req.Seed,
		}, out.points, out.result)
		// history is best effort; the export already succeeded
		if err := s.store.RecordRun(r.Context(), run); err != nil {
			monitoring.Logf("failed to record run: %v", err)
		} else {
			resp.RunID = run.RunID
		}
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) scatter(out *clusterOutcome) charts.Scatter {
	return charts.Scatter{
		XLabel: out.req.XColumn,
		YLabel: out.req.YColumn,
		Points: out.points,
		Result: out.result,
	}
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	out, err := s.cluster(r)
	if err != nil {
		writeClusterError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.scatter(out).WriteHTML(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	out, err := s.cluster(r)
	if err != nil {
		writeClusterError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.scatter(out).WritePNG(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", charts.BaseName(out.req.XColumn, out.req.YColumn, out.req.K)+".png"))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) listColumns(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"columns": s.table.Columns(),
		"rows":    s.table.Rows(),
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "run history is disabled")
		return
	}

	limit := defaultRunsLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "run history is disabled")
		return
	}

	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, run)
}

type indexData struct {
	Columns []string
	XColumn string
	YColumn string
	K       int
	Rows    int
}

func (s *Server) showIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Columns: s.table.Columns(),
		XColumn: s.cfg.GetXColumn(),
		YColumn: s.cfg.GetYColumn(),
		K:       s.cfg.GetClusters(),
		Rows:    s.table.Rows(),
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render page: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// ListenAndServe serves the UI on addr until ctx is cancelled, then shuts
// down gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, extra func(*http.ServeMux), ready func(string)) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.ServeMux())
	if extra != nil {
		extra(mux)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: LoggingMiddleware(mux),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready(ln.Addr().String())
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	monitoring.Logf("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}
