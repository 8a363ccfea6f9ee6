package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/clusterview/internal/kmeans"
	"github.com/banshee-data/clusterview/internal/report"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is the persisted record of one clustering run.
type Run struct {
	RunID         string        `json:"run_id"`
	DatasetPath   string        `json:"dataset_path"`
	XColumn       string        `json:"x_column"`
	YColumn       string        `json:"y_column"`
	K             int           `json:"k"`
	MaxIterations int           `json:"max_iterations"`
	Seed          uint64        `json:"seed"`
	Iterations    int           `json:"iterations"`
	Converged     bool          `json:"converged"`
	PointCount    int           `json:"point_count"`
	Inertia       float64       `json:"inertia"`
	CreatedAt     time.Time     `json:"created_at"`
	Centroids     []RunCentroid `json:"centroids,omitempty"`
	// Labels is only populated by GetRun.
	Labels []int `json:"labels,omitempty"`
}

// RunCentroid is one cluster of a persisted run.
type RunCentroid struct {
	Cluster int     `json:"cluster"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    int     `json:"size"`
}

// RunParams identifies the inputs of a run.
type RunParams struct {
	DatasetPath   string
	XColumn       string
	YColumn       string
	K             int
	MaxIterations int
	Seed          uint64
}

// NewRun builds a Run from a finished clustering result. RunID and
// CreatedAt are filled in by RecordRun.
func NewRun(p RunParams, pts []kmeans.Point, res *kmeans.Result) *Run {
	sizes := res.Sizes()
	centroids := make([]RunCentroid, len(res.Centroids))
	for c, pt := range res.Centroids {
		centroids[c] = RunCentroid{Cluster: c, X: pt.X, Y: pt.Y, Size: sizes[c]}
	}

	return &Run{
		DatasetPath:   p.DatasetPath,
		XColumn:       p.XColumn,
		YColumn:       p.YColumn,
		K:             p.K,
		MaxIterations: p.MaxIterations,
		Seed:          p.Seed,
		Iterations:    res.Iterations,
		Converged:     res.Converged,
		PointCount:    len(pts),
		Inertia:       report.Inertia(pts, res),
		Centroids:     centroids,
		Labels:        append([]int(nil), res.Labels...),
	}
}

// RecordRun stores r with its centroids and assignments in one transaction.
// It assigns a UUID when r.RunID is empty and stamps CreatedAt when zero.
func (db *DB) RecordRun(ctx context.Context, r *Run) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = db.clock.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cluster_runs (
			run_id, dataset_path, x_column, y_column, k, max_iterations, seed,
			iterations, converged, point_count, inertia, created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.DatasetPath, r.XColumn, r.YColumn, r.K, r.MaxIterations, int64(r.Seed),
		r.Iterations, r.Converged, r.PointCount, r.Inertia, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, c := range r.Centroids {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_centroids (run_id, cluster, centroid_x, centroid_y, size) VALUES (?, ?, ?, ?, ?)`,
			r.RunID, c.Cluster, c.X, c.Y, c.Size,
		); err != nil {
			return fmt.Errorf("insert centroid %d: %w", c.Cluster, err)
		}
	}

	if len(r.Labels) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO cluster_assignments (run_id, row_index, cluster) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare assignments: %w", err)
		}
		defer stmt.Close()
		for i, l := range r.Labels {
			if _, err := stmt.ExecContext(ctx, r.RunID, i, l); err != nil {
				return fmt.Errorf("insert assignment %d: %w", i, err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, dataset_path, x_column, y_column, k, max_iterations, seed,
	iterations, converged, point_count, inertia, created_unix_nanos`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		r       Run
		seed    int64
		created int64
	)
	if err := s.Scan(&r.RunID, &r.DatasetPath, &r.XColumn, &r.YColumn, &r.K, &r.MaxIterations, &seed,
		&r.Iterations, &r.Converged, &r.PointCount, &r.Inertia, &created); err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	r.CreatedAt = time.Unix(0, created)
	return &r, nil
}

// GetRun loads a run with its centroids and assignments.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM cluster_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	if r.Centroids, err = db.runCentroids(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT cluster FROM cluster_assignments WHERE run_id = ? ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	r.Labels = make([]int, 0, r.PointCount)
	for rows.Next() {
		var l int
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		r.Labels = append(r.Labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r, nil
}

// ListRuns returns the most recent runs, newest first, with their
// centroids but without assignments.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM cluster_runs ORDER BY created_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Centroids, err = db.runCentroids(ctx, runs[i].RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (db *DB) runCentroids(ctx context.Context, runID string) ([]RunCentroid, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT cluster, centroid_x, centroid_y, size FROM cluster_centroids WHERE run_id = ? ORDER BY cluster`, runID)
	if err != nil {
		return nil, fmt.Errorf("query centroids: %w", err)
	}
	defer rows.Close()

	var centroids []RunCentroid
	for rows.Next() {
		var c RunCentroid
		if err := rows.Scan(&c.Cluster, &c.X, &c.Y, &c.Size); err != nil {
			return nil, err
		}
		centroids = append(centroids, c)
	}
	return centroids, rows.Err()
}
