package kmeans

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultMaxIterations caps the number of update passes when no
	// WithMaxIterations option is given.
	DefaultMaxIterations = 100

	// DefaultSeed is the sampling seed used when no WithSeed option is given.
	DefaultSeed uint64 = 42
)

var (
	// ErrEmptyInput is returned when Run is called without points.
	ErrEmptyInput = errors.New("kmeans: no points supplied")

	// ErrInvalidClusterCount is returned when k is outside [1, len(points)].
	ErrInvalidClusterCount = errors.New("kmeans: invalid cluster count")

	// ErrInvalidMaxIterations is returned for a negative iteration cap.
	ErrInvalidMaxIterations = errors.New("kmeans: invalid max iterations")
)

// Point is one two-dimensional observation, or a centroid.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return floats.Distance([]float64{p.X, p.Y}, []float64{q.X, q.Y}, 2)
}

// Result is the outcome of one clustering run.
type Result struct {
	// Centroids holds one entry per cluster, ordered by cluster index.
	Centroids []Point `json:"centroids"`
	// Labels holds the cluster index of every input point, in input order.
	Labels []int `json:"labels"`
	// Iterations counts the update passes performed.
	Iterations int `json:"iterations"`
	// Converged is false when the run stopped at the iteration cap.
	Converged bool `json:"converged"`
}

// K returns the number of clusters, empty ones included.
func (r *Result) K() int {
	return len(r.Centroids)
}

// Members returns the row indices assigned to cluster c in ascending order.
func (r *Result) Members(c int) []int {
	var rows []int
	for i, l := range r.Labels {
		if l == c {
			rows = append(rows, i)
		}
	}
	return rows
}

// Sizes returns the member count of every cluster.
func (r *Result) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

type config struct {
	maxIterations int
	seed          uint64
}

// Option configures a Run.
type Option func(*config)

// WithMaxIterations sets the upper bound on update passes. Zero returns the
// initial centroids and the assignment they induce.
func WithMaxIterations(n int) Option {
	return func(c *config) {
		c.maxIterations = n
	}
}

// WithSeed sets the seed for initial centroid sampling.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
	}
}

// Run clusters points into k groups.
//
// Initial centroids are k distinct input points sampled without
// replacement. Each pass assigns every point to its nearest centroid, ties
// going to the lower index, then moves every non-empty cluster's centroid
// to the mean of its members. Empty clusters keep their previous centroid.
// The run stops when a pass leaves every centroid exactly unchanged, or
// after the iteration cap; the cap is not an error.
//
// Labels come from the last assignment pass. On convergence they match
// the returned Centroids. When the cap stops the run they are the
// assignment the final update was computed from.
func Run(points []Point, k int, opts ...Option) (*Result, error) {
	cfg := config{
		maxIterations: DefaultMaxIterations,
		seed:          DefaultSeed,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(points) == 0 {
		return nil, ErrEmptyInput
	}
	if k < 1 || k > len(points) {
		return nil, fmt.Errorf("%w: k=%d with %d points", ErrInvalidClusterCount, k, len(points))
	}
	if cfg.maxIterations < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxIterations, cfg.maxIterations)
	}

	pts := slices.Clone(points)
	return refine(pts, initialCentroids(pts, k, cfg.seed), cfg.maxIterations), nil
}

// initialCentroids samples k distinct points using a PCG stream derived
// from seed.
func initialCentroids(points []Point, k int, seed uint64) []Point {
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(len(points))

	centroids := make([]Point, k)
	for i := range centroids {
		centroids[i] = points[perm[i]]
	}
	return centroids
}

// refine runs Lloyd iterations from the given starting centroids. It owns
// centroids and may overwrite it.
func refine(points, centroids []Point, maxIterations int) *Result {
	labels := make([]int, len(points))
	assign(points, centroids, labels)

	res := &Result{}
	for res.Iterations < maxIterations {
		next := update(points, centroids, labels)
		res.Iterations++

		if slices.Equal(next, centroids) {
			res.Converged = true
			break
		}

		centroids = next
		// at the cap, labels stay those the last update was computed from
		if res.Iterations == maxIterations {
			break
		}
		assign(points, centroids, labels)
	}

	res.Centroids = centroids
	res.Labels = labels
	return res
}

// assign writes the index of the nearest centroid for every point into labels.
func assign(points, centroids []Point, labels []int) {
	for i, p := range points {
		labels[i] = nearest(p, centroids)
	}
}

// nearest returns the index of the centroid closest to p. Exact ties keep
// the lowest index.
func nearest(p Point, centroids []Point) int {
	best := 0
	bestDist := sqDist(p, centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := sqDist(p, centroids[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// sqDist is the squared Euclidean distance. It orders centroids exactly as
// Distance does without allocating.
func sqDist(p, q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// update returns the mean of every cluster's members. Clusters without
// members carry their previous centroid over.
func update(points, centroids []Point, labels []int) []Point {
	k := len(centroids)
	sumX := make([]float64, k)
	sumY := make([]float64, k)
	counts := make([]int, k)

	for i, p := range points {
		c := labels[i]
		sumX[c] += p.X
		sumY[c] += p.Y
		counts[c]++
	}

	next := make([]Point, k)
	for c := range next {
		if counts[c] == 0 {
			next[c] = centroids[c]
			continue
		}
		n := float64(counts[c])
		next[c] = Point{X: sumX[c] / n, Y: sumY[c] / n}
	}
	return next
}
