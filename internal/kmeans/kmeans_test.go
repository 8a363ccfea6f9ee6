package kmeans

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPoints(n int, seed uint64) []Point {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	pts := make([]Point, n)
	for i := range pts {
		// three loose blobs so the runs take a few passes
		cx := float64(i%3) * 10
		pts[i] = Point{X: cx + rng.NormFloat64()*3, Y: cx/2 + rng.NormFloat64()*3}
	}
	return pts
}

func TestRun_TwoObviousGroups(t *testing.T) {
	pts := []Point{{1, 1}, {1, 2}, {9, 9}, {9, 10}}

	res := refine(pts, []Point{{1, 1}, {9, 9}}, DefaultMaxIterations)

	assert.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []Point{{1, 1.5}, {9, 9.5}}, res.Centroids)
	assert.Equal(t, []int{0, 0, 1, 1}, res.Labels)
	assert.Equal(t, []int{0, 1}, res.Members(0))
	assert.Equal(t, []int{2, 3}, res.Members(1))
}

func TestRun_TwoObviousGroupsAnySeed(t *testing.T) {
	pts := []Point{{1, 1}, {1, 2}, {9, 9}, {9, 10}}

	for seed := uint64(0); seed < 20; seed++ {
		res, err := Run(pts, 2, WithSeed(seed))
		require.NoError(t, err)
		require.True(t, res.Converged, "seed %d", seed)

		// cluster numbering depends on the sampled start, the partition does not
		assert.Equal(t, res.Labels[0], res.Labels[1], "seed %d", seed)
		assert.Equal(t, res.Labels[2], res.Labels[3], "seed %d", seed)
		assert.NotEqual(t, res.Labels[0], res.Labels[2], "seed %d", seed)
		assert.ElementsMatch(t, []Point{{1, 1.5}, {9, 9.5}}, res.Centroids, "seed %d", seed)
	}
}

func TestRun_SinglePoint(t *testing.T) {
	res, err := Run([]Point{{5, 5}}, 1)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []Point{{5, 5}}, res.Centroids)
	assert.Equal(t, []int{0}, res.Labels)
}

func TestRun_ZeroIterations(t *testing.T) {
	pts := randomPoints(30, 3)

	res, err := Run(pts, 4, WithMaxIterations(0), WithSeed(11))
	require.NoError(t, err)

	assert.False(t, res.Converged)
	assert.Equal(t, 0, res.Iterations)
	require.Len(t, res.Centroids, 4)
	assert.Equal(t, initialCentroids(pts, 4, 11), res.Centroids)
	for _, c := range res.Centroids {
		assert.Contains(t, pts, c)
	}
	for i, p := range pts {
		assert.Equal(t, nearest(p, res.Centroids), res.Labels[i], "row %d", i)
	}
}

func TestRun_IterationCap(t *testing.T) {
	pts := []Point{{1, 1}, {1, 2}, {9, 9}, {9, 10}}

	res := refine(pts, []Point{{1, 1}, {9, 9}}, 1)

	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []Point{{1, 1.5}, {9, 9.5}}, res.Centroids)
	assert.Equal(t, []int{0, 0, 1, 1}, res.Labels)
}

func TestRun_IterationCapKeepsLastAssignment(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {3, 0}, {10, 0}}

	res := refine(pts, []Point{{0, 0}, {2, 0}}, 1)

	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []Point{{0, 0}, {5, 0}}, res.Centroids)
	// (2, 0) is now nearer centroid 0, but no assignment follows the last update
	assert.Equal(t, []int{0, 1, 1, 1}, res.Labels)

	res = refine(pts, []Point{{0, 0}, {2, 0}}, DefaultMaxIterations)
	assert.True(t, res.Converged)
	assert.Equal(t, []int{0, 0, 0, 1}, res.Labels)
	assert.Equal(t, []Point{{5.0 / 3, 0}, {10, 0}}, res.Centroids)
}

func TestSqDist_MatchesDistanceOrdering(t *testing.T) {
	p := Point{1.5, -2}
	for _, q := range []Point{{0, 0}, {4, 4}, {1.5, -2}, {-3, 7.25}} {
		d := p.Distance(q)
		assert.InDelta(t, d*d, sqDist(p, q), 1e-12)
	}
}

func TestRun_EmptyClusterKeepsCentroid(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}}

	res := refine(pts, []Point{{0, 0}, {100, 100}}, DefaultMaxIterations)

	assert.True(t, res.Converged)
	assert.Equal(t, []Point{{0.5, 0}, {100, 100}}, res.Centroids)
	assert.Equal(t, []int{0, 0}, res.Labels)
	assert.Equal(t, []int{2, 0}, res.Sizes())
	assert.Empty(t, res.Members(1))
}

func TestNearest_TieGoesToLowestIndex(t *testing.T) {
	centroids := []Point{{0, 0}, {10, 0}, {5, 5}}

	assert.Equal(t, 0, nearest(Point{5, 0}, centroids))
	assert.Equal(t, 1, nearest(Point{10, 1}, centroids))

	dup := []Point{{3, 3}, {3, 3}}
	assert.Equal(t, 0, nearest(Point{1, 1}, dup))
}

func TestRun_KEqualsPointCount(t *testing.T) {
	pts := []Point{{0, 0}, {4, 1}, {-3, 7}, {2.5, 2.5}, {10, -1}}

	res, err := Run(pts, len(pts), WithSeed(5))
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Len(t, res.Centroids, len(pts))
	for i, p := range pts {
		assert.Equal(t, p, res.Centroids[res.Labels[i]], "row %d", i)
	}
	for _, size := range res.Sizes() {
		assert.Equal(t, 1, size)
	}
}

func TestRun_Deterministic(t *testing.T) {
	pts := randomPoints(300, 1)

	first, err := Run(pts, 5, WithSeed(7))
	require.NoError(t, err)
	second, err := Run(pts, 5, WithSeed(7))
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated run differs (-first +second):\n%s", diff)
	}
}

func TestRun_Properties(t *testing.T) {
	pts := randomPoints(240, 9)

	for _, k := range []int{1, 2, 3, 7, 20} {
		res, err := Run(pts, k, WithSeed(uint64(k)))
		require.NoError(t, err)

		require.Len(t, res.Centroids, k)
		require.Len(t, res.Labels, len(pts))
		for i, l := range res.Labels {
			assert.GreaterOrEqual(t, l, 0, "row %d", i)
			assert.Less(t, l, k, "row %d", i)
		}

		if !res.Converged {
			continue
		}
		for c, centroid := range res.Centroids {
			members := res.Members(c)
			if len(members) == 0 {
				continue
			}
			var sx, sy float64
			for _, row := range members {
				sx += pts[row].X
				sy += pts[row].Y
			}
			n := float64(len(members))
			assert.InDelta(t, sx/n, centroid.X, 1e-12, "k=%d cluster %d", k, c)
			assert.InDelta(t, sy/n, centroid.Y, 1e-12, "k=%d cluster %d", k, c)
		}
	}
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	pts := randomPoints(50, 4)
	orig := slices.Clone(pts)

	_, err := Run(pts, 3)
	require.NoError(t, err)

	assert.Equal(t, orig, pts)
}

func TestRun_Errors(t *testing.T) {
	pts := []Point{{1, 1}, {2, 2}}

	tests := []struct {
		name string
		pts  []Point
		k    int
		opts []Option
		want error
	}{
		{"empty input", nil, 1, nil, ErrEmptyInput},
		{"k zero", pts, 0, nil, ErrInvalidClusterCount},
		{"k negative", pts, -1, nil, ErrInvalidClusterCount},
		{"k above point count", pts, 3, nil, ErrInvalidClusterCount},
		{"negative cap", pts, 1, []Option{WithMaxIterations(-1)}, ErrInvalidMaxIterations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(tt.pts, tt.k, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestPointDistance(t *testing.T) {
	assert.Equal(t, 5.0, Point{0, 0}.Distance(Point{3, 4}))
	assert.Equal(t, 0.0, Point{2, 2}.Distance(Point{2, 2}))
}
