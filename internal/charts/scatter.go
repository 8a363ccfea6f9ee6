package charts

import (
	"fmt"

	"github.com/banshee-data/clusterview/internal/kmeans"
	"github.com/banshee-data/clusterview/internal/security"
)

// DefaultTitle is used when a Scatter has no title.
const DefaultTitle = "K-Means Clustering"

// CentroidsLabel names the centroid series in legends.
const CentroidsLabel = "Centroids"

// Scatter holds everything needed to draw one clustering result.
type Scatter struct {
	Title  string
	XLabel string
	YLabel string
	Points []kmeans.Point
	Result *kmeans.Result
}

// BaseName returns a filesystem-safe name, without extension, for a chart
// of the given columns and cluster count.
func BaseName(xName, yName string, k int) string {
	return security.JoinFilename("kmeans", xName, yName, fmt.Sprintf("k%d", k))
}

func (s Scatter) title() string {
	if s.Title == "" {
		return DefaultTitle
	}
	return s.Title
}

func (s Scatter) validate() error {
	if s.Result == nil {
		return fmt.Errorf("charts: nil result")
	}
	if len(s.Points) != len(s.Result.Labels) {
		return fmt.Errorf("charts: %d points for %d labels", len(s.Points), len(s.Result.Labels))
	}
	return nil
}

// clusterPoints groups points by cluster index, keeping empty clusters.
func (s Scatter) clusterPoints() [][]kmeans.Point {
	groups := make([][]kmeans.Point, s.Result.K())
	for i, l := range s.Result.Labels {
		groups[l] = append(groups[l], s.Points[i])
	}
	return groups
}

func seriesName(cluster int) string {
	return fmt.Sprintf("Cluster %d", cluster)
}
