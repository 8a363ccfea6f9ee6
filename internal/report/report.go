// Package report renders clustering results as text.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/clusterview/internal/kmeans"
	"gonum.org/v1/gonum/stat"
)

// ClusterSummary describes one cluster of a result.
type ClusterSummary struct {
	Cluster  int          `json:"cluster"`
	Size     int          `json:"size"`
	Centroid kmeans.Point `json:"centroid"`
	// MeanDistance is the average Euclidean distance of members to the centroid.
	MeanDistance float64 `json:"mean_distance"`
	// StdDevX and StdDevY are sample standard deviations of the members.
	// Both are zero for clusters with fewer than two members.
	StdDevX float64 `json:"std_dev_x"`
	StdDevY float64 `json:"std_dev_y"`
}

// Summarize computes per-cluster statistics for res over pts.
func Summarize(pts []kmeans.Point, res *kmeans.Result) []ClusterSummary {
	out := make([]ClusterSummary, res.K())
	for c, centroid := range res.Centroids {
		members := res.Members(c)
		s := ClusterSummary{Cluster: c, Size: len(members), Centroid: centroid}
		if len(members) > 0 {
			xs := make([]float64, len(members))
			ys := make([]float64, len(members))
			dists := make([]float64, len(members))
			for i, row := range members {
				xs[i], ys[i] = pts[row].X, pts[row].Y
				dists[i] = pts[row].Distance(centroid)
			}
			s.MeanDistance = stat.Mean(dists, nil)
			if len(members) > 1 {
				s.StdDevX = stat.StdDev(xs, nil)
				s.StdDevY = stat.StdDev(ys, nil)
			}
		}
		out[c] = s
	}
	return out
}

// Inertia is the within-cluster sum of squared distances.
func Inertia(pts []kmeans.Point, res *kmeans.Result) float64 {
	var sum float64
	for i, p := range pts {
		d := p.Distance(res.Centroids[res.Labels[i]])
		sum += d * d
	}
	return sum
}

// Write lists every centroid followed by its member points under the
// column names xName and yName, one block per cluster.
func Write(w io.Writer, xName, yName string, pts []kmeans.Point, res *kmeans.Result) error {
	for c, centroid := range res.Centroids {
		if _, err := fmt.Fprintf(w, "Centroid: %d (%s, %s)\n", c, formatFloat(centroid.X), formatFloat(centroid.Y)); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\n", xName, yName)
		for _, row := range res.Members(c) {
			fmt.Fprintf(tw, "%s\t%s\n", formatFloat(pts[row].X), formatFloat(pts[row].Y))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes run status and one statistics line per cluster.
func WriteSummary(w io.Writer, pts []kmeans.Point, res *kmeans.Result) error {
	status := "converged"
	if !res.Converged {
		status = "iteration cap reached"
	}
	if _, err := fmt.Fprintf(w, "Iterations: %d (%s)\nInertia: %.4f\n", res.Iterations, status, Inertia(pts, res)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "cluster\tsize\tmean_dist\tsd_x\tsd_y")
	for _, s := range Summarize(pts, res) {
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.4f\t%.4f\n", s.Cluster, s.Size, s.MeanDistance, s.StdDevX, s.StdDevY)
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
