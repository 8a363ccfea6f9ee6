// Package charts draws clustering results as scatter plots: a static PNG
// through gonum/plot and an interactive HTML page through go-echarts.
//
// Both renderers draw one series per cluster, named "Cluster <i>", and a
// separate "Centroids" series with a distinct red marker.
package charts
