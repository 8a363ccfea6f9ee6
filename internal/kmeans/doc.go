// Package kmeans partitions two-dimensional points with Lloyd's algorithm.
//
// Responsibilities: seeded centroid initialization, nearest-centroid
// assignment with a lowest-index tie-break, mean update, exact-equality
// convergence and an iteration cap.
// Key types: Point, Result.
//
// The package is pure: no I/O, no logging, inputs are never mutated.
// Callers own the returned Result.
package kmeans
