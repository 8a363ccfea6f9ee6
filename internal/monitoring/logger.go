// Package monitoring holds the diagnostic logger shared by the host layers.
// The clustering engine itself never logs.
package monitoring

import (
	"log"
	"time"

	"github.com/banshee-data/clusterview/internal/kmeans"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogRun records the outcome of one clustering run.
func LogRun(source string, k int, res *kmeans.Result, elapsed time.Duration) {
	status := "converged"
	if !res.Converged {
		status = "capped"
	}
	Logf("[%s] k=%d points=%d iterations=%d %s in %s", source, k, len(res.Labels), res.Iterations, status, elapsed.Round(time.Microsecond))
}
