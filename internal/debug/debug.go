// Package debug provides opt-in trace logging for pipeline runs, gated on
// the SL_DEBUG environment variable.
package debug

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Enabled reports whether debug tracing is on (SL_DEBUG=1/true/yes/on).
func Enabled() bool {
	switch os.Getenv("SL_DEBUG") {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Logf writes a trace line when debugging is enabled.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	log.Printf("[debug] %s", fmt.Sprintf(format, args...))
}

// Timing logs the duration of an operation when debugging is enabled.
// Use as: defer debug.Timing("fuzzy link")().
func Timing(operation string) func() {
	if !Enabled() {
		return func() {}
	}
	start := time.Now()
	return func() {
		log.Printf("[debug] %s took %v", operation, time.Since(start))
	}
}
