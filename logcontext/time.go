package logcontext

import "time"

// nowNanos returns the current wall-clock time as nanoseconds since the
// Unix epoch. It's the default source for Metadata.LogTime when a caller
// doesn't supply one explicitly.
func nowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}
