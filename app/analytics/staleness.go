package analytics

import (
	"strings"
	"time"

	"github.com/rankpulse/rankpulse/app/database"
)

const (
	// VolumeMaxAgeDays is the refresh interval for cached keyword search volume.
	VolumeMaxAgeDays = 30
	// CTRMaxAgeDays is the refresh interval for the per-project CTR curve.
	CTRMaxAgeDays = 90
)

// IsStale reports whether a stored text timestamp is older than maxAgeDays.
// Absent or unparsable values count as stale rather than failing; legacy
// rows carry mixed serialization formats.
func IsStale(lastUpdate string, now time.Time, maxAgeDays int) bool {
	if strings.TrimSpace(lastUpdate) == "" {
		return true
	}

	t, err := database.ParseTime(lastUpdate)
	if err != nil {
		return true
	}

	return IsStaleTime(&t, now, maxAgeDays)
}

// IsStaleTime is the time.Time form of IsStale; a nil lastUpdate is stale.
func IsStaleTime(lastUpdate *time.Time, now time.Time, maxAgeDays int) bool {
	if lastUpdate == nil {
		return true
	}
	return now.Sub(*lastUpdate) > time.Duration(maxAgeDays)*24*time.Hour
}
