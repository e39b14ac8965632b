// Package normalize canonicalizes the free-form dates, times, locations, and
// bilingual strings a language model extracts from campus event posts.
//
// Every function here is pure: it either returns a canonical value or reports
// that the input is unresolved, in which case callers keep the raw text.
package normalize

import (
	"sync/atomic"
	"time"
)

// DefaultTimezone is used when no zone is configured.
const DefaultTimezone = "Asia/Shanghai"

var zone atomic.Pointer[time.Location]

func init() {
	zone.Store(loadZone(DefaultTimezone))
}

// loadZone falls back to a fixed UTC+8 zone when tzdata is unavailable.
func loadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, 8*60*60)
	}
	return loc
}

// SetLocation switches the zone used by Now. Empty names are ignored.
func SetLocation(name string) {
	if name == "" {
		return
	}
	zone.Store(loadZone(name))
}

// Location returns the configured zone.
func Location() *time.Location {
	return zone.Load()
}

// Now returns the current time in the configured zone.
func Now() time.Time {
	return time.Now().In(Location())
}
