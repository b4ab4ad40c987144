// Package pathlock hands out one read-write lock per persisted resource
// location so that whole-structure read-modify-write cycles on the same file
// are serialized within the process.
package pathlock

import (
	"path/filepath"
	"strings"
	"sync"
)

var registry sync.Map // map[string]*sync.RWMutex

// For returns the lock guarding location. File paths are cleaned and made
// absolute so that different spellings of one path share a lock; other
// locations (for example remote collection names) are used verbatim.
func For(location string) *sync.RWMutex {
	key := Key(location)
	if l, ok := registry.Load(key); ok {
		return l.(*sync.RWMutex)
	}
	l, _ := registry.LoadOrStore(key, &sync.RWMutex{})
	return l.(*sync.RWMutex)
}

// Key normalizes location into the registry key.
func Key(location string) string {
	if location == "" || strings.Contains(location, "://") {
		return location
	}
	if abs, err := filepath.Abs(location); err == nil {
		return abs
	}
	return filepath.Clean(location)
}
