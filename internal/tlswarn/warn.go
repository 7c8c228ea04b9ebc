// Package tlswarn provides a process-wide one-shot warning for insecure TLS usage.
package tlswarn

import (
	"log"
	"sync"
)

var once sync.Once

// Warn emits a single warning to stderr (via log.Print) the first time it is
// called. Subsequent calls are no-ops. This prevents log spam when several
// commands build clients against the same server in one process.
func Warn(url string) {
	once.Do(func() {
		log.Printf("[TLS] WARNING: certificate verification is disabled for %s. Do NOT use in production.", url)
	})
}
