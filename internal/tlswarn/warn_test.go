package tlswarn

import (
	"bytes"
	"log"
	"strings"
	"sync"
	"testing"
)

// TestWarnOnce must NOT use t.Parallel() because it mutates global
// state (sync.Once and log output).
func TestWarnOnce(t *testing.T) {
	// Reset the package-level Once so this test is self-contained.
	once = sync.Once{}

	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })

	// Call multiple times with different URLs; only the first wins.
	Warn("https://one.example.com")
	Warn("https://two.example.com")
	Warn("https://three.example.com")

	output := buf.String()
	count := strings.Count(output, "[TLS] WARNING:")
	if count != 1 {
		t.Fatalf("expected exactly 1 warning, got %d; output:\n%s", count, output)
	}

	if !strings.Contains(output, "one.example.com") {
		t.Fatalf("warning missing first URL; output:\n%s", output)
	}
}
