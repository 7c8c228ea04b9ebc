package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(t.TempDir())

	c.Set("models_https://example.com:prod", []string{"res.partner", "sale.order"}, time.Hour)

	raw, ok := c.Get("models_https://example.com:prod", time.Hour)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	var models []string
	if err := json.Unmarshal(raw, &models); err != nil {
		t.Fatalf("unmarshal cached payload: %v", err)
	}
	if len(models) != 2 || models[0] != "res.partner" {
		t.Fatalf("unexpected payload: %v", models)
	}
}

func TestGetMissesUnknownKey(t *testing.T) {
	c := New(t.TempDir())
	if _, ok := c.Get("never-set", time.Hour); ok {
		t.Fatal("expected a miss for an unknown key")
	}
}

func TestExpiryCheckedAtReadTime(t *testing.T) {
	c := New(t.TempDir())
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("key", "value", time.Minute)

	// Still fresh.
	if _, ok := c.Get("key", time.Minute); !ok {
		t.Fatal("expected hit before expiry")
	}

	// The caller's ttl is authoritative: a wider window at read time
	// keeps the same entry alive.
	c.now = func() time.Time { return base.Add(30 * time.Minute) }
	if _, ok := c.Get("key", time.Hour); !ok {
		t.Fatal("expected hit with a wider read-time ttl")
	}

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok := c.Get("key", time.Hour); ok {
		t.Fatal("expected miss after expiry")
	}

	// The expired entry must be gone from disk.
	if _, err := os.Stat(c.filename("key")); !os.IsNotExist(err) {
		t.Fatalf("expired entry not deleted: %v", err)
	}
}

func TestCorruptEntryIsPurged(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	c.Set("key", "value", time.Hour)
	path := c.filename("key")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	if _, ok := c.Get("key", time.Hour); ok {
		t.Fatal("expected miss for corrupt entry")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("corrupt entry not deleted: %v", err)
	}
}

func TestFilenameHidesKeyMaterial(t *testing.T) {
	c := New("/tmp/cache")
	name := filepath.Base(c.filename("https://secret-host.internal:proddb"))
	if name == "https://secret-host.internal:proddb" {
		t.Fatal("key leaked into filename")
	}
	for _, r := range name {
		ok := r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !ok {
			t.Fatalf("unexpected character %q in filename %s", r, name)
		}
	}
}

func TestClearAndClearAll(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	c.Set("one", 1, time.Hour)
	c.Set("two", 2, time.Hour)

	c.Clear("one")
	if _, ok := c.Get("one", time.Hour); ok {
		t.Fatal("expected miss after Clear")
	}
	if _, ok := c.Get("two", time.Hour); !ok {
		t.Fatal("Clear removed the wrong entry")
	}

	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if _, ok := c.Get("two", time.Hour); ok {
		t.Fatal("expected miss after ClearAll")
	}

	// Foreign files in the directory are left alone.
	foreign := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(foreign, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll with foreign file: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("foreign file removed: %v", err)
	}
}
