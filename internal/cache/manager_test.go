package cache

import (
	"bytes"
	"testing"
	"time"
)

func newTestManager(t *testing.T, modify func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.CleanupInterval = 0
	if modify != nil {
		modify(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_BasicOperations(t *testing.T) {
	m := newTestManager(t, nil)
	key := Key("gtts", "", "en", "Hello.")

	if err := m.Put(key, []byte("pcm")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok := m.Get(key)
	if !ok || string(got) != "pcm" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}

	if err := m.Delete(key); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(key); ok {
		t.Error("Get() hit after Delete")
	}

	st := m.Stats()
	if st.Hits != 1 || st.MemoryHits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.HitRate() != 0.5 {
		t.Errorf("HitRate() = %v", st.HitRate())
	}
}

func TestManager_DiskPromotion(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MemoryCapacity = 16 })
	clip := bytes.Repeat([]byte{1, 0}, 64)

	// Too large for memory; lands on disk only.
	if err := m.Put("k", clip); err != nil {
		t.Fatal(err)
	}
	if m.memory.Contains("k") {
		t.Fatal("clip stored in memory tier")
	}
	got, ok := m.Get("k")
	if !ok || !bytes.Equal(got, clip) {
		t.Fatal("disk miss")
	}
	if st := m.Stats(); st.DiskHits != 1 {
		t.Errorf("DiskHits = %d", st.DiskHits)
	}
}

func TestManager_PromotesSmallDiskHits(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.CleanupInterval = 0

	first, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Put("k", []byte("clip"))
	_ = first.Close()

	second, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	if _, ok := second.Get("k"); !ok {
		t.Fatal("clip lost across restart")
	}
	if !second.memory.Contains("k") {
		t.Error("disk hit not promoted to memory")
	}
	second.Get("k")
	if st := second.Stats(); st.MemoryHits != 1 || st.DiskHits != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestManager_Cleanup(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.MaxAge = 10 * time.Millisecond })
	_ = m.Put("k", []byte("clip"))
	time.Sleep(20 * time.Millisecond)

	if n := m.Cleanup(); n != 2 {
		t.Errorf("Cleanup() = %d, want 2 (memory and disk)", n)
	}
	if m.Contains("k") {
		t.Error("expired clip still cached")
	}
	if st := m.Stats(); st.CleanupRuns != 1 {
		t.Errorf("CleanupRuns = %d", st.CleanupRuns)
	}
}

func TestManager_CleanupRoutine(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.CleanupInterval = 10 * time.Millisecond })

	deadline := time.Now().Add(5 * time.Second)
	for m.Stats().CleanupRuns == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup routine never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_Clear(t *testing.T) {
	m := newTestManager(t, nil)
	for _, k := range []string{"a", "b"} {
		_ = m.Put(k, []byte(k))
	}
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	if m.Contains("a") || m.Size() != 0 {
		t.Error("Clear left entries behind")
	}
}

func TestKey(t *testing.T) {
	base := Key("gtts", "", "en", "Hello.")
	if len(base) != 32 {
		t.Errorf("len(Key) = %d", len(base))
	}
	if base != Key("gtts", "", "en", "Hello.") {
		t.Error("Key is not deterministic")
	}
	for _, other := range []string{
		Key("espeak", "", "en", "Hello."),
		Key("gtts", "", "zh-cn", "Hello."),
		Key("gtts", "en-us", "en", "Hello."),
		Key("gtts", "", "en", "Hello!"),
		Key("gtts", "", "enH", "ello."),
	} {
		if other == base {
			t.Errorf("collision with %s", other)
		}
	}
}

func TestNewManager_RequiresDir(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("NewManager without dir succeeded")
	}
}
