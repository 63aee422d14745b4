package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager puts the memory tier in front of the disk tier. Disk hits are
// promoted to memory.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config
	logger *log.Logger

	stop      chan struct{}
	stopOnce  sync.Once
	cleanupWg sync.WaitGroup

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates both tiers.
type ManagerStats struct {
	Hits        int64
	Misses      int64
	MemoryHits  int64
	DiskHits    int64
	CleanupRuns int64
	LastCleanup time.Time

	Memory Stats
	Disk   Stats
}

// HitRate returns hits / (hits + misses).
func (s ManagerStats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// NewManager opens the disk tier in config.Dir and starts the cleanup
// routine when an interval is set.
func NewManager(config Config) (*Manager, error) {
	if config.Dir == "" {
		return nil, errors.New("cache directory is required")
	}

	disk, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		config: config,
		logger: log.WithPrefix("cache"),
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		m.cleanupWg.Add(1)
		go m.cleanupLoop(config.CleanupInterval)
	}
	return m, nil
}

// Get looks key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.record(func(s *ManagerStats) { s.Hits++; s.MemoryHits++ })
		return data, true
	}
	if data, ok := m.disk.Get(key); ok {
		m.record(func(s *ManagerStats) { s.Hits++; s.DiskHits++ })
		_ = m.memory.Put(key, data)
		return data, true
	}
	m.record(func(s *ManagerStats) { s.Misses++ })
	return nil, false
}

// Put stores value in both tiers. A clip too large for a tier is skipped
// by that tier only.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		m.logger.Warn("disk cache write failed", "key", key, "err", err)
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) error {
	return errors.Join(m.memory.Delete(key), m.disk.Delete(key))
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	return errors.Join(m.memory.Clear(), m.disk.Clear())
}

// Contains reports whether either tier holds key.
func (m *Manager) Contains(key string) bool {
	return m.memory.Contains(key) || m.disk.Contains(key)
}

// Size returns the bytes held on disk.
func (m *Manager) Size() int64 {
	return m.disk.Size()
}

// Stats returns a snapshot of both tiers.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	stats.Memory = m.memory.Stats()
	stats.Disk = m.disk.Stats()
	return stats
}

// Cleanup removes expired entries now.
func (m *Manager) Cleanup() int {
	m.record(func(s *ManagerStats) {
		s.CleanupRuns++
		s.LastCleanup = time.Now()
	})

	if m.config.MaxAge <= 0 {
		return 0
	}
	removed := m.disk.RemoveOlderThan(time.Now().Add(-m.config.MaxAge))
	removed += m.memory.Prune(m.config.MaxAge)
	if removed > 0 {
		m.logger.Debug("expired clips removed", "count", removed)
	}
	return removed
}

// Close stops the cleanup routine and saves the disk index.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.cleanupWg.Wait()

	if err := m.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.cleanupWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) record(fn func(*ManagerStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.stats)
}
