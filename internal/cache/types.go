package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when an item is not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupted is returned when a disk entry cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota

	// LevelDisk is the persistent, optionally compressed store.
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds tier metrics.
type Stats struct {
	Capacity  int64
	Size      int64
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) computeHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Metadata describes a cached clip.
type Metadata struct {
	Key        string
	Size       int64
	Timestamp  time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Config configures a Manager.
type Config struct {
	MemoryCapacity int64 // bytes
	DiskCapacity   int64 // bytes
	Dir            string

	// CompressionLevel is the zstd level; 0 stores clips uncompressed.
	CompressionLevel int

	// MaxAge expires disk entries; 0 keeps them until evicted.
	MaxAge          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns a 64MB memory tier and a 512MB disk tier in dir.
func DefaultConfig(dir string) Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		Dir:              dir,
		CompressionLevel: 3,
		MaxAge:           7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Cache is implemented by every tier.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Contains(key string) bool
	Size() int64
	Stats() Stats
}

// Key derives the cache key of a synthesized clip. Everything that changes
// the audio must be part of it; volume is applied at playback and is not.
func Key(engine, voice, language, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{engine, voice, language, text}, "\x00")))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*DiskCache)(nil)
)
