package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "cache.index"

	// Clips smaller than this are stored as is.
	minCompressSize = 1024
)

// DiskCache persists clips as files under a directory, compressed with zstd
// when that makes them smaller. The index survives restarts.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	Key          string
	File         string
	Size         int64 // on disk
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskCache opens or creates a disk cache in dir. A compressionLevel of
// 0 disables compression.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Entries written with compression stay readable when it is turned off.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = dec

	if err := dc.loadIndex(); err != nil {
		dc.index = make(map[string]*diskEntry)
	}
	for _, e := range dc.index {
		dc.size += e.Size
	}
	return dc, nil
}

// Get reads and decompresses the clip for key. Missing or corrupt files are
// dropped from the index and reported as a miss.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data, err := dc.readLocked(key)
	if err != nil {
		dc.stats.Misses++
		return nil, false
	}
	dc.stats.Hits++
	dc.stats.LastAccess = time.Now()
	return data, true
}

func (dc *DiskCache) readLocked(key string) ([]byte, error) {
	entry, ok := dc.index[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(entry.File)
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
		}
	}
	if err != nil {
		dc.removeLocked(key)
		return nil, err
	}

	entry.LastAccess = time.Now()
	entry.Hits++
	return data, nil
}

// Put writes value to disk, evicting least recently used entries to make
// room.
func (dc *DiskCache) Put(key string, value []byte) error {
	data, compressed := value, false
	if dc.encoder != nil && len(value) > minCompressSize {
		if enc := dc.encoder.EncodeAll(value, nil); len(enc) < len(value) {
			data, compressed = enc, true
		}
	}
	n := int64(len(data))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if n > dc.capacity {
		return ErrItemTooLarge
	}
	dc.removeLocked(key)
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictOldestLocked()
	}

	file := filepath.Join(dc.dir, key+".pcm")
	if err := writeFileAtomic(file, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:          key,
		File:         file,
		Size:         n,
		OriginalSize: int64(len(value)),
		Timestamp:    now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += n
	return nil
}

// Delete removes key.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.removeLocked(key)
	return nil
}

// Clear removes every entry and writes an empty index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.removeLocked(key)
	}
	return dc.saveIndexLocked()
}

// Contains reports whether key is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns a snapshot of the cache metrics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))
	stats.computeHitRate()
	return stats
}

// Oldest returns metadata for up to n least recently used entries.
func (dc *DiskCache) Oldest(n int) []Metadata {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entries := dc.byAccessLocked()
	out := make([]Metadata, 0, n)
	for _, e := range entries {
		if len(out) == n {
			break
		}
		out = append(out, Metadata{
			Key:        e.Key,
			Size:       e.OriginalSize,
			Timestamp:  e.Timestamp,
			LastAccess: e.LastAccess,
			Hits:       e.Hits,
			Level:      LevelDisk,
		})
	}
	return out
}

// RemoveOlderThan removes entries written before cutoff.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, e := range dc.index {
		if e.Timestamp.Before(cutoff) {
			dc.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Close saves the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndexLocked()
}

func (dc *DiskCache) byAccessLocked() []*diskEntry {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})
	return entries
}

func (dc *DiskCache) evictOldestLocked() {
	var oldest *diskEntry
	for _, e := range dc.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		dc.removeLocked(oldest.Key)
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) removeLocked(key string) {
	e, ok := dc.index[key]
	if !ok {
		return
	}
	_ = os.Remove(e.File)
	delete(dc.index, key)
	dc.size -= e.Size
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndexLocked() error {
	f, err := os.CreateTemp(dc.dir, indexFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	err = gob.NewEncoder(f).Encode(dc.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(dc.dir, indexFile))
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
