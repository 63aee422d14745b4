// Package cache stores synthesized PCM clips so that re-reading a segment
// (after a pause, or when an article is read twice) skips synthesis. An
// in-memory LRU sits in front of a zstd-compressed disk store.
package cache
