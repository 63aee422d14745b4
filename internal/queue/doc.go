// Package queue provides the FIFO that decouples notification producers,
// such as the playback worker, from slow consumers like the terminal UI.
package queue
