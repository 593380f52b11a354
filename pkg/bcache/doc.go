// Package bcache implements an embedded, single-process, persistent
// key-value cache.
//
// Values are stored as opaque compressed frames in one append-only blob
// file. A compact on-disk index tracks where each key's frame lives, and a
// write-ahead log makes index updates crash-safe between snapshot saves.
//
// Given a base path P, three files are used: P.data.bin (the blob),
// P.index.bin (the index snapshot), and P.wal.bin (the write-ahead log).
// The index snapshot and, during Vacuum, the blob are written via a
// <path>.tmp-then-rename so a reader never observes a partially written
// file.
//
// The cache is not safe for concurrent use from multiple goroutines, and
// only one process may hold an open Cache on a given base path at a time —
// a second Open fails with ErrLocked.
package bcache
