package bcache

import (
	"bufio"
	"errors"
	"os"

	"github.com/ddofborg/blob-cache/internal/fsys"
)

// lifecycleState is the state machine of §4.5: Opening -> Open -> Closing
// -> Closed.
type lifecycleState int

const (
	stateOpen lifecycleState = iota
	stateClosing
	stateClosed
)

// Cache is the embedded key-value cache engine. A Cache instance
// exclusively owns its three file handles and the in-memory index for its
// lifetime (§3 Ownership); it is not safe for concurrent use from multiple
// goroutines (§5).
type Cache struct {
	opts Options
	fsy  fsys.FS
	clk  clock
	comp compressor
	aw   *fsys.AtomicWriter

	appendHandle fsys.File
	readHandle   fsys.File
	walHandle    fsys.File

	index map[string]indexEntry
	stats counters

	state lifecycleState
}

// Open opens (creating if absent) the cache at opts.BasePath, following the
// §4.6 open sequence: acquire the lock, ensure the header, load the index
// snapshot, replay the WAL, remove the WAL, reopen the WAL for append.
func Open(opts Options) (*Cache, error) {
	return openWith(opts, fsys.NewReal(), systemClock{}, newZlibCompressor())
}

// openWith is Open with the filesystem, clock, and compressor collaborators
// injected, so tests can fake crashes and torn writes without touching the
// real filesystem.
func openWith(opts Options, fsy fsys.FS, clk clock, comp compressor) (*Cache, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	blobP := blobPath(opts.BasePath)
	indexP := indexPath(opts.BasePath)
	walP := walPath(opts.BasePath)

	appendHandle, err := fsy.OpenFile(blobP, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, wrapIoError("open blob file", err)
	}

	if err := fsys.TryLockFile(appendHandle); err != nil {
		_ = appendHandle.Close()

		if errors.Is(err, fsys.ErrWouldBlock) {
			return nil, ErrLocked
		}

		return nil, wrapIoError("lock blob file", err)
	}

	if err := ensureHeader(appendHandle); err != nil {
		_ = appendHandle.Close()

		return nil, err
	}

	readHandle, err := fsy.OpenFile(blobP, os.O_RDONLY, 0)
	if err != nil {
		_ = appendHandle.Close()

		return nil, wrapIoError("open blob read handle", err)
	}

	now := clk.now()

	index, err := loadIndexSnapshot(fsy, indexP, now)
	if err != nil {
		_ = appendHandle.Close()
		_ = readHandle.Close()

		return nil, err
	}

	if err := overlayWalFile(fsy, walP, index, now); err != nil {
		_ = appendHandle.Close()
		_ = readHandle.Close()

		return nil, err
	}

	if err := ensureWalAbsent(fsy, walP); err != nil {
		_ = appendHandle.Close()
		_ = readHandle.Close()

		return nil, err
	}

	walHandle, err := fsy.OpenFile(walP, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		_ = appendHandle.Close()
		_ = readHandle.Close()

		return nil, wrapIoError("open WAL file", err)
	}

	return &Cache{
		opts:         opts,
		fsy:          fsy,
		clk:          clk,
		comp:         comp,
		aw:           fsys.NewAtomicWriter(fsy),
		appendHandle: appendHandle,
		readHandle:   readHandle,
		walHandle:    walHandle,
		index:        index,
		state:        stateOpen,
	}, nil
}

func ensureHeader(f fsys.File) error {
	info, err := f.Stat()
	if err != nil {
		return wrapIoError("stat blob file", err)
	}

	if info.Size() == 0 {
		if _, err := f.Write([]byte(headerMagic)); err != nil {
			return wrapIoError("write blob header", err)
		}
	}

	return nil
}

func overlayWalFile(fsy fsys.FS, path string, index map[string]indexEntry, now uint32) error {
	f, err := fsy.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return wrapIoError("open WAL file for replay", err)
	}
	defer f.Close()

	replayWAL(bufio.NewReader(f), index, now)

	return nil
}

// requireOpen fails with ErrClosed once the engine has left the Open state.
func (c *Cache) requireOpen() error {
	if c.state != stateOpen {
		return ErrClosed
	}

	return nil
}

// Close implements §4.5's close(): idempotent-rejecting, computes stats,
// conditionally vacuums, releases handles, writes the final index snapshot,
// and removes the WAL. Per §9's design note on close, the lock and handle
// release below always runs, even when computing stats or vacuuming fails
// partway through: a mid-way failure is reported (joined into the returned
// error) but never leaves the blob file locked or its handles open.
func (c *Cache) Close() error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	c.state = stateClosing

	var errs []error

	stats, err := c.statsLocked()
	switch {
	case err != nil:
		errs = append(errs, err)
	case stats.FragmentationRatio > c.opts.AutoVacuumThreshold:
		if err := c.vacuumLocked(); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs,
		c.readHandle.Close(),
		c.walHandle.Close(),
		fsys.UnlockFile(c.appendHandle),
		c.appendHandle.Close(),
		saveIndexSnapshot(c.aw, indexPath(c.opts.BasePath), c.index),
		ensureWalAbsent(c.fsy, walPath(c.opts.BasePath)),
	)

	c.state = stateClosed

	return errors.Join(errs...)
}

