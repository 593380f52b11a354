package bcache

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/ddofborg/blob-cache/internal/fsys"
)

// Set stores value under key with an optional TTL (§4.5 set()). ttl <= 0
// means "never expires", matching the spec's expires = (ttl > 0) ? now + ttl
// : 0. The frame is appended to the blob, recorded in the WAL, and installed
// in the in-memory index — in that order — before Set returns, so a clean
// return means the write already survives a crash (§5 ordering guarantee).
func (c *Cache) Set(key string, value Value, ttl time.Duration) error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	if key == "" {
		return ErrBadKey
	}

	payload, isBytes, err := encodeValue(value)
	if err != nil {
		return err
	}

	compressed, err := c.comp.compress(payload)
	if err != nil {
		return err
	}

	start, length, err := appendFrame(c.appendHandle, compressed, isBytes)
	if err != nil {
		return err
	}

	entry := indexEntry{start: start, length: length, expires: expiresAt(c.clk.now(), ttl)}

	if err := appendWalUpsert(c.walHandle, key, entry); err != nil {
		return err
	}

	c.index[key] = entry
	c.stats.sets++

	return nil
}

// expiresAt computes the absolute expiration timestamp for a TTL, per §4.5:
// ttl <= 0 means never expires.
func expiresAt(now uint32, ttl time.Duration) uint32 {
	if ttl <= 0 {
		return 0
	}

	return now + uint32(ttl/time.Second)
}

// Delete removes key if present (§4.5 delete()). Deleting an absent key is a
// no-op, not an error.
func (c *Cache) Delete(key string) error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	if _, ok := c.index[key]; !ok {
		return nil
	}

	if err := appendWalDelete(c.walHandle, key); err != nil {
		return err
	}

	delete(c.index, key)
	c.stats.deletes++

	return nil
}

// Del is a synonym for Delete (§4.5 del()).
func (c *Cache) Del(key string) error {
	return c.Delete(key)
}

// DeleteStartsWith deletes every key whose byte representation begins with
// prefix (§4.5 delete_starts_with()). It snapshots the matching key set
// before deleting, as the spec requires, so mutating the index mid-scan
// cannot skip or double-visit a key.
func (c *Cache) DeleteStartsWith(prefix string) error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	matched := make([]string, 0, len(c.index))

	for key := range c.index {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			matched = append(matched, key)
		}
	}

	for _, key := range matched {
		if err := c.Delete(key); err != nil {
			return err
		}
	}

	return nil
}

// Vacuum rebuilds the blob to contain only live frames, in index iteration
// order, and atomically replaces the blob and index files (§4.5 vacuum()).
func (c *Cache) Vacuum() error {
	if err := c.requireOpen(); err != nil {
		return err
	}

	return c.vacuumLocked()
}

// vacuumLocked is Vacuum's body, callable from Close without re-checking
// engine state (Close has already transitioned past stateOpen by the time it
// calls this).
func (c *Cache) vacuumLocked() error {
	blobP := blobPath(c.opts.BasePath)

	var buf bytes.Buffer
	buf.WriteString(headerMagic)

	rebuilt := make(map[string]indexEntry, len(c.index))

	for key, entry := range c.index {
		payload, isBytes, err := readFrame(c.readHandle, entry.start)
		if err != nil {
			return err
		}

		newStart := uint64(buf.Len())

		flag := byte(0)
		if isBytes {
			flag = 1
		}

		var lenBuf [widthU32]byte
		putU32(lenBuf[:], uint32(len(payload)))

		buf.WriteByte(flag)
		buf.Write(lenBuf[:])
		buf.Write(payload)

		newLength := frameOverhead + uint32(len(payload))

		rebuilt[key] = indexEntry{start: newStart, length: newLength, expires: entry.expires}
	}

	if err := c.aw.Write(blobP, bytes.NewReader(buf.Bytes()), 0o644); err != nil {
		return err
	}

	if err := c.reopenBlobHandles(); err != nil {
		return err
	}

	c.index = rebuilt

	if err := saveIndexSnapshot(c.aw, indexPath(c.opts.BasePath), c.index); err != nil {
		return err
	}

	return c.reopenWalHandle()
}

// reopenWalHandle removes the WAL file and opens a fresh one at the same
// path. Used by vacuumLocked once the index snapshot it wrote makes the old
// WAL records redundant: leaving the old handle open after unlinking its
// path would keep accepting writes on a now-unreachable inode, invisible to
// any future Open's replay.
func (c *Cache) reopenWalHandle() error {
	walP := walPath(c.opts.BasePath)

	if err := c.walHandle.Close(); err != nil {
		return wrapIoError("close WAL handle before vacuum reopen", err)
	}

	if err := ensureWalAbsent(c.fsy, walP); err != nil {
		return err
	}

	walHandle, err := c.fsy.OpenFile(walP, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return wrapIoError("reopen WAL file after vacuum", err)
	}

	c.walHandle = walHandle

	return nil
}

// reopenBlobHandles closes and reopens both blob handles after Vacuum renames
// a new file over the blob path, so subsequent reads and appends target the
// new inode rather than the now-unlinked old one (§5: "the implementation
// must reopen the read handle as part of vacuum").
func (c *Cache) reopenBlobHandles() error {
	blobP := blobPath(c.opts.BasePath)

	if err := fsys.UnlockFile(c.appendHandle); err != nil {
		return wrapIoError("unlock blob file before vacuum reopen", err)
	}

	if err := c.appendHandle.Close(); err != nil {
		return wrapIoError("close blob append handle before vacuum reopen", err)
	}

	if err := c.readHandle.Close(); err != nil {
		return wrapIoError("close blob read handle before vacuum reopen", err)
	}

	appendHandle, err := c.fsy.OpenFile(blobP, os.O_RDWR, 0o644)
	if err != nil {
		return wrapIoError("reopen blob append handle after vacuum", err)
	}

	if err := fsys.TryLockFile(appendHandle); err != nil {
		_ = appendHandle.Close()

		return wrapIoError("relock blob file after vacuum", err)
	}

	if _, err := appendHandle.Seek(0, io.SeekEnd); err != nil {
		_ = appendHandle.Close()

		return wrapIoError("seek to end of blob after vacuum", err)
	}

	readHandle, err := c.fsy.OpenFile(blobP, os.O_RDONLY, 0)
	if err != nil {
		_ = appendHandle.Close()

		return wrapIoError("reopen blob read handle after vacuum", err)
	}

	c.appendHandle = appendHandle
	c.readHandle = readHandle

	return nil
}
