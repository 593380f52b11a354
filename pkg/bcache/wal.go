package bcache

import (
	"bufio"
	"errors"
	"os"

	"github.com/ddofborg/blob-cache/internal/fsys"
)

const (
	walOpDelete = 0
	walOpUpsert = 1
)

// appendWalUpsert writes an upsert record (§4.3, §6) and flushes it.
func appendWalUpsert(w fsys.File, key string, entry indexEntry) error {
	buf := make([]byte, 0, widthU32+len(key)+widthFlag+widthU64+widthU32+widthU32)

	var head [widthU32]byte
	putU32(head[:], uint32(len(key)))
	buf = append(buf, head[:]...)
	buf = append(buf, key...)
	buf = append(buf, walOpUpsert)

	var tail [widthU64 + widthU32 + widthU32]byte
	putU64(tail[:widthU64], entry.start)
	putU32(tail[widthU64:widthU64+widthU32], entry.length)
	putU32(tail[widthU64+widthU32:], entry.expires)
	buf = append(buf, tail[:]...)

	return writeAndFlushWal(w, buf)
}

// appendWalDelete writes a delete record (§4.3, §6) and flushes it.
func appendWalDelete(w fsys.File, key string) error {
	buf := make([]byte, 0, widthU32+len(key)+widthFlag)

	var head [widthU32]byte
	putU32(head[:], uint32(len(key)))
	buf = append(buf, head[:]...)
	buf = append(buf, key...)
	buf = append(buf, walOpDelete)

	return writeAndFlushWal(w, buf)
}

// writeAndFlushWal writes buf to the WAL. §5's flush discipline only
// requires the user-space buffer reach the OS before the call returns,
// which Write alone satisfies; it does not call fsync (§1 Non-goals,
// §9 design note 4).
func writeAndFlushWal(w fsys.File, buf []byte) error {
	if _, err := w.Write(buf); err != nil {
		return wrapIoError("append WAL record", err)
	}

	return nil
}

// replayWAL overlays the WAL's records, in file order, onto index (loaded
// from the snapshot). Expired upserts are dropped, same as the snapshot
// loader. A record that is short or partially written — the torn tail left
// by a crash mid-append — silently terminates replay (§4.3, §8 property 8):
// no error is returned, and the index reflects every fully-written record
// that precedes it.
func replayWAL(r *bufio.Reader, index map[string]indexEntry, now uint32) {
	for {
		key, op, entry, ok := decodeWalRecord(r)
		if !ok {
			return
		}

		switch op {
		case walOpUpsert:
			if !entry.expired(now) {
				index[key] = entry
			} else {
				delete(index, key)
			}
		case walOpDelete:
			delete(index, key)
		}
	}
}

// decodeWalRecord reads one record from r. ok is false whenever nothing
// more can be safely decoded, whether because the stream ended cleanly at a
// record boundary or because the trailing record was torn — both cases are
// treated identically by the caller.
func decodeWalRecord(r *bufio.Reader) (key string, op byte, entry indexEntry, ok bool) {
	if _, err := r.Peek(1); err != nil {
		return "", 0, indexEntry{}, false
	}

	keyLen, err := decodeU32(r, "WAL key length")
	if err != nil {
		return "", 0, indexEntry{}, false
	}

	keyBytes, err := decodeBytes(r, keyLen, "WAL key")
	if err != nil {
		return "", 0, indexEntry{}, false
	}

	opByte, err := decodeFlag(r, "WAL op")
	if err != nil {
		return "", 0, indexEntry{}, false
	}

	if opByte == walOpDelete {
		return string(keyBytes), walOpDelete, indexEntry{}, true
	}

	if opByte != walOpUpsert {
		return "", 0, indexEntry{}, false
	}

	start, err := decodeU64(r, "WAL start")
	if err != nil {
		return "", 0, indexEntry{}, false
	}

	length, err := decodeU32(r, "WAL length")
	if err != nil {
		return "", 0, indexEntry{}, false
	}

	expires, err := decodeU32(r, "WAL expires")
	if err != nil {
		return "", 0, indexEntry{}, false
	}

	return string(keyBytes), walOpUpsert, indexEntry{start: start, length: length, expires: expires}, true
}

// ensureWalAbsent is a small helper shared by Open (after replay) and Close
// (after the final snapshot): it removes the WAL file if present, and treats
// "already absent" as success.
func ensureWalAbsent(fsy fsys.FS, path string) error {
	err := fsy.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return wrapIoError("remove WAL file", err)
}
