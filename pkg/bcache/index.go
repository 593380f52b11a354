package bcache

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/ddofborg/blob-cache/internal/fsys"
)

// indexEntry is the in-memory and on-disk representation of §3's "Index
// entry": where a key's frame lives in the blob, how long it is, and when
// it expires (0 = never).
type indexEntry struct {
	start   uint64
	length  uint32
	expires uint32
}

// expired reports whether e has passed its expiration as of now, using the
// spec's strict-greater-than convention (§9 open question 1, §8 property 4):
// now == expires is still live, only now > expires is expired.
func (e indexEntry) expired(now uint32) bool {
	return e.expires != 0 && now > e.expires
}

// encodeIndexEntry appends one entry's on-disk form (§4.4, §6: key length,
// key bytes, start, length, expires) to buf.
func encodeIndexEntry(buf []byte, key string, e indexEntry) []byte {
	var head [widthU32]byte
	putU32(head[:], uint32(len(key)))
	buf = append(buf, head[:]...)
	buf = append(buf, key...)

	var tail [widthU64 + widthU32 + widthU32]byte
	putU64(tail[:widthU64], e.start)
	putU32(tail[widthU64:widthU64+widthU32], e.length)
	putU32(tail[widthU64+widthU32:], e.expires)
	buf = append(buf, tail[:]...)

	return buf
}

// decodeIndexEntry reads one entry from r. ok is false (with a nil error) on
// a clean end-of-stream at an entry boundary; err is non-nil only for a
// genuine corruption (a torn entry, which the index format — unlike the
// WAL — does not tolerate, since it is only ever written via atomic
// rename).
func decodeIndexEntry(r *bufio.Reader) (key string, entry indexEntry, ok bool, err error) {
	if _, peekErr := r.Peek(1); peekErr != nil {
		if errors.Is(peekErr, io.EOF) {
			return "", indexEntry{}, false, nil
		}

		return "", indexEntry{}, false, wrapIoError("peek index entry", peekErr)
	}

	keyLen, err := decodeU32(r, "index key length")
	if err != nil {
		return "", indexEntry{}, false, err
	}

	keyBytes, err := decodeBytes(r, keyLen, "index key")
	if err != nil {
		return "", indexEntry{}, false, err
	}

	start, err := decodeU64(r, "index start")
	if err != nil {
		return "", indexEntry{}, false, err
	}

	length, err := decodeU32(r, "index length")
	if err != nil {
		return "", indexEntry{}, false, err
	}

	expires, err := decodeU32(r, "index expires")
	if err != nil {
		return "", indexEntry{}, false, err
	}

	return string(keyBytes), indexEntry{start: start, length: length, expires: expires}, true, nil
}

// loadIndexSnapshot reads the index file at path, skipping entries that are
// already expired as of now (§4.4), using the same strict now > expires
// convention as indexEntry.expired throughout the engine. A missing file
// yields an empty index.
func loadIndexSnapshot(fsy fsys.FS, path string, now uint32) (map[string]indexEntry, error) {
	f, err := fsy.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]indexEntry{}, nil
		}

		return nil, wrapIoError("open index file", err)
	}
	defer f.Close()

	index := map[string]indexEntry{}
	r := bufio.NewReader(f)

	for {
		key, entry, ok, err := decodeIndexEntry(r)
		if err != nil {
			return nil, err
		}

		if !ok {
			return index, nil
		}

		if !entry.expired(now) {
			index[key] = entry
		}
	}
}

// saveIndexSnapshot serializes index to a temp file and atomically renames
// it over path (§4.4).
func saveIndexSnapshot(aw *fsys.AtomicWriter, path string, index map[string]indexEntry) error {
	var buf bytes.Buffer

	for key, entry := range index {
		b := encodeIndexEntry(nil, key, entry)
		buf.Write(b)
	}

	if err := aw.Write(path, &buf, 0o644); err != nil {
		return wrapIoError("write index snapshot", err)
	}

	return nil
}
