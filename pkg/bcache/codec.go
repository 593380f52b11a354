package bcache

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Fixed widths used throughout the blob, index, and WAL formats (§4.1, §6).
const (
	widthFlag   = 1
	widthU32    = 4
	widthU64    = 8
	headerMagic = "blob.cache.data.01"
)

func putU32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func putU64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

// decodeU32 decodes a little-endian uint32, failing with ErrCorrupt if r
// returns fewer than 4 bytes.
func decodeU32(r io.Reader, what string) (uint32, error) {
	var buf [widthU32]byte

	if err := decodeExact(r, buf[:], what); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}

// decodeU64 decodes a little-endian uint64, failing with ErrCorrupt if r
// returns fewer than 8 bytes.
func decodeU64(r io.Reader, what string) (uint64, error) {
	var buf [widthU64]byte

	if err := decodeExact(r, buf[:], what); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buf[:]), nil
}

// decodeFlag decodes a single flag byte, failing with ErrCorrupt if r
// returns no byte.
func decodeFlag(r io.Reader, what string) (byte, error) {
	var buf [widthFlag]byte

	if err := decodeExact(r, buf[:], what); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// decodeBytes reads exactly n bytes, failing with ErrCorrupt on a short
// read.
func decodeBytes(r io.Reader, n uint32, what string) ([]byte, error) {
	buf := make([]byte, n)

	if err := decodeExact(r, buf, what); err != nil {
		return nil, err
	}

	return buf, nil
}

// decodeExact reads len(buf) bytes from r. Any error — including a clean
// EOF — is surfaced as ErrCorrupt, since a fixed-width field is expected to
// be fully present; callers doing tolerant end-of-stream detection (WAL and
// index replay) check for io.EOF themselves before calling in.
func decodeExact(r io.Reader, buf []byte, what string) error {
	_, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: short read on %s: %v", ErrCorrupt, what, err)
}
