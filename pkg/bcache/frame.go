package bcache

import (
	"io"

	"github.com/ddofborg/blob-cache/internal/fsys"
)

// frameOverhead is the fixed part of every frame: the flag byte plus the
// 4-byte payload length (§4.2, §6). start is defined as the offset of the
// flag byte — the first byte of the frame — per §4.2's recommended, and
// here adopted, convention. The same convention is used by the index
// snapshot and by Vacuum.
const frameOverhead = widthFlag + widthU32

// appendFrame appends one frame to the blob's append handle. It returns the
// frame's start offset and total length (1 + 4 + len(payload)). §4.2's
// "flush the underlying write buffer" is satisfied by Write itself: a
// fsys.File has no userspace buffering layer above it to flush. Durable
// fsync is explicitly out of scope (§1 Non-goals, §5 flush discipline).
func appendFrame(w fsys.File, payload []byte, isBytes bool) (start uint64, length uint32, err error) {
	off, err := w.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, wrapIoError("seek to end of blob", err)
	}

	buf := make([]byte, frameOverhead+len(payload))
	if isBytes {
		buf[0] = 1
	} else {
		buf[0] = 0
	}

	putU32(buf[widthFlag:], uint32(len(payload)))
	copy(buf[frameOverhead:], payload)

	if _, err := w.Write(buf); err != nil {
		return 0, 0, wrapIoError("write frame", err)
	}

	return uint64(off), uint32(len(buf)), nil
}

// readFrame reads the frame at start from the blob's read handle, returning
// its raw (still-compressed) payload and is_bytes flag.
func readFrame(r fsys.File, start uint64) (payload []byte, isBytes bool, err error) {
	if _, err := r.Seek(int64(start), io.SeekStart); err != nil {
		return nil, false, wrapIoError("seek to frame", err)
	}

	flag, err := decodeFlag(r, "frame flag")
	if err != nil {
		return nil, false, err
	}

	payloadLength, err := decodeU32(r, "frame payload length")
	if err != nil {
		return nil, false, err
	}

	payload, err = decodeBytes(r, payloadLength, "frame payload")
	if err != nil {
		return nil, false, err
	}

	return payload, flag == 1, nil
}
