package bcache

import (
	"errors"
	"fmt"
)

// Error kinds. Tests and callers should classify errors with errors.Is.
var (
	// ErrBadKey is returned when a key is not a nonempty string.
	ErrBadKey = errors.New("bcache: bad key")

	// ErrBadValue is returned when a value is neither raw bytes nor
	// encodable as a structured value.
	ErrBadValue = errors.New("bcache: bad value")

	// ErrNotFound is returned by Get (without a refresh function) and by
	// WhenExpired when the key is absent or expired.
	ErrNotFound = errors.New("bcache: not found")

	// ErrClosed is returned by any operation on a closed Cache, including a
	// second Close.
	ErrClosed = errors.New("bcache: closed")

	// ErrLocked is returned by Open when another process already holds the
	// advisory lock on the blob file.
	ErrLocked = errors.New("bcache: locked")

	// ErrIoError wraps any underlying filesystem failure.
	ErrIoError = errors.New("bcache: io error")

	// ErrCodecError wraps compression, decompression, or structured
	// encode/decode failures.
	ErrCodecError = errors.New("bcache: codec error")

	// ErrCorrupt is returned on a short read, a malformed frame, or an
	// inconsistent length in the blob or index. A short or torn WAL record
	// ends WAL replay silently instead.
	ErrCorrupt = errors.New("bcache: corrupt")
)

func wrapIoError(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIoError, what, err)
}

func wrapCodecError(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCodecError, what, err)
}
