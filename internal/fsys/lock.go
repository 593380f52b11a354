package fsys

import (
	"errors"
	"syscall"
)

// ErrWouldBlock is returned by TryLockFile when the file is already locked by
// another process.
var ErrWouldBlock = errors.New("fsys: lock would block")

// TryLockFile acquires a non-blocking exclusive advisory lock on the whole
// file backing f, via flock(2). It returns ErrWouldBlock immediately if
// another process already holds the lock.
//
// Unlike a lock keyed on a separate sentinel path, this locks the data file
// itself: there's no window between "open the lock file" and "flock it"
// where the path could be swapped out from under the caller, so no inode
// reverification is needed.
func TryLockFile(f File) error {
	fd := int(f.Fd())

	err := flockRetryEINTR(fd, syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return nil
	}

	if isWouldBlock(err) {
		return ErrWouldBlock
	}

	return err
}

// UnlockFile releases a lock previously acquired with TryLockFile. Closing
// the file descriptor also releases the lock on Unix, but callers that want
// to keep the descriptor open past the locked section should call this
// explicitly.
func UnlockFile(f File) error {
	return flockRetryEINTR(int(f.Fd()), syscall.LOCK_UN)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

// flockRetryEINTR retries flock on EINTR, the same caution the teacher's
// original locker applies: a blocking syscall interrupted by a signal hasn't
// failed, it just needs to be retried.
func flockRetryEINTR(fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error

	for range maxEINTRRetries {
		err = syscall.Flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}

	return err
}
