package bcache

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempWal(t *testing.T) *os.File {
	t.Helper()

	f, err := os.OpenFile(filepath.Join(t.TempDir(), "wal"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	t.Cleanup(func() { _ = f.Close() })

	return f
}

func TestWalReplayUpsertAndDelete(t *testing.T) {
	f := openTempWal(t)

	require.NoError(t, appendWalUpsert(f, "a", indexEntry{start: 10, length: 20, expires: 0}))
	require.NoError(t, appendWalUpsert(f, "b", indexEntry{start: 30, length: 5, expires: 0}))
	require.NoError(t, appendWalDelete(f, "a"))

	_, err := f.Seek(0, 0)
	require.NoError(t, err)

	index := map[string]indexEntry{}
	replayWAL(bufio.NewReader(f), index, 0)

	assert.NotContains(t, index, "a")
	assert.Equal(t, indexEntry{start: 30, length: 5, expires: 0}, index["b"])
}

func TestWalReplayExpiredUpsertDropped(t *testing.T) {
	f := openTempWal(t)

	require.NoError(t, appendWalUpsert(f, "a", indexEntry{start: 0, length: 10, expires: 100}))

	_, err := f.Seek(0, 0)
	require.NoError(t, err)

	index := map[string]indexEntry{}
	replayWAL(bufio.NewReader(f), index, 200) // now(200) > expires(100): dropped

	assert.NotContains(t, index, "a")
}

func TestWalReplayTornTailSilentlyDropped(t *testing.T) {
	f := openTempWal(t)

	require.NoError(t, appendWalUpsert(f, "a", indexEntry{start: 1, length: 2, expires: 0}))

	// Append a torn trailing record: a key-length header promising a key
	// that never fully arrives, as if a crash interrupted the write.
	var lenBuf [4]byte
	putU32(lenBuf[:], 100)
	_, err := f.Write(lenBuf[:])
	require.NoError(t, err)
	_, err = f.Write([]byte("short"))
	require.NoError(t, err)

	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	index := map[string]indexEntry{}
	replayWAL(bufio.NewReader(f), index, 0)

	assert.Equal(t, indexEntry{start: 1, length: 2, expires: 0}, index["a"])
	assert.Len(t, index, 1)
}
