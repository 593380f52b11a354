package bcache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ddofborg/blob-cache/internal/fsys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets TTL tests advance time deterministically instead of
// sleeping on the wall clock.
type fakeClock struct{ t uint32 }

func (c *fakeClock) now() uint32 { return c.t }

func openTestCache(t *testing.T, opts Options) (*Cache, *fakeClock) {
	t.Helper()

	clk := &fakeClock{t: 1_700_000_000}

	if opts.BasePath == "" {
		opts.BasePath = filepath.Join(t.TempDir(), "cache")
	}

	c, err := openWith(opts, fsys.NewReal(), clk, newZlibCompressor())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c, clk
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	cases := map[string]Value{
		"empty":    BytesValue(nil),
		"bytes":    BytesValue([]byte{0x00, 0x01, 0xff, 0xfe}),
		"string":   StringValue("hello, 世界"),
		"bool":     BoolValue(true),
		"int":      IntValue(-42),
		"float":    FloatValue(1.5),
		"sequence": SequenceValue([]Value{IntValue(1), IntValue(2), IntValue(3)}),
		"mapping":  MappingValue(map[string]Value{"a": IntValue(1), "b": IntValue(2)}),
	}

	for key, v := range cases {
		require.NoError(t, c.Set(key, v, 0))
	}

	for key, want := range cases {
		got, err := c.Get(key)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "key %s: got %+v, want %+v", key, got, want)
	}
}

func TestSetGetLargeValue(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	big := make([]byte, 1<<20)
	for i := range big {
		big[i] = byte(i)
	}

	require.NoError(t, c.Set("big", BytesValue(big), 0))

	got, err := c.Get("big")
	require.NoError(t, err)

	gotBytes, ok := got.Bytes()
	require.True(t, ok)
	assert.Equal(t, big, gotBytes)
}

func TestSetOverwrite(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	require.NoError(t, c.Set("k", StringValue("v1"), 0))
	require.NoError(t, c.Set("k", StringValue("v2"), 0))

	got, err := c.Get("k")
	require.NoError(t, err)

	s, _ := got.String()
	assert.Equal(t, "v2", s)
}

func TestDelete(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	require.NoError(t, c.Set("d", StringValue("x"), 0))

	has, err := c.Has("d")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, c.Delete("d"))

	has, err = c.Has("d")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = c.Get("d")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAbsentKeyIsNoop(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	assert.NoError(t, c.Delete("missing"))
}

func TestTTLExpiry(t *testing.T) {
	c, clk := openTestCache(t, Options{})

	require.NoError(t, c.Set("k", StringValue("v"), 2*time.Second))

	has, err := c.Has("k")
	require.NoError(t, err)
	assert.True(t, has)

	clk.t += 2 // now == expires: still live per the strict-greater-than convention
	has, err = c.Has("k")
	require.NoError(t, err)
	assert.True(t, has)

	clk.t++ // now > expires: expired
	has, err = c.Has("k")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshOnMiss(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	calls := 0
	refresh := func(key string) (Value, error) {
		calls++

		return StringValue("value_new_20"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrRefresh("r", refresh, 20*time.Second)
		require.NoError(t, err)

		s, _ := v.String()
		assert.Equal(t, "value_new_20", s)
	}

	assert.Equal(t, 1, calls, "subsequent calls should hit the now-live key, not refresh again")

	relative, err := c.WhenExpired("r", true)
	require.NoError(t, err)
	assert.True(t, relative > 0 && relative <= 20)
}

func TestGetWithoutRefreshFailsNotFound(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrefixDelete(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	for _, k := range []string{"user:1", "user:2", "user:3", "order:1"} {
		require.NoError(t, c.Set(k, StringValue(k), 0))
	}

	require.NoError(t, c.DeleteStartsWith("user:"))

	keys, err := c.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"order:1"}, keys)
}

func TestFragmentationAndVacuum(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	for i := 0; i < 100; i++ {
		value := make([]byte, 10*1024)
		for j := range value {
			value[j] = byte(i)
		}

		require.NoError(t, c.Set("k", BytesValue(value), 0))
	}

	ratio, err := c.FragmentationRatio()
	require.NoError(t, err)
	assert.True(t, ratio > 0.98, "expected fragmentation > 0.98, got %v", ratio)

	require.NoError(t, c.Vacuum())

	ratio, err = c.FragmentationRatio()
	require.NoError(t, err)
	assert.Equal(t, float64(0), ratio)

	got, err := c.Get("k")
	require.NoError(t, err)

	lastValue := make([]byte, 10*1024)
	for j := range lastValue {
		lastValue[j] = byte(99)
	}

	gotBytes, _ := got.Bytes()
	assert.Equal(t, lastValue, gotBytes)
}

func TestFragmentationRatioBounds(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	ratio, err := c.FragmentationRatio()
	require.NoError(t, err)
	assert.Equal(t, float64(1), ratio, "empty blob should report fragmentation 1")

	require.NoError(t, c.Set("k", StringValue("v"), 0))

	ratio, err = c.FragmentationRatio()
	require.NoError(t, err)
	assert.True(t, ratio >= 0 && ratio <= 1)
}

func TestPostVacuumIdentity(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	values := map[string]Value{
		"a": IntValue(1),
		"b": StringValue("two"),
		"c": SequenceValue([]Value{IntValue(1), IntValue(2)}),
	}

	for k, v := range values {
		require.NoError(t, c.Set(k, v, 0))
	}

	require.NoError(t, c.Vacuum())

	for k, want := range values {
		got, err := c.Get(k)
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}
}

func TestCrashRecovery(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cache")
	clk := &fakeClock{t: 1_700_000_000}

	c1, err := openWith(Options{BasePath: base}, fsys.NewReal(), clk, newZlibCompressor())
	require.NoError(t, err)

	require.NoError(t, c1.Set("a", IntValue(1), 0))
	require.NoError(t, c1.Set("b", IntValue(2), 0))
	require.NoError(t, c1.Delete("a"))

	// Simulate a crash: drop all handles without calling Close, so no final
	// index snapshot is written and the WAL file is left behind.
	_ = c1.appendHandle.Close()
	_ = c1.readHandle.Close()
	_ = c1.walHandle.Close()

	c2, err := openWith(Options{BasePath: base}, fsys.NewReal(), clk, newZlibCompressor())
	require.NoError(t, err)

	t.Cleanup(func() { _ = c2.Close() })

	has, err := c2.Has("a")
	require.NoError(t, err)
	assert.False(t, has)

	v, err := c2.Get("b")
	require.NoError(t, err)

	i, _ := v.Int()
	assert.Equal(t, int64(2), i)
}

func TestSingleWriterExclusion(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cache")

	c1, err := Open(Options{BasePath: base})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c1.Close() })

	_, err = Open(Options{BasePath: base})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestOperationsFailAfterClose(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	require.NoError(t, c.Close())

	_, err := c.Get("k")
	assert.ErrorIs(t, err, ErrClosed)

	err = c.Set("k", StringValue("v"), 0)
	assert.ErrorIs(t, err, ErrClosed)

	err = c.Close()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAutoVacuumOnClose(t *testing.T) {
	base := filepath.Join(t.TempDir(), "cache")
	clk := &fakeClock{t: 1_700_000_000}

	c, err := openWith(Options{BasePath: base, AutoVacuumThreshold: 0.1}, fsys.NewReal(), clk, newZlibCompressor())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Set("k", StringValue("value"), 0))
	}

	require.NoError(t, c.Close())

	c2, err := openWith(Options{BasePath: base}, fsys.NewReal(), clk, newZlibCompressor())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Close() })

	ratio, err := c2.FragmentationRatio()
	require.NoError(t, err)
	assert.Equal(t, float64(0), ratio, "Close should have vacuumed a heavily fragmented blob")
}

func TestSetEmptyKeyFailsBadKey(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	err := c.Set("", StringValue("v"), 0)
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestWhenExpiredNeverExpires(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	require.NoError(t, c.Set("k", StringValue("v"), 0))

	abs, err := c.WhenExpired("k", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), abs)
}

func TestWhenExpiredAbsentKey(t *testing.T) {
	c, _ := openTestCache(t, Options{})

	_, err := c.WhenExpired("missing", false)
	assert.True(t, errors.Is(err, ErrNotFound))
}
