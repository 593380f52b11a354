package bcache

import (
	"sort"
	"time"
)

// Get returns the value stored under key (§4.5 get() without a refresh
// callback). It fails with ErrNotFound if key is absent or expired.
func (c *Cache) Get(key string) (Value, error) {
	if err := c.requireOpen(); err != nil {
		return Value{}, err
	}

	entry, ok := c.liveEntry(key)
	if !ok {
		c.stats.misses++

		return Value{}, ErrNotFound
	}

	v, err := c.readValue(entry)
	if err != nil {
		return Value{}, err
	}

	c.stats.hits++

	return v, nil
}

// Refresh is the callback signature accepted by GetOrRefresh: given the
// missed key, it computes the value to store and return.
type Refresh func(key string) (Value, error)

// GetOrRefresh is §4.5's get(key, refresh, new_ttl): if key is present and
// live, it behaves exactly like Get. Otherwise it invokes refresh(key),
// stores the result via Set(key, result, newTTL), and returns that result.
func (c *Cache) GetOrRefresh(key string, refresh Refresh, newTTL time.Duration) (Value, error) {
	if err := c.requireOpen(); err != nil {
		return Value{}, err
	}

	if entry, ok := c.liveEntry(key); ok {
		v, err := c.readValue(entry)
		if err != nil {
			return Value{}, err
		}

		c.stats.hits++

		return v, nil
	}

	c.stats.misses++

	v, err := refresh(key)
	if err != nil {
		return Value{}, err
	}

	if err := c.Set(key, v, newTTL); err != nil {
		return Value{}, err
	}

	c.stats.refreshes++

	return v, nil
}

// Has reports whether key has a live entry (§4.5 has()): present, and
// either expires == 0 or now <= expires. A now == expires observation is
// still live — see DESIGN.md's resolution of §9's open question on the
// expiry boundary.
func (c *Cache) Has(key string) (bool, error) {
	if err := c.requireOpen(); err != nil {
		return false, err
	}

	_, ok := c.liveEntry(key)

	return ok, nil
}

// Keys returns a snapshot of the currently present keys (§4.5 keys()). An
// entry may expire between this call and the caller's subsequent use of the
// slice; Has remains the authoritative liveness check, per spec.
func (c *Cache) Keys() ([]string, error) {
	if err := c.requireOpen(); err != nil {
		return nil, err
	}

	now := c.clk.now()
	keys := make([]string, 0, len(c.index))

	for key, entry := range c.index {
		if !entry.expired(now) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// WhenExpired returns key's expiration (§4.5 when_expired()): the absolute
// epoch second, or the seconds remaining until it if relative is true. A
// never-expiring entry (expires == 0) returns 0, or -now when relative.
// Fails with ErrNotFound if key is absent or already expired, matching Has's
// notion of liveness.
func (c *Cache) WhenExpired(key string, relative bool) (int64, error) {
	if err := c.requireOpen(); err != nil {
		return 0, err
	}

	entry, ok := c.liveEntry(key)
	if !ok {
		return 0, ErrNotFound
	}

	if entry.expires == 0 {
		if relative {
			return -int64(c.clk.now()), nil
		}

		return 0, nil
	}

	if relative {
		return int64(entry.expires) - int64(c.clk.now()), nil
	}

	return int64(entry.expires), nil
}

// FragmentationRatio reports the blob's fraction of dead bytes (§3 invariant
// 6, §4.5 fragmentation_ratio()): 1 - (live frame bytes / blob size
// excluding header). An empty blob (size == header size) yields 1.
func (c *Cache) FragmentationRatio() (float64, error) {
	if err := c.requireOpen(); err != nil {
		return 0, err
	}

	return c.fragmentationRatioLocked()
}

func (c *Cache) fragmentationRatioLocked() (float64, error) {
	info, err := c.appendHandle.Stat()
	if err != nil {
		return 0, wrapIoError("stat blob file for fragmentation ratio", err)
	}

	excludingHeader := info.Size() - int64(len(headerMagic))
	if excludingHeader <= 0 {
		return 1, nil
	}

	var live int64
	for _, entry := range c.index {
		live += int64(entry.length)
	}

	return 1 - float64(live)/float64(excludingHeader), nil
}

// GetStats returns the engine's accumulated counters plus the derived
// fragmentation ratio, key count, and blob file size (§4.5 get_stats()).
func (c *Cache) GetStats() (Stats, error) {
	if err := c.requireOpen(); err != nil {
		return Stats{}, err
	}

	return c.statsLocked()
}

func (c *Cache) statsLocked() (Stats, error) {
	ratio, err := c.fragmentationRatioLocked()
	if err != nil {
		return Stats{}, err
	}

	info, err := c.appendHandle.Stat()
	if err != nil {
		return Stats{}, wrapIoError("stat blob file for stats", err)
	}

	return Stats{
		Hits:               c.stats.hits,
		Misses:             c.stats.misses,
		Sets:               c.stats.sets,
		Deletes:            c.stats.deletes,
		Refreshes:          c.stats.refreshes,
		FragmentationRatio: ratio,
		TotalKeys:          len(c.index),
		DataFileSizeBytes:  info.Size(),
	}, nil
}

// liveEntry looks up key, filtering out entries whose expiry has strictly
// passed (§4.5 has()'s strict-now-greater-than convention).
func (c *Cache) liveEntry(key string) (indexEntry, bool) {
	entry, ok := c.index[key]
	if !ok || entry.expired(c.clk.now()) {
		return indexEntry{}, false
	}

	return entry, true
}

// readValue reads entry's frame, decompresses it, and decodes it per
// Options.DecodeAsMapping.
func (c *Cache) readValue(entry indexEntry) (Value, error) {
	compressed, isBytes, err := readFrame(c.readHandle, entry.start)
	if err != nil {
		return Value{}, err
	}

	payload, err := c.comp.decompress(compressed)
	if err != nil {
		return Value{}, err
	}

	return decodeValue(payload, isBytes, c.opts.DecodeAsMapping)
}
