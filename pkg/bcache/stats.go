package bcache

// Stats is the accumulated counters and derived metrics §4.5's
// get_stats() returns. Modeled on the hits/misses/sets/deletes counter
// shape of Scarage1-FlashDB's engine.Stats, with a refreshes counter added
// for the refresh-on-miss path this spec names.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Sets      uint64
	Deletes   uint64
	Refreshes uint64

	FragmentationRatio float64
	TotalKeys          int
	DataFileSizeBytes  int64
}

type counters struct {
	hits      uint64
	misses    uint64
	sets      uint64
	deletes   uint64
	refreshes uint64
}
