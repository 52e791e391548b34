package cik

import "sync/atomic"

// ClientStats contains counters of client operations.
// All fields are safe for concurrent access.
//
// For Prometheus integration, expose these as:
//   - Counters: Gets, Sets, Deletes, Clears, Lists, Infos, Errors
//   - Counter: GetHits (derive hit rate as GetHits/Gets)
type ClientStats struct {
	Gets    uint64 // Total Get operations
	GetHits uint64 // Get operations that found a live value
	Sets    uint64 // Total Set/Touch operations
	Deletes uint64 // Total Delete operations
	Clears  uint64 // Total Clear operations
	Lists   uint64 // Total List operations
	Infos   uint64 // Total Info/KeyInfo operations
	Errors  uint64 // Hard errors across all operations
}

// clientStatsCollector provides internal methods for updating client stats.
type clientStatsCollector struct {
	stats ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordGet(hit bool) {
	atomic.AddUint64(&c.stats.Gets, 1)
	if hit {
		atomic.AddUint64(&c.stats.GetHits, 1)
	}
}

func (c *clientStatsCollector) recordSet() {
	atomic.AddUint64(&c.stats.Sets, 1)
}

func (c *clientStatsCollector) recordDelete() {
	atomic.AddUint64(&c.stats.Deletes, 1)
}

func (c *clientStatsCollector) recordClear() {
	atomic.AddUint64(&c.stats.Clears, 1)
}

func (c *clientStatsCollector) recordList() {
	atomic.AddUint64(&c.stats.Lists, 1)
}

func (c *clientStatsCollector) recordInfo() {
	atomic.AddUint64(&c.stats.Infos, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

// snapshot returns a consistent-enough copy for reporting.
func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Gets:    atomic.LoadUint64(&c.stats.Gets),
		GetHits: atomic.LoadUint64(&c.stats.GetHits),
		Sets:    atomic.LoadUint64(&c.stats.Sets),
		Deletes: atomic.LoadUint64(&c.stats.Deletes),
		Clears:  atomic.LoadUint64(&c.stats.Clears),
		Lists:   atomic.LoadUint64(&c.stats.Lists),
		Infos:   atomic.LoadUint64(&c.stats.Infos),
		Errors:  atomic.LoadUint64(&c.stats.Errors),
	}
}
