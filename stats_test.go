package cik

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsCollector(t *testing.T) {
	c := newClientStatsCollector()

	c.recordGet(true)
	c.recordGet(false)
	c.recordSet()
	c.recordDelete()
	c.recordClear()
	c.recordList()
	c.recordInfo()
	c.recordError()

	stats := c.snapshot()
	assert.EqualValues(t, 2, stats.Gets)
	assert.EqualValues(t, 1, stats.GetHits)
	assert.EqualValues(t, 1, stats.Sets)
	assert.EqualValues(t, 1, stats.Deletes)
	assert.EqualValues(t, 1, stats.Clears)
	assert.EqualValues(t, 1, stats.Lists)
	assert.EqualValues(t, 1, stats.Infos)
	assert.EqualValues(t, 1, stats.Errors)
}

func TestStatsCollectorConcurrent(t *testing.T) {
	c := newClientStatsCollector()

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 1000; n++ {
				c.recordGet(true)
			}
		}()
	}
	wg.Wait()

	stats := c.snapshot()
	assert.EqualValues(t, 8000, stats.Gets)
	assert.EqualValues(t, 8000, stats.GetHits)
}
