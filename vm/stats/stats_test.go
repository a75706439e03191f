package stats

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	var c Collector
	for i := 0; i < 5; i++ {
		c.Fault()
	}
	c.FirstTouch()
	c.SwapIn()
	c.CopyOnWrite()
	c.SwapOut()
	c.SwapOut()

	s := c.Snapshot()
	assert.Equal(t, uint64(5), s.TotalFaults)
	assert.Equal(t, uint64(3), s.ResolvedFaults)
	assert.Equal(t, uint64(1), s.SwapIns)
	assert.Equal(t, uint64(2), s.SwapOuts)
	assert.Equal(t, uint64(1), s.FirstTouches)
	assert.Equal(t, uint64(1), s.CopyOnWrites)
	assert.Equal(t, uint64(2), s.Unresolved())
	assert.InDelta(t, 60.0, s.ResolutionRate(), 1e-9)

	c.Reset()
	require.Equal(t, Stats{}, c.Snapshot())
}

func TestResolutionRate_NoFaults(t *testing.T) {
	require.Zero(t, Stats{}.ResolutionRate())
}

func TestCollector_Concurrent(t *testing.T) {
	var (
		c  Collector
		wg sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Fault()
				c.FirstTouch()
			}
		}()
	}
	wg.Wait()
	s := c.Snapshot()
	require.Equal(t, uint64(8000), s.TotalFaults)
	require.Equal(t, uint64(8000), s.ResolvedFaults)
	require.InDelta(t, 100.0, s.ResolutionRate(), 1e-9)
}

func TestDump(t *testing.T) {
	var out bytes.Buffer
	err := Dump(&out, Stats{TotalFaults: 1234567, ResolvedFaults: 1234567, SwapOuts: 10})
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "Page fault statistics:")
	require.Contains(t, text, "1,234,567", "thousands separators")
	require.Contains(t, text, "100.00%")
	require.Contains(t, text, "Swap-outs")
}

func TestDump_ZeroFaults(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Dump(&out, Stats{}))
	require.Contains(t, out.String(), "0.00%")
}
