package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/pagekit/internal/format"
)

func TestCreateAndInfo(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "pagefile.swp")
	createSize = "64K"

	out, err := captureOutput(t, func() error { return runCreate([]string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "Created swap file")
	assert.Contains(t, out, "Slots: 16 x 4096 bytes")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(format.HeaderSize+16*4096), info.Size())

	out, err = captureOutput(t, func() error { return runCreate([]string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "Adopted existing swap file")

	out, err = captureOutput(t, func() error { return runInfo([]string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "Magic: 0x53574150")
	assert.Contains(t, out, "Slots: 16")
	assert.Contains(t, out, "✓ Header valid")

	jsonOut = true
	out, err = captureOutput(t, func() error { return runInfo([]string{path}) })
	require.NoError(t, err)
	var result struct {
		Valid  bool       `json:"valid"`
		Header headerInfo `json:"header"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, uint32(16), result.Header.TotalPages)
	assert.Equal(t, "0", result.Header.FreeHead)
}

func TestInfo_Truncated(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "pagefile.swp")
	createSize = "64K"
	_, err := captureOutput(t, func() error { return runCreate([]string{path}) })
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, format.HeaderSize+4096))

	out, err := captureOutput(t, func() error { return runInfo([]string{path}) })
	require.Error(t, err)
	assert.Contains(t, out, "✗")

	_, err = captureOutput(t, func() error { return runInspect([]string{path}) })
	require.ErrorContains(t, err, "refusing to inspect")
}

func TestInspect(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "pagefile.swp")
	createSize = "16K"
	_, err := captureOutput(t, func() error { return runCreate([]string{path}) })
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("hello slot one"), format.HeaderSize+4096)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	inspectSlot, inspectBytes = 1, 16
	out, err := captureOutput(t, func() error { return runInspect([]string{path}) })
	require.NoError(t, err)
	assert.Contains(t, out, "Slot 1 at offset 0x101C")
	assert.Contains(t, out, "|hello slot one..|")

	inspectSlot = 4
	_, err = captureOutput(t, func() error { return runInspect([]string{path}) })
	require.ErrorContains(t, err, "out of range")
}

func TestSimulate(t *testing.T) {
	for _, policy := range []string{"ascending", "lru"} {
		t.Run(policy, func(t *testing.T) {
			resetFlags()
			simFrames, simPages, simShared, simRounds, simBatch = 8, 40, 4, 2, 2
			simPolicy = policy
			simSwap = filepath.Join(t.TempDir(), "sim.swp")
			jsonOut = true

			out, err := captureOutput(t, func() error { return runSimulate(t.Context()) })
			require.NoError(t, err)

			var res simResult
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, policy, res.Policy)
			assert.Positive(t, res.Pressure)
			assert.Positive(t, res.Stats.SwapOuts)
			assert.Positive(t, res.Stats.SwapIns)
			if policy == "ascending" {
				// The shared twins sit at the top of the range and outlive
				// the first evictions.
				assert.Positive(t, res.Stats.CopyOnWrites)
			}
			// Only out-of-frame faults go unresolved, one per pressure signal.
			assert.Equal(t, uint64(res.Pressure), res.Stats.Unresolved())
			assert.Equal(t, uint32(80), res.SlotsTotal)
		})
	}
}

func TestSimulate_Config(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "pager.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"swap_path: "+filepath.Join(dir, "cfg.swp")+"\n"+
			"swap_size: 1048576\n"+
			"evict_batch: 4\n"+
			"policy: lru\n"+
			"user_end: 0x00500000\n"), 0o600))
	simConfig = cfg
	simFrames, simPages, simShared, simRounds = 6, 20, 2, 1

	out, err := captureOutput(t, func() error { return runSimulate(t.Context()) })
	require.NoError(t, err)
	assert.Contains(t, out, "policy lru")
	assert.Contains(t, out, "Page fault statistics:")
	_, err = os.Stat(filepath.Join(dir, "cfg.swp"))
	require.NoError(t, err)
}

func TestSimulate_BadArgs(t *testing.T) {
	resetFlags()
	simShared = simPages + 1
	_, err := captureOutput(t, func() error { return runSimulate(t.Context()) })
	require.Error(t, err)

	resetFlags()
	simPolicy = "clock"
	simSwap = filepath.Join(t.TempDir(), "x.swp")
	_, err = captureOutput(t, func() error { return runSimulate(t.Context()) })
	require.ErrorContains(t, err, "unknown eviction policy")
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"4096": 4096,
		"64K":  64 << 10,
		"256M": 256 << 20,
		"1G":   1 << 30,
		"2gb":  2 << 30,
	}
	for in, want := range tests {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "-1", "lots", "9999999999G"} {
		_, err := parseSize(bad)
		assert.Error(t, err, bad)
	}
}
