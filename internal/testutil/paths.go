package testutil

import (
	"path/filepath"
	"testing"
)

// SwapPath returns a path for a swap file inside a per-test temp directory.
func SwapPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "pagefile.swp")
}

// Pattern returns n bytes of a repeating pattern seeded by seed, so two
// pages written with different seeds never compare equal.
func Pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed ^ byte(i*31+7)
	}
	return b
}
