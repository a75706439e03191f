package main

import (
	"bytes"
	"os"
	"testing"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done
	return buf.String(), fnErr
}

// resetFlags restores every command flag to its default.
func resetFlags() {
	verbose, quiet, jsonOut, logLevel = false, false, false, ""
	createSize, createPageSize = "1G", 4096
	inspectSlot, inspectBytes = -1, 256
	simConfig, simSwap, simSwapSize, simPolicy = "", "", "", ""
	simFrames, simPages, simRounds, simShared, simBatch = 64, 256, 3, 8, 0
	simSeed = 1
}
