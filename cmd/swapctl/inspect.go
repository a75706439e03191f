package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/mmfile"
	"github.com/joshuapare/pagekit/vm/verify"
)

var (
	inspectSlot  int64
	inspectBytes int
)

func init() {
	cmd := newInspectCmd()
	cmd.Flags().Int64Var(&inspectSlot, "slot", -1, "Slot to dump")
	cmd.Flags().IntVar(&inspectBytes, "bytes", 256, "Number of bytes of the slot to dump (0 = whole slot)")
	rootCmd.AddCommand(cmd)
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <swapfile> --slot N",
		Short: "Hex-dump the contents of one swap slot",
		Long: `The inspect command validates the swap header and hex-dumps the
beginning of one slot. Slot contents are only meaningful while the owning
subsystem is running; a cold start discards them.

Example:
  swapctl inspect pagefile.swp --slot 0
  swapctl inspect pagefile.swp --slot 12 --bytes 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args)
		},
	}
	return cmd
}

func runInspect(args []string) error {
	path := args[0]

	m, err := mmfile.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open swap file: %w", err)
	}
	defer m.Close()

	if err := verify.Header(m.Bytes()); err != nil {
		return fmt.Errorf("refusing to inspect %s: %w", path, err)
	}
	hdr, err := format.ParseHeader(m.Bytes())
	if err != nil {
		return err
	}
	if inspectSlot < 0 || inspectSlot >= int64(hdr.TotalPages) {
		return fmt.Errorf("slot %d out of range [0, %d)", inspectSlot, hdr.TotalPages)
	}

	off, err := hdr.SlotOffset(uint32(inspectSlot))
	if err != nil {
		return err
	}
	n := int64(hdr.PageSize)
	if inspectBytes > 0 && int64(inspectBytes) < n {
		n = int64(inspectBytes)
	}
	data, err := m.Region(off, n)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{
			"file":   path,
			"slot":   inspectSlot,
			"offset": off,
			"length": n,
			"hex":    hex.EncodeToString(data),
		})
	}
	printInfo("Slot %d at offset 0x%X (%d of %d bytes):\n", inspectSlot, off, n, hdr.PageSize)
	printInfo("%s", hex.Dump(data))
	return nil
}
