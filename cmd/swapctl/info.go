package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/internal/mmfile"
	"github.com/joshuapare/pagekit/vm/verify"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <swapfile>",
		Short: "Validate a swap header and report its fields",
		Long: `The info command maps a swap file read-only, decodes its header and
checks that the file length matches the declared slot count.

Example:
  swapctl info pagefile.swp
  swapctl info pagefile.swp --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args)
		},
	}
	return cmd
}

type headerInfo struct {
	Magic      string `json:"magic"`
	Version    uint32 `json:"version"`
	PageSize   uint32 `json:"pageSize"`
	TotalPages uint32 `json:"totalPages"`
	UsedPages  uint32 `json:"usedPages"`
	FreeHead   string `json:"freeHead"`
}

func headerJSON(h format.Header) headerInfo {
	head := fmt.Sprintf("%d", h.FreeHead)
	if h.FreeHead == format.NoSlot {
		head = "none"
	}
	return headerInfo{
		Magic:      fmt.Sprintf("0x%08X", h.Magic),
		Version:    h.Version,
		PageSize:   h.PageSize,
		TotalPages: h.TotalPages,
		UsedPages:  h.UsedPages,
		FreeHead:   head,
	}
}

func runInfo(args []string) error {
	path := args[0]

	printVerbose("Mapping swap file: %s\n", path)
	m, err := mmfile.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open swap file: %w", err)
	}
	defer m.Close()

	hdr, err := format.ParseHeader(m.Bytes())
	if err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}
	verr := verify.Header(m.Bytes())

	if jsonOut {
		result := map[string]any{
			"file":     path,
			"fileSize": m.Len(),
			"header":   headerJSON(hdr),
			"valid":    verr == nil,
		}
		if verr != nil {
			result["error"] = verr.Error()
		}
		return printJSON(result)
	}

	info := headerJSON(hdr)
	printInfo("\nSwap File Information:\n")
	printInfo("  File: %s\n", path)
	printInfo("  Size: %s\n", formatSize(m.Len()))
	printInfo("  Magic: %s\n", info.Magic)
	printInfo("  Version: %d\n", info.Version)
	printInfo("  Page size: %d\n", info.PageSize)
	printInfo("  Slots: %d\n", info.TotalPages)
	printInfo("  Used (at last close): %d\n", info.UsedPages)
	printInfo("  Free-list head: %s\n", info.FreeHead)

	printInfo("\nValidation:\n")
	if verr != nil {
		printInfo("  ✗ %v\n", verr)
		return verr
	}
	printInfo("  ✓ Header valid\n")
	printInfo("  ✓ File length matches slot count\n")
	return nil
}
