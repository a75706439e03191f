package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/internal/format"
	"github.com/joshuapare/pagekit/vm/store"
	"github.com/joshuapare/pagekit/vm/vfs"
)

var (
	createSize     string
	createPageSize uint32
)

func init() {
	cmd := newCreateCmd()
	cmd.Flags().StringVar(&createSize, "size", "1G", "Slot area size (bytes, or with K/M/G suffix)")
	cmd.Flags().Uint32Var(&createPageSize, "page-size", format.DefaultPageSize, "Page and slot size in bytes")
	rootCmd.AddCommand(cmd)
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <swapfile>",
		Short: "Create a swap file, or adopt an existing valid one",
		Long: `The create command opens the swap file the way the paging subsystem
does at boot. A missing or invalid file gets a fresh header declaring
size/page-size slots and is extended to its full length. A valid file with
the same page size is adopted as is.

Example:
  swapctl create pagefile.swp
  swapctl create pagefile.swp --size 256M --page-size 4096`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
	return cmd
}

func runCreate(args []string) error {
	path := args[0]
	size, err := parseSize(createSize)
	if err != nil {
		return err
	}

	printVerbose("Opening swap file: %s\n", path)
	st, err := store.Open(vfs.OS{}, path, store.Options{PageSize: createPageSize, Size: size})
	if err != nil {
		return fmt.Errorf("failed to create swap file: %w", err)
	}
	hdr := st.Header()
	reopened := st.Reopened()
	if err := st.Close(); err != nil {
		return fmt.Errorf("failed to close swap file: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]any{
			"file":     path,
			"adopted":  reopened,
			"header":   headerJSON(hdr),
			"fileSize": hdr.FileSize(),
		})
	}

	action := "Created"
	if reopened {
		action = "Adopted existing"
	}
	printInfo("%s swap file %s\n", action, path)
	printInfo("  Slots: %d x %d bytes\n", hdr.TotalPages, hdr.PageSize)
	printInfo("  Size: %s\n", formatSize(hdr.FileSize()))
	return nil
}
