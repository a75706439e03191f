package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/pagekit/pkg/pager"
	"github.com/joshuapare/pagekit/pkg/types"
	"github.com/joshuapare/pagekit/vm/memsim"
	"github.com/joshuapare/pagekit/vm/stats"
)

var (
	simConfig   string
	simSwap     string
	simFrames   int
	simPages    int
	simRounds   int
	simShared   int
	simPolicy   string
	simBatch    int
	simSeed     uint64
	simSwapSize string
)

func init() {
	cmd := newSimulateCmd()
	f := cmd.Flags()
	f.StringVar(&simConfig, "config", "", "YAML pager options to start from")
	f.StringVar(&simSwap, "swap", "", "Swap file path (default: the config value)")
	f.StringVar(&simSwapSize, "swap-size", "", "Swap slot area size (default: the config value)")
	f.IntVar(&simFrames, "frames", 64, "Physical frames in the simulated machine")
	f.IntVar(&simPages, "pages", 256, "Distinct user pages the workload touches")
	f.IntVar(&simRounds, "rounds", 3, "Passes over the working set")
	f.IntVar(&simShared, "shared", 8, "Pages mapped copy-on-write into a second region")
	f.StringVar(&simPolicy, "policy", "", "Eviction policy (ascending, lru)")
	f.IntVar(&simBatch, "batch", 0, "Pages evicted per pressure signal")
	f.Uint64Var(&simSeed, "seed", 1, "Workload random seed")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive faults and evictions against a simulated machine",
		Long: `The simulate command boots the paging subsystem on a simulated machine
with a fixed number of physical frames and runs a random read/write workload
over more pages than fit in memory. Whenever a fault cannot get a frame, it
signals memory pressure and retries. Every page's contents are checked on
each access, and slot ownership is verified at the end.

Example:
  swapctl simulate --swap /tmp/sim.swp --frames 32 --pages 200
  swapctl simulate --config pager.yaml --policy lru --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context())
		},
	}
	return cmd
}

type simResult struct {
	Policy     string      `json:"policy"`
	Frames     int         `json:"frames"`
	Pages      int         `json:"pages"`
	Accesses   int         `json:"accesses"`
	Pressure   int         `json:"pressureSignals"`
	SlotsInUse uint32      `json:"slotsInUse"`
	SlotsTotal uint32      `json:"slotsTotal"`
	Stats      stats.Stats `json:"stats"`
}

func simOptions() (pager.Options, error) {
	opts := pager.DefaultOptions()
	if simConfig != "" {
		var err error
		if opts, err = pager.LoadOptions(simConfig); err != nil {
			return opts, err
		}
	} else {
		// Without a config, cover just the pages and their copy-on-write twins.
		opts.UserEnd = opts.UserStart + types.VAddr(2*simPages)*types.VAddr(opts.PageSize)
		opts.SwapSize = int64(2*simPages) * int64(opts.PageSize)
	}
	if simSwap != "" {
		opts.SwapPath = simSwap
	}
	if simSwapSize != "" {
		size, err := parseSize(simSwapSize)
		if err != nil {
			return opts, err
		}
		opts.SwapSize = size
	}
	if simPolicy != "" {
		opts.Policy = simPolicy
	}
	if simBatch > 0 {
		opts.EvictBatch = simBatch
	}

	need := types.VAddr(2*simPages) * types.VAddr(opts.PageSize)
	if opts.UserEnd-opts.UserStart < need {
		return opts, fmt.Errorf("user range [%s, %s) cannot hold %d pages", opts.UserStart, opts.UserEnd, 2*simPages)
	}
	return opts, nil
}

func runSimulate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if simFrames < 2 || simPages < 1 || simShared < 0 || simShared > simPages {
		return fmt.Errorf("need frames >= 2, pages >= 1 and 0 <= shared <= pages")
	}

	opts, err := simOptions()
	if err != nil {
		return err
	}
	if simSwap == "" && simConfig == "" {
		dir, err := os.MkdirTemp("", "swapctl-sim-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		opts.SwapPath = filepath.Join(dir, pager.DefaultSwapPath)
	}
	m := memsim.New(simFrames, uint64(opts.PageSize))
	opts.Frames, opts.PageTable, opts.Clock = m, m, &memsim.Clock{}

	printVerbose("Swap file: %s\n", opts.SwapPath)
	sub, err := pager.Init(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize pager: %w", err)
	}
	defer sub.Shutdown(ctx)

	w := &workload{
		ctx:      ctx,
		sub:      sub,
		m:        m,
		pageSize: uint64(opts.PageSize),
		base:     opts.UserStart,
		want:     make(map[types.VAddr][]byte),
		rng:      rand.New(rand.NewPCG(simSeed, simSeed^0x5DEECE66D)),
	}
	if err := w.run(); err != nil {
		return err
	}
	if err := sub.Verify(); err != nil {
		return fmt.Errorf("slot ownership check failed: %w", err)
	}

	inUse, total := sub.Usage()
	res := simResult{
		Policy:     sub.Policy(),
		Frames:     simFrames,
		Pages:      simPages,
		Accesses:   w.accesses,
		Pressure:   w.pressure,
		SlotsInUse: inUse,
		SlotsTotal: total,
		Stats:      sub.Stats(),
	}
	if jsonOut {
		return printJSON(res)
	}

	printInfo("Simulated %d accesses over %d pages with %d frames (policy %s)\n",
		res.Accesses, res.Pages, res.Frames, res.Policy)
	printInfo("Memory pressure signals: %d\n", res.Pressure)
	printInfo("Swap slots in use: %d of %d\n\n", res.SlotsInUse, res.SlotsTotal)
	if !quiet {
		return sub.DumpStats(os.Stdout)
	}
	return nil
}

// workload touches pages, checks their contents and keeps the expected
// bytes of every page it has written.
type workload struct {
	ctx      context.Context
	sub      *pager.Subsystem
	m        *memsim.Machine
	pageSize uint64
	base     types.VAddr
	want     map[types.VAddr][]byte
	rng      *rand.Rand

	accesses int
	pressure int
}

func (w *workload) page(n int) types.VAddr {
	return w.base + types.VAddr(uint64(n)*w.pageSize)
}

func (w *workload) run() error {
	// Populate the working set; each page gets a distinct pattern.
	for i := 0; i < simPages; i++ {
		if err := w.access(w.page(i), true); err != nil {
			return err
		}
		content := make([]byte, w.pageSize)
		for j := range content {
			content[j] = byte(i) ^ byte(j*31+7)
		}
		w.m.Store(w.page(i), content)
		w.want[w.page(i)] = content
	}

	// Fork-style sharing of the first pages into the second half of the range.
	for i := 0; i < simShared; i++ {
		src, dst := w.page(i), w.page(simPages+i)
		if err := w.access(src, false); err != nil {
			return err
		}
		if err := w.m.ShareMapping(src, dst); err != nil {
			return err
		}
		w.want[dst] = w.want[src]
	}
	// Break half of the sharing right away.
	for i := 0; i < simShared; i += 2 {
		if err := w.access(w.page(simPages+i), true); err != nil {
			return err
		}
		if err := w.check(w.page(simPages + i)); err != nil {
			return err
		}
	}

	for round := 0; round < simRounds; round++ {
		for _, i := range w.rng.Perm(simPages + simShared) {
			v := w.page(i) + types.VAddr(w.rng.Uint64N(w.pageSize))
			write := w.rng.IntN(4) == 0
			if err := w.access(v, write); err != nil {
				return err
			}
			if err := w.check(v.PageDown(w.pageSize)); err != nil {
				return err
			}
		}
		printVerbose("round %d: %d accesses, %d pressure signals\n", round+1, w.accesses, w.pressure)
	}
	return nil
}

// access faults until the MMU would allow the access, signalling memory
// pressure when the fault handler runs out of frames.
func (w *workload) access(v types.VAddr, write bool) error {
	w.accesses++
	for {
		code, ok := w.m.Probe(v, write, true)
		if ok {
			return nil
		}
		err := w.sub.HandlePageFault(w.ctx, v, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, types.ErrOutOfMemory) {
			return fmt.Errorf("access %s (write=%t): %w", v, write, err)
		}
		w.pressure++
		if w.sub.HandleMemoryPressure(w.ctx) == 0 {
			return fmt.Errorf("access %s: no page could be evicted: %w", v, err)
		}
	}
}

func (w *workload) check(page types.VAddr) error {
	got, ok := w.m.Load(page)
	if !ok {
		return fmt.Errorf("page %s not mapped after access", page)
	}
	if !bytes.Equal(got, w.want[page]) {
		return fmt.Errorf("page %s lost its contents", page)
	}
	return nil
}
