/*
Package pager is the public entry point of the demand-paging subsystem.

A Subsystem owns the swap file, the slot allocator, the swap table, the fault
dispatcher and the eviction scanner. The platform supplies physical frames
and the page table through Options; vm/memsim provides both for tests and
simulation.

# Lifecycle

	sub, err := pager.Init(ctx, opts)
	if err != nil {
	    return err
	}
	defer sub.Shutdown(ctx)

Every operation on a nil or shut-down Subsystem returns ErrNotInitialized
(or zero values where no error is returned).

# Faults

The trap handler forwards the faulting address and the hardware error code:

	if err := sub.HandlePageFault(ctx, addr, code); err != nil {
	    // fatal to the faulting context
	}

A nil return means the faulting instruction can be restarted. Errors carry a
types.ErrKind; use errors.Is with the types sentinels to branch on them.

# Memory pressure

	n := sub.HandleMemoryPressure(ctx)

evicts up to Options.EvictBatch resident pages to swap and returns how many
actually moved.

# Configuration

DefaultOptions returns production defaults. LoadOptions overlays a YAML file:

	swap_path: /var/swap/pagefile.swp
	swap_size: 268435456
	page_size: 4096
	evict_batch: 16
	policy: lru
*/
package pager
