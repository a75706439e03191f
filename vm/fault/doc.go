// Package fault decodes page-fault traps and resolves them.
//
// # Decision Order
//
// Handle inspects the hardware error code and the faulting address and takes
// the first matching branch:
//
//  1. supervisor access to a kernel address: Fault (kernel bug)
//  2. RESERVED bit set: Fault (corrupt page tables)
//  3. page not present:
//     a. page owns a swap slot: swap-in
//     b. otherwise: first touch with a zero-filled frame
//  4. write to a present mapping that denies writes: copy-on-write
//  5. anything else: Fault
//
// The dispatcher owns only the decision. Frames come from the
// types.FrameAllocator, mappings go through the types.PageTable, and page
// contents move through a Backing (the swap store).
//
// # Concurrency
//
// Every resolution and every swap-out runs while holding the page's claim in
// the swap table, so faults on one page are serialized with each other and
// with eviction of that page. After taking the claim the dispatcher re-reads
// the page table: a fault that lost the race finds the page already resolved
// and returns without touching anything.
//
// Lock order, outermost first: page claim, slot allocator, table stripe,
// store. Only the page claim is held across collaborator calls.
package fault
