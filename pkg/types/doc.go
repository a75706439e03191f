// Package types defines the shared vocabulary of the demand-paging subsystem:
// virtual addresses, physical frames, page-table flags, hardware fault codes,
// and the typed error categories every component reports.
//
// The collaborator interfaces that the subsystem consumes (page tables, the
// physical frame allocator, the clock) live here as well so that the
// simulator in vm/memsim and a real kernel binding can both satisfy them
// without importing any paging internals.
//
// This package has no dependencies beyond the standard library.
package types
