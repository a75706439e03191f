// Package store implements the swap store: a single backing file laid out
// as a fixed header followed by page-sized slots.
//
//	[Header][Slot 0][Slot 1]...[Slot N-1]
//
// Open either adopts an existing file whose header carries the swap magic
// and version, or writes a fresh header and extends the file to its
// declared length. An adopted file keeps its declared slot count, but its
// free list is rebuilt with every slot free: contents swapped out by a
// previous run are discarded. This cold-start behavior is deliberate for
// now and is logged at warn level whenever it happens.
//
// Seek and transfer on the shared file handle are serialized by the store's
// mutex, one slot at a time.
package store
