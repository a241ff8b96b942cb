// Package journal persists the contents of a table as an append-only record
// log plus a periodic snapshot.
//
// # File Layout
//
// A journal named "cn" in directory dir owns two files:
//
//	dir/cn.log   append-only log of put, delete and value set changes
//	dir/cn.snap  snapshot of the full table at the last compaction
//
// Every record is framed as:
//
//	+--------+--------+-----------------+
//	| Length | CRC32  | CBOR payload    |
//	| 4 bytes| 4 bytes| Length bytes    |
//	+--------+--------+-----------------+
//
// The snapshot starts with an 8 byte header (magic, version, flags) followed
// by a stream of framed records, optionally zstd compressed.
//
// # Recovery
//
// On Open the log is scanned from the start. The first frame that is short or
// fails its checksum ends the valid portion of the log, and the file is
// truncated there: a torn write at the tail is discarded, never replayed.
// A damaged snapshot is reported as ErrCorruptRecord since it was written and
// synced before the log was reset.
package journal
