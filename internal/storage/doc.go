// Package storage is the root of the obastore storage layer.
//
// # Overview
//
// An LDAP partition is stored as a set of ordered tables:
//
//   - id2entry, the master table mapping entry IDs to entries
//   - one forward and one reverse table per indexed attribute
//   - a presence index recording which attributes each entry carries
//   - an n-gram table per substring-indexed attribute
//
// The subpackages build on each other:
//
//	btree      in-memory B+ tree with weakly consistent iterators
//	journal    append-only change log with zstd-compressed snapshots
//	table      ordered table with optional duplicate keys and cursors
//	index      forward/reverse index pair over two tables
//	partition  entries, identity and search over the tables above
//
// # Errors
//
// This package holds the errors shared by every layer. Contract errors
// (ErrUnsupported, ErrInvalidPosition, ErrCursorClosed, ErrTableClosed)
// report caller bugs. Failures of the backing store are returned as
// *StoreError and can be tested with errors.As or IsStoreError:
//
//	if _, err := t.Put(k, v); err != nil {
//	    var se *storage.StoreError
//	    if errors.As(err, &se) {
//	        log.Error("store failure", "op", se.Op, "key", se.Key)
//	    }
//	}
package storage
