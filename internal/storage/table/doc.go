// Package table implements the ordered, duplicate-aware key-value tables
// that back the obastore master table and attribute indexes.
//
// # Overview
//
// A Table maps keys to value containers. A table created without
// duplicates holds exactly one value per key (a Singleton). A table created
// with duplicates keeps the values of each key in an OrderedSet sorted by
// the value comparator:
//
//	key       container
//	-------   -------------------------
//	"alice"   Singleton(1)
//	"paris"   OrderedSet(3, 7, 12, 40)
//
// The table keeps a running count of (key, value) pairs. The count is
// updated under the table mutex together with every container change, so
// Count always equals the sum of container sizes.
//
// # Backing Stores
//
// The table owns a Backing: MemoryBacking keeps everything in a B+ tree;
// FileBacking keeps the same tree and makes every change durable through
// a journal. Failures reported by a backing are wrapped in a
// *storage.StoreError.
//
// # Cursors
//
// Cursor walks (key, value) tuples in (key, value) order in both directions.
// Tables without duplicates get a simple cursor with one tuple per key; tables
// with duplicates get a cursor that composes an outer key iterator with an
// inner ValueCursor over the current key's container.
//
// Cursors are weakly consistent. The current tuple never changes under a
// cursor, but keys inserted or removed ahead of the position while the cursor
// is open may or may not be observed. Closing the table invalidates every
// cursor opened on it.
package table
