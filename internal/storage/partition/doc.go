// Package partition stores directory entries and keeps their attribute
// indexes in step.
//
// A partition owns one master table mapping entry ids to entries, a
// single-valued entryUUID index, a presence index mapping attribute names to
// the ids that carry them, and the equality and substring indexes listed in
// its configuration. Every mutation updates the master table and all indexes
// under one partition lock; a failed update is unwound before the error is
// returned.
//
// Search methods return candidate id sets as roaring bitmaps so a filter
// evaluator can combine them with And, Or and AndNot.
//
//	p, err := partition.Open(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	e, err := p.Add(partition.Entry{
//	    DN:         "uid=alice,ou=people,dc=example,dc=com",
//	    Attributes: map[string][]string{"uid": {"alice"}, "cn": {"Alice Smith"}},
//	})
//
//	ids, err := p.Substring("cn", "*smith")
package partition
