// Package index implements attribute indexes for the obastore entry store.
//
// # Overview
//
// An Index keeps two tables in step:
//
//	forward   normalized value -> entry id   (duplicates)
//	reverse   entry id -> normalized value   (duplicates unless single-valued)
//
// Every (value, id) pair in forward has its (id, value) twin in reverse and
// the other way round. Add and Drop update both tables before returning; a
// failure half way is undone so the pair of tables never disagrees.
//
// Values pass through the index Normalizer before they are stored or used
// as a lookup key, so the index never holds un-normalized values.
//
// # Candidate Sets
//
// For uint64 entry ids the Candidates helpers turn forward lookups into
// roaring bitmaps, which the search layer intersects and unions:
//
//	ids, err := index.Equal(cn, "Alice")
//	ids, err := index.GreaterOrEqual(createTimestamp, "20240101000000Z")
//
// # Substring Indexing
//
// SubstringIndex maps the n-grams of every value to entry ids:
//
//	// "alice" is tokenized to: ["ali", "lic", "ice"]
//	// (cn=*lic*) is answered from the entries holding "lic"
//
// Results are candidates: the caller confirms each one with MatchesPattern.
package index
