// Package filter parses LDAP search filters and resolves them to entry IDs
// through an indexed source.
//
// # Parsing
//
// Parse accepts RFC 4515 filter strings:
//
//	f, err := filter.Parse("(&(objectClass=person)(|(uid=alice)(cn=*smith*)))")
//
// Values may contain \XX hex escapes, so (cn=a\28b\29) matches the value
// "a(b)". Substring filters keep their wildcard pattern in Value.
//
// # Resolving
//
// Candidates walks the filter tree and asks a Source for each assertion:
//
//	ids, err := filter.Candidates(partition, f)
//
// AND intersects, OR unites, and NOT subtracts from the set of all entries.
// Approximate matches are resolved as equality. The result is exact as long
// as the source answers each assertion exactly.
package filter
