// Package backup provides LDIF export and import functionality for obastore.
//
// # Overview
//
// Export walks a partition in id order and writes each entry as an LDIF
// record (RFC 2849). The entryUUID is written as an ordinary attribute so an
// import keeps entry identity while ids are reassigned by the target
// partition.
//
// Values that are not printable ASCII, or that start with a space, colon or
// less-than sign, are base64 encoded with the "attr:: value" form.
//
// # Compression
//
// With Options.Compress the LDIF stream is wrapped in a zstd frame. Import
// sniffs the zstd magic number, so compressed and plain files are read the
// same way:
//
//	f, _ := os.Create("/backup/people.ldif.zst")
//	stats, err := backup.Export(f, p, backup.Options{Compress: true})
//
//	f, _ = os.Open("/backup/people.ldif.zst")
//	stats, err = backup.Import(f, restored)
package backup
