// Package backup provides LDIF export and import functionality for obastore.
package backup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/KilimcininKorOglu/obastore/internal/storage/partition"
)

// Backup errors.
var (
	ErrNilPartition = errors.New("partition is nil")
	ErrImportFailed = errors.New("import failed")
	ErrExportFailed = errors.New("export failed")
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Options configures an export.
type Options struct {
	// Compress wraps the LDIF stream in zstd.
	Compress bool

	// Level is the zstd level. Zero selects the default.
	Level int
}

// Stats holds statistics about an export or import.
type Stats struct {
	// Entries is the number of entries written or read.
	Entries int

	// TotalBytes is the size of the LDIF text.
	TotalBytes int64

	// CompressedBytes is the size on the wire when compression was used.
	CompressedBytes int64

	// Duration is the time taken.
	Duration time.Duration
}

// CompressionRatio returns the compression ratio (0-1).
// Returns 0 if compression is not enabled or no data was written.
func (s Stats) CompressionRatio() float64 {
	if s.TotalBytes == 0 || s.CompressedBytes == 0 {
		return 0
	}
	return 1.0 - float64(s.CompressedBytes)/float64(s.TotalBytes)
}

// Export writes every entry of p to w as LDIF.
func Export(w io.Writer, p *partition.Partition, opts Options) (Stats, error) {
	if p == nil {
		return Stats{}, ErrNilPartition
	}
	start := time.Now()

	wire := &countingWriter{w: w}
	var enc *zstd.Encoder
	text := &countingWriter{w: wire}
	if opts.Compress {
		level := zstd.SpeedDefault
		if opts.Level > 0 {
			level = zstd.EncoderLevelFromZstd(opts.Level)
		}
		var err error
		enc, err = zstd.NewWriter(wire, zstd.WithEncoderLevel(level))
		if err != nil {
			return Stats{}, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		text.w = enc
	}

	bw := bufio.NewWriter(text)
	var stats Stats
	var writeErr error
	err := p.Scan(func(e partition.Entry) bool {
		if writeErr = WriteEntry(bw, e); writeErr != nil {
			return false
		}
		stats.Entries++
		return true
	})
	if err = errors.Join(err, writeErr, bw.Flush()); err != nil {
		if enc != nil {
			enc.Close()
		}
		return stats, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return stats, fmt.Errorf("%w: %v", ErrExportFailed, err)
		}
		stats.CompressedBytes = wire.n
	}

	stats.TotalBytes = text.n
	stats.Duration = time.Since(start)
	return stats, nil
}

// Import adds every LDIF entry of r to p. A zstd-compressed stream is
// detected and decompressed. Entries keep their entryUUID and receive fresh
// ids. Import stops at the first entry p rejects.
func Import(r io.Reader, p *partition.Partition) (Stats, error) {
	if p == nil {
		return Stats{}, ErrNilPartition
	}
	if r == nil {
		return Stats{}, ErrEmptyReader
	}
	start := time.Now()

	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(magic, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return Stats{}, fmt.Errorf("%w: %v", ErrImportFailed, err)
		}
		defer dec.Close()
		src = dec
	}

	text := &countingReader{r: src}
	var stats Stats
	err := scanLDIF(text, func(e partition.Entry) error {
		if _, err := p.Add(e); err != nil {
			return fmt.Errorf("%w: entry %s: %w", ErrImportFailed, e.DN, err)
		}
		stats.Entries++
		return nil
	})
	stats.TotalBytes = text.n
	stats.Duration = time.Since(start)
	return stats, err
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
