package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/logging"
)

// File name suffixes.
const (
	LogSuffix      = ".log"
	SnapshotSuffix = ".snap"

	writeBufferSize = 64 * 1024
)

// Journal errors.
var (
	// ErrJournalClosed is returned when operating on a closed journal.
	ErrJournalClosed = errors.New("journal: closed")

	// ErrInvalidName is returned when a journal name is empty or contains a path separator.
	ErrInvalidName = errors.New("journal: invalid name")
)

// Options configures a journal.
type Options struct {
	// SyncOnWrite fsyncs the log after every Append.
	SyncOnWrite bool

	// Compress writes snapshots as a zstd stream.
	Compress bool

	// CompressionLevel is the zstd level used for snapshots (1-22, 0 for default).
	CompressionLevel int

	// CompactThreshold is the number of log records after which
	// NeedsCompaction reports true. Zero disables the hint.
	CompactThreshold int

	// Logger receives recovery and compaction events.
	Logger logging.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		SyncOnWrite:      false,
		Compress:         true,
		CompressionLevel: 3,
		CompactThreshold: 10000,
	}
}

// Stats describes the on-disk state of a journal.
type Stats struct {
	LogRecords    int
	LogBytes      int64
	SnapshotBytes int64
	Compressed    bool
}

// Journal is an append-only record log with snapshot compaction.
// It is safe for concurrent use.
type Journal struct {
	mu      sync.Mutex
	dir     string
	name    string
	opts    Options
	logger  logging.Logger
	file    *os.File
	w       *bufio.Writer
	size    int64
	records int
	closed  bool
}

// Open opens or creates the journal name in dir.
// A torn or corrupt tail of the log is truncated away.
func Open(dir, name string, opts Options) (*Journal, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filepath.Join(dir, name+LogSuffix), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		dir:    dir,
		name:   name,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).WithFields("journal", name),
		file:   file,
	}

	if err := j.recover(); err != nil {
		file.Close()
		return nil, err
	}

	j.w = bufio.NewWriterSize(file, writeBufferSize)
	return j, nil
}

// recover scans the log, truncates it after the last valid record and
// positions the file for appending.
func (j *Journal) recover() error {
	info, err := j.file.Stat()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(io.NewSectionReader(j.file, 0, info.Size()))
	var offset int64
	records := 0

	for {
		_, n, err := readFrame(reader)
		if err == nil {
			offset += int64(n)
			records++
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrCorruptRecord) {
			j.logger.Warn("truncating damaged log tail",
				"offset", offset,
				"discarded_bytes", info.Size()-offset,
				"error", err,
			)
			break
		}
		return err
	}

	if offset != info.Size() {
		if err := j.file.Truncate(offset); err != nil {
			return err
		}
	}
	if _, err := j.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	j.size = offset
	j.records = records
	return nil
}

// Name returns the journal name.
func (j *Journal) Name() string {
	return j.name
}

// Replay calls fn for every record of the snapshot and then of the log, in
// the order they were written. Checkpoint records are not passed to fn.
func (j *Journal) Replay(fn func(Record) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}
	if err := j.w.Flush(); err != nil {
		return err
	}

	if err := j.replaySnapshot(fn); err != nil {
		return err
	}

	reader := bufio.NewReader(io.NewSectionReader(j.file, 0, j.size))
	for {
		rec, _, err := readFrame(reader)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Op == OpCheckpoint {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Append writes a record to the log.
func (j *Journal) Append(rec Record) error {
	frame, err := rec.MarshalFrame()
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	if _, err := j.w.Write(frame); err != nil {
		return err
	}
	j.size += int64(len(frame))
	j.records++

	if j.opts.SyncOnWrite {
		return j.syncLocked()
	}
	return nil
}

// Sync flushes buffered records and fsyncs the log.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}
	return j.syncLocked()
}

func (j *Journal) syncLocked() error {
	if err := j.w.Flush(); err != nil {
		return err
	}
	return j.file.Sync()
}

// NeedsCompaction reports whether the log has grown past CompactThreshold.
func (j *Journal) NeedsCompaction() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.opts.CompactThreshold > 0 && j.records >= j.opts.CompactThreshold
}

// Compact replaces the snapshot with the records produced by dump and resets
// the log. dump is called with the journal locked and must not call back
// into the journal.
func (j *Journal) Compact(dump func(emit func(Record) error) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}

	count, err := j.writeSnapshot(dump)
	if err != nil {
		return err
	}

	if err := j.w.Flush(); err != nil {
		return err
	}
	if err := j.file.Truncate(0); err != nil {
		return err
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	j.w.Reset(j.file)

	j.logger.Debug("journal compacted",
		"snapshot_records", count,
		"log_records", j.records,
		"log_bytes", j.size,
	)

	j.size = 0
	j.records = 0
	return nil
}

// Stats returns the current on-disk state of the journal.
func (j *Journal) Stats() (Stats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := Stats{
		LogRecords: j.records,
		LogBytes:   j.size,
	}

	info, err := os.Stat(j.snapshotPath())
	switch {
	case err == nil:
		stats.SnapshotBytes = info.Size()
		compressed, herr := readSnapshotFlags(j.snapshotPath())
		if herr != nil {
			return stats, herr
		}
		stats.Compressed = compressed
	case !errors.Is(err, os.ErrNotExist):
		return stats, err
	}

	return stats, nil
}

// Close flushes and closes the log. Closing twice is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	syncErr := j.syncLocked()
	closeErr := j.file.Close()
	return errors.Join(syncErr, closeErr)
}

// Remove closes the journal and deletes its files.
func (j *Journal) Remove() error {
	closeErr := j.Close()

	var errs []error
	for _, path := range []string{j.logPath(), j.snapshotPath(), j.snapshotPath() + ".tmp"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(append([]error{closeErr}, errs...)...)
}

func (j *Journal) logPath() string {
	return filepath.Join(j.dir, j.name+LogSuffix)
}

func (j *Journal) snapshotPath() string {
	return filepath.Join(j.dir, j.name+SnapshotSuffix)
}
