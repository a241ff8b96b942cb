package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Snapshot header layout.
const (
	snapshotMagic      = "OBSJ"
	snapshotVersion    = 1
	snapshotHeaderSize = 8

	flagCompressed = 1 << 0
)

// writeSnapshot writes the records produced by dump to a temporary file,
// terminates them with a checkpoint and renames it over the snapshot.
func (j *Journal) writeSnapshot(dump func(emit func(Record) error) error) (uint64, error) {
	tmpPath := j.snapshotPath() + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	count, err := j.encodeSnapshot(f, dump)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, j.snapshotPath()); err != nil {
		return 0, err
	}
	return count, syncDir(j.dir)
}

func (j *Journal) encodeSnapshot(f *os.File, dump func(emit func(Record) error) error) (uint64, error) {
	header := make([]byte, snapshotHeaderSize)
	copy(header, snapshotMagic)
	header[4] = snapshotVersion
	if j.opts.Compress {
		header[5] |= flagCompressed
	}
	if _, err := f.Write(header); err != nil {
		return 0, err
	}

	var out io.Writer = f
	var enc *zstd.Encoder
	if j.opts.Compress {
		level := zstd.SpeedDefault
		if j.opts.CompressionLevel > 0 {
			level = zstd.EncoderLevelFromZstd(j.opts.CompressionLevel)
		}
		var err error
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(level))
		if err != nil {
			return 0, err
		}
		out = enc
	}

	bw := bufio.NewWriterSize(out, writeBufferSize)
	var count uint64
	write := func(rec Record) error {
		frame, err := rec.MarshalFrame()
		if err != nil {
			return err
		}
		_, err = bw.Write(frame)
		return err
	}

	err := dump(func(rec Record) error {
		if rec.Op != OpPut {
			return fmt.Errorf("%w: snapshot accepts only puts, got %s", ErrInvalidOp, rec.Op)
		}
		if err := write(rec); err != nil {
			return err
		}
		count++
		return nil
	})
	if err == nil {
		err = write(Record{Op: OpCheckpoint, Count: count})
	}
	if err == nil {
		err = bw.Flush()
	}
	if enc != nil {
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
	}
	return count, err
}

// replaySnapshot streams the snapshot, if any, into fn.
func (j *Journal) replaySnapshot(fn func(Record) error) error {
	f, err := os.Open(j.snapshotPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	compressed, err := readSnapshotHeader(f)
	if err != nil {
		return err
	}

	var in io.Reader = f
	if compressed {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer dec.Close()
		in = dec
	}

	reader := bufio.NewReader(in)
	var count uint64
	for {
		rec, _, err := readFrame(reader)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: snapshot missing checkpoint", ErrCorruptRecord)
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: snapshot truncated", ErrCorruptRecord)
		}
		if err != nil {
			return err
		}

		if rec.Op == OpCheckpoint {
			if rec.Count != count {
				return fmt.Errorf("%w: snapshot holds %d records, checkpoint says %d",
					ErrCorruptRecord, count, rec.Count)
			}
			return nil
		}

		count++
		if err := fn(rec); err != nil {
			return err
		}
	}
}

func readSnapshotHeader(r io.Reader) (compressed bool, err error) {
	header := make([]byte, snapshotHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return false, fmt.Errorf("%w: snapshot header: %v", ErrCorruptRecord, err)
	}
	if string(header[:4]) != snapshotMagic {
		return false, fmt.Errorf("%w: bad snapshot magic", ErrCorruptRecord)
	}
	if header[4] != snapshotVersion {
		return false, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorruptRecord, header[4])
	}
	return header[5]&flagCompressed != 0, nil
}

func readSnapshotFlags(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return readSnapshotHeader(f)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
