package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Frame layout constants.
const (
	// FrameHeaderSize is the size of the length and checksum prefix.
	FrameHeaderSize = 8

	// MaxRecordSize caps a single encoded record.
	MaxRecordSize = 64 * 1024 * 1024
)

// Op identifies the kind of a journal record.
type Op uint8

// Record kinds.
const (
	// OpPut stores Values under Key, replacing whatever was there.
	OpPut Op = iota + 1
	// OpDelete removes Key and all of its values.
	OpDelete
	// OpCheckpoint ends a snapshot and carries the number of records in it.
	OpCheckpoint
	// OpAddValues adds Values to the value set of Key.
	OpAddValues
	// OpRemoveValues removes Values from the value set of Key.
	OpRemoveValues
)

// String returns the string representation of the op.
func (o Op) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpCheckpoint:
		return "checkpoint"
	case OpAddValues:
		return "add-values"
	case OpRemoveValues:
		return "remove-values"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Record is one logical change to a table.
// Key and Values hold the already encoded key and values.
type Record struct {
	Op     Op       `cbor:"1,keyasint"`
	Key    []byte   `cbor:"2,keyasint,omitempty"`
	Values [][]byte `cbor:"3,keyasint,omitempty"`
	Count  uint64   `cbor:"4,keyasint,omitempty"`
}

// Record errors.
var (
	// ErrCorruptRecord is returned when a frame fails its checksum or decode.
	ErrCorruptRecord = errors.New("journal: corrupt record")

	// ErrRecordTooLarge is returned when an encoded record exceeds MaxRecordSize.
	ErrRecordTooLarge = errors.New("journal: record too large")

	// ErrInvalidOp is returned for a record with an unknown op.
	ErrInvalidOp = errors.New("journal: invalid record op")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 24,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Validate checks that the record is well formed for its op.
func (r *Record) Validate() error {
	switch r.Op {
	case OpPut, OpAddValues, OpRemoveValues:
		if len(r.Values) == 0 {
			return fmt.Errorf("%w: %s without values", ErrInvalidOp, r.Op)
		}
	case OpDelete, OpCheckpoint:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidOp, r.Op)
	}
	return nil
}

// MarshalFrame encodes the record and prefixes it with its length and CRC32.
func (r *Record) MarshalFrame() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	payload, err := encMode.Marshal(r)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxRecordSize {
		return nil, ErrRecordTooLarge
	}

	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(payload))
	copy(buf[FrameHeaderSize:], payload)
	return buf, nil
}

// readFrame reads one framed record from r.
// It returns io.EOF at a clean end of stream, io.ErrUnexpectedEOF for a
// partial frame and ErrCorruptRecord for a frame that fails validation.
// n is the number of bytes the frame occupied.
func readFrame(r io.Reader) (rec Record, n int, err error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return rec, 0, err
	}

	size := binary.LittleEndian.Uint32(header[0:4])
	sum := binary.LittleEndian.Uint32(header[4:8])
	if size == 0 || size > MaxRecordSize {
		return rec, 0, fmt.Errorf("%w: bad length %d", ErrCorruptRecord, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return rec, 0, err
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return rec, 0, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}

	if err := decMode.Unmarshal(payload, &rec); err != nil {
		return rec, 0, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := rec.Validate(); err != nil {
		return rec, 0, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	return rec, FrameHeaderSize + int(size), nil
}
