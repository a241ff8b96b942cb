package table

import (
	"github.com/fxamacker/cbor/v2"
)

// Codec converts keys or values to bytes for a persistent backing.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// CBORCodec encodes values as deterministic CBOR.
type CBORCodec[T any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec returns a CBOR codec for T.
func NewCBORCodec[T any]() *CBORCodec[T] {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return &CBORCodec[T]{enc: enc, dec: dec}
}

// Encode marshals v.
func (c *CBORCodec[T]) Encode(v T) ([]byte, error) {
	return c.enc.Marshal(v)
}

// Decode unmarshals data.
func (c *CBORCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := c.dec.Unmarshal(data, &v)
	return v, err
}
