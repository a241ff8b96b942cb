package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/KilimcininKorOglu/obastore/internal/storage/table"
)

// Equal returns the ids indexed under value.
func Equal[V any](x *Index[V, uint64], value V) (*roaring64.Bitmap, error) {
	c, err := x.ForwardCursorAt(value)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return drain(c, c.Next)
}

// GreaterOrEqual returns the ids indexed under any value >= value.
func GreaterOrEqual[V any](x *Index[V, uint64], value V) (*roaring64.Bitmap, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return nil, err
	}
	c, err := x.ForwardCursor()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.BeforeKey(nv); err != nil {
		return nil, err
	}
	return drain(c, c.Next)
}

// LessOrEqual returns the ids indexed under any value <= value.
func LessOrEqual[V any](x *Index[V, uint64], value V) (*roaring64.Bitmap, error) {
	nv, err := x.Normalize(value)
	if err != nil {
		return nil, err
	}
	c, err := x.ForwardCursor()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.AfterKey(nv); err != nil {
		return nil, err
	}
	return drain(c, c.Previous)
}

// Present returns every id that has at least one indexed value.
func Present[V any](x *Index[V, uint64]) (*roaring64.Bitmap, error) {
	c, err := x.ReverseCursor()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	ids := roaring64.New()
	for {
		ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return ids, nil
		}
		t, err := c.Get()
		if err != nil {
			return nil, err
		}
		ids.Add(t.Key)
	}
}

// drain adds the id of every tuple step reaches to a new bitmap.
func drain[V any](c table.Cursor[V, uint64], step func() (bool, error)) (*roaring64.Bitmap, error) {
	ids := roaring64.New()
	for {
		ok, err := step()
		if err != nil {
			return nil, err
		}
		if !ok {
			return ids, nil
		}
		t, err := c.Get()
		if err != nil {
			return nil, err
		}
		ids.Add(t.Value)
	}
}
