package filter

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Source answers single-attribute assertions with sets of entry IDs.
// It is implemented by the storage partition.
type Source interface {
	Equal(attr, value string) (*roaring64.Bitmap, error)
	GreaterOrEqual(attr, value string) (*roaring64.Bitmap, error)
	LessOrEqual(attr, value string) (*roaring64.Bitmap, error)
	Substring(attr, pattern string) (*roaring64.Bitmap, error)
	Present(attr string) (*roaring64.Bitmap, error)
	All() (*roaring64.Bitmap, error)
}

// Candidates returns the IDs of the entries matching f.
// AND and OR combine their children by intersection and union. NOT is the
// complement against every stored entry. Approximate matches are answered
// as equality.
func Candidates(src Source, f *Filter) (*roaring64.Bitmap, error) {
	if f == nil {
		return nil, ErrEmptyFilter
	}

	var ids *roaring64.Bitmap
	var err error

	switch f.Type {
	case FilterAnd:
		return combine(src, f.Children, true)
	case FilterOr:
		return combine(src, f.Children, false)
	case FilterNot:
		return complement(src, f.Child)
	case FilterEquality, FilterApproxMatch:
		ids, err = src.Equal(f.Attribute, f.Value)
	case FilterGreaterOrEqual:
		ids, err = src.GreaterOrEqual(f.Attribute, f.Value)
	case FilterLessOrEqual:
		ids, err = src.LessOrEqual(f.Attribute, f.Value)
	case FilterSubstring:
		ids, err = src.Substring(f.Attribute, f.Value)
	case FilterPresent:
		ids, err = src.Present(f.Attribute)
	default:
		return nil, fmt.Errorf("%w: unsupported filter type %s", ErrInvalidFilter, f.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", f, err)
	}
	return ids, nil
}

// combine intersects or unites the candidates of children. An AND with no
// children matches everything and an OR with none matches nothing.
func combine(src Source, children []*Filter, and bool) (*roaring64.Bitmap, error) {
	if len(children) == 0 {
		if and {
			return src.All()
		}
		return roaring64.New(), nil
	}

	var result *roaring64.Bitmap
	for _, child := range children {
		ids, err := Candidates(src, child)
		if err != nil {
			return nil, err
		}
		switch {
		case result == nil:
			result = ids
		case and:
			result.And(ids)
		default:
			result.Or(ids)
		}
		if and && result.IsEmpty() {
			break
		}
	}
	return result, nil
}

func complement(src Source, child *Filter) (*roaring64.Bitmap, error) {
	if child == nil {
		return nil, ErrInvalidFilter
	}
	excluded, err := Candidates(src, child)
	if err != nil {
		return nil, err
	}
	all, err := src.All()
	if err != nil {
		return nil, err
	}
	all.AndNot(excluded)
	return all, nil
}
