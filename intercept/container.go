package intercept

import "reflect"

// OptionValue is a host-supplied option/maybe wrapper (spec.md §4.5.4 step 2/7).
type OptionValue interface {
	Get() (interface{}, bool)
}

// LazySequence is a host-supplied lazy iterable (spec.md §4.5.4 step 2).
type LazySequence interface {
	Materialize() []interface{}
}

// PagedContainer is a host-supplied paged result (spec.md §4.5.4 step 2).
type PagedContainer interface {
	Content() []interface{}
	Paging() interface{}
	Total() int
}

type shapeKind int

const (
	shapeNil shapeKind = iota
	shapeSingle
	shapeOption
	shapeCollection
	shapeLazy
	shapePaged
)

type containerShape struct {
	kind     shapeKind
	paging   interface{}
	total    int
	original interface{} // shapeCollection only: the caller's own slice/array value
}

// normalize implements spec.md §4.5.4 step 2: reduce result to a uniform
// []interface{} plus enough shape information to rewrap it afterward.
func normalize(result interface{}) ([]interface{}, containerShape) {
	if result == nil {
		return nil, containerShape{kind: shapeNil}
	}
	switch v := result.(type) {
	case OptionValue:
		if val, ok := v.Get(); ok {
			return []interface{}{val}, containerShape{kind: shapeOption}
		}
		return nil, containerShape{kind: shapeOption}
	case LazySequence:
		return v.Materialize(), containerShape{kind: shapeLazy}
	case PagedContainer:
		return v.Content(), containerShape{kind: shapePaged, paging: v.Paging(), total: v.Total()}
	}

	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, containerShape{kind: shapeCollection, original: result}
	}
	return []interface{}{result}, containerShape{kind: shapeSingle}
}

// rewrap implements spec.md §4.5.4 step 7.
func rewrap(shape containerShape, items []interface{}, paged PagedContainerFactory, lazy LazySequenceFactory) interface{} {
	switch shape.kind {
	case shapeNil:
		return nil
	case shapeOption, shapeSingle:
		if len(items) == 0 {
			return nil
		}
		return items[0]
	case shapePaged:
		if paged != nil {
			return paged.New(items, shape.paging, shape.total)
		}
		return items
	case shapeLazy:
		if lazy != nil {
			return lazy.New(items)
		}
		return items
	case shapeCollection:
		// Elements are pointers shared with the original slice, so the
		// in-place field mutations decryptItems made are already visible
		// through shape.original; re-wrap the caller's own value instead of
		// returning the flattened []interface{} accumulator.
		return shape.original
	default:
		return items
	}
}
