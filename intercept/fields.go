package intercept

import (
	"reflect"
	"strings"
	"sync"

	"github.com/daone-dadp/dadp-go/cmn"
)

// tagKey is the declarative "encrypt me" struct tag (spec.md §4.5.1).
// Selection is purely structural: `dadp:"encrypt"` marks a string field for
// both the encrypt pass and its mirrored decrypt pass; an optional
// `,column=name` suffix overrides the derived column name.
const tagKey = "dadp"

// fieldDescriptor names one target field of a struct type.
type fieldDescriptor struct {
	Index      int // reflect.Value.Field index; nested structs are out of scope
	ColumnName string
}

var descriptorCache sync.Map // reflect.Type -> []fieldDescriptor

// describe returns the encrypt-eligible fields of t, computed once and
// cached. Any mechanism producing the same set is spec-conformant (§4.5.1);
// this one uses a struct tag rather than a separate registration API.
func describe(t reflect.Type) []fieldDescriptor {
	if cached, ok := descriptorCache.Load(t); ok {
		return cached.([]fieldDescriptor)
	}
	var out []fieldDescriptor
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Type.Kind() != reflect.String {
				continue
			}
			tag, ok := f.Tag.Lookup(tagKey)
			if !ok {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "encrypt" {
				continue
			}
			column := cmn.NormalizeIdentifier(f.Name)
			for _, p := range parts[1:] {
				if strings.HasPrefix(p, "column=") {
					column = strings.TrimPrefix(p, "column=")
				}
			}
			out = append(out, fieldDescriptor{Index: i, ColumnName: column})
		}
	}
	descriptorCache.Store(t, out)
	return out
}

// restrict filters descriptors down to names, when names is non-empty
// (spec.md §4.5.1 "an optional caller-supplied list may further restrict
// the processed subset").
func restrict(all []fieldDescriptor, names []string) []fieldDescriptor {
	if len(names) == 0 {
		return all
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[cmn.NormalizeIdentifier(n)] = true
	}
	var out []fieldDescriptor
	for _, d := range all {
		if want[d.ColumnName] {
			out = append(out, d)
		}
	}
	return out
}

// entityOf dereferences v down to the addressable struct value it wraps,
// or ok=false if v is not a struct/*struct.
func entityOf(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return v, true
}
