// Package intercept implements the Interception Engine (IE): the
// educative heart of the system (spec.md §4.5). It exposes two entry
// points, OnEncryptCall and OnDecryptCall, each given the intercepted
// call's arguments and a way to continue the call.
package intercept

import "reflect"

// EntityTableMap is the required collaborator interface of spec.md §6:
// for every entity type whose fields may be transformed, the host supplies
// a mapping from the concrete type to its target table (schema optional).
// IE refuses to resolve policy without it.
type EntityTableMap interface {
	TableFor(t reflect.Type) (schema, table string, ok bool)
}

// SessionHooks is the read-path-only collaborator of spec.md §6: two
// optional capabilities, detaching an entity from the current session and
// marking it read-only. Both are called when available; skipping either
// is permitted only when the call context is guaranteed already-detached.
type SessionHooks interface {
	Detach(entity interface{})
	MarkReadOnly(entity interface{})
}

// PagedContainerFactory rebuilds a paged container of the original shape
// from its (content, paging info, total) — spec.md §6.
type PagedContainerFactory interface {
	New(content []interface{}, paging interface{}, total int) interface{}
}

// LazySequenceFactory rebuilds a lazy iterable as an in-memory sequence
// (spec.md §4.5.4 step 7 — documented semantic loss: true streaming is not
// preserved).
type LazySequenceFactory interface {
	New(items []interface{}) interface{}
}
