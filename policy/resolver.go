// Package policy implements the Policy Resolver (PR): an in-memory,
// versioned map from fully-qualified column identifiers to policy names
// plus per-policy attributes (spec.md §4.2).
package policy

import (
	"sync"
	"sync/atomic"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/store"
)

// snapshot is the immutable value swapped atomically by Refresh, modeled on
// the teacher's cmn.globalConfigOwner (atomic.Pointer + mutex), generalized
// from cluster config to policy mappings.
type snapshot struct {
	version    uint64
	loaded     bool
	byKey      map[string]string // normalized column key -> policyName
	attributes map[string]store.PolicyAttributes
}

// Persister is the subset of store.Store the resolver needs to persist a
// refreshed snapshot; satisfied by *store.Store.
type Persister interface {
	SavePolicy(*store.PolicySnapshot) error
	LoadPolicy() (*store.PolicySnapshot, error)
}

// Resolver is the Policy Resolver. It holds a weak back-reference to the
// Persistent Store for writes (spec.md §3 Ownership) and is otherwise
// stateless with respect to queries.
type Resolver struct {
	ptr  atomic.Pointer[snapshot]
	mtx  sync.Mutex
	ps   Persister
}

// New returns an empty Resolver backed by ps. Call ReloadFromStorage or
// Refresh before first use to prime it.
func New(ps Persister) *Resolver {
	r := &Resolver{ps: ps}
	r.ptr.Store(&snapshot{byKey: map[string]string{}, attributes: map[string]store.PolicyAttributes{}})
	return r
}

// keyVariants returns the lookup keys in most-specific-to-most-general
// order, per spec.md §4.2 rule.
func keyVariants(datasourceID, schema, table, column string) []string {
	table = cmn.NormalizeIdentifier(table)
	column = cmn.NormalizeIdentifier(column)
	var variants []string
	if datasourceID != "" {
		variants = append(variants, cmn.NormalizeIdentifier(datasourceID)+":"+cmn.NormalizeIdentifier(schema)+"."+table+"."+column)
	}
	if schema != "" {
		variants = append(variants, cmn.NormalizeIdentifier(schema)+"."+table+"."+column)
	}
	variants = append(variants, table+"."+column)
	return variants
}

// Resolve returns the policy name for the most specific matching key, or
// ("", false) if none of the fallback keys are mapped.
func (r *Resolver) Resolve(datasourceID, schema, table, column string) (string, bool) {
	snap := r.ptr.Load()
	for _, key := range keyVariants(datasourceID, schema, table, column) {
		if name, ok := snap.byKey[key]; ok {
			return name, true
		}
	}
	return "", false
}

// GetAttributes returns the PolicyAttributes for policyName, or the spec.md
// §3 default (useIv=true, usePlain=false) if the policy is unknown.
func (r *Resolver) GetAttributes(policyName string) store.PolicyAttributes {
	snap := r.ptr.Load()
	if attrs, ok := snap.attributes[policyName]; ok {
		return attrs
	}
	return store.DefaultPolicyAttributes()
}

// CurrentVersion returns the version of the currently-installed snapshot,
// or (0, false) if nothing has ever been loaded.
func (r *Resolver) CurrentVersion() (uint64, bool) {
	snap := r.ptr.Load()
	return snap.version, snap.loaded
}

// Refresh admits mappings into a new snapshot and atomically swaps it in,
// then synchronously persists the equivalent PolicySnapshot to PS. PR only
// admits mappings with enabled=true and a non-empty policyName; disabled
// entries are dropped silently (spec.md §3).
//
// Refresh is idempotent: calling it twice with the same inputs leaves the
// same observable state as calling it once (spec.md §8).
func (r *Resolver) Refresh(mappings []store.Mapping, attrs map[string]store.PolicyAttributes, version uint64) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	byKey := make(map[string]string, len(mappings))
	admitted := make([]store.Mapping, 0, len(mappings))
	for _, m := range mappings {
		if !m.Enabled || m.PolicyName == "" {
			continue
		}
		key := cmn.ColumnKey(m.DatasourceID, m.SchemaName, m.TableName, m.ColumnName)
		byKey[key] = m.PolicyName
		admitted = append(admitted, m)
	}
	if attrs == nil {
		attrs = map[string]store.PolicyAttributes{}
	}

	next := &snapshot{version: version, loaded: true, byKey: byKey, attributes: attrs}
	r.ptr.Store(next) // atomic: a reader sees the whole old or whole new snapshot, never torn

	if r.ps == nil {
		return nil
	}
	return r.ps.SavePolicy(&store.PolicySnapshot{Version: version, Mappings: admitted, Attributes: attrs})
}

// ReloadFromStorage primes the resolver from whatever PS currently holds,
// e.g. at process start before the Sync Orchestrator's first Hub round-trip.
func (r *Resolver) ReloadFromStorage() error {
	if r.ps == nil {
		return nil
	}
	snap, err := r.ps.LoadPolicy()
	if err != nil {
		return cmn.Wrap(err, "policy: reload from storage")
	}
	if snap == nil {
		return nil
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	byKey := make(map[string]string, len(snap.Mappings))
	for _, m := range snap.Mappings {
		if !m.Enabled || m.PolicyName == "" {
			continue
		}
		byKey[cmn.ColumnKey(m.DatasourceID, m.SchemaName, m.TableName, m.ColumnName)] = m.PolicyName
	}
	attrs := snap.Attributes
	if attrs == nil {
		attrs = map[string]store.PolicyAttributes{}
	}
	r.ptr.Store(&snapshot{version: snap.Version, loaded: true, byKey: byKey, attributes: attrs})
	return nil
}
