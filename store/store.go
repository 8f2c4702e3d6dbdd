package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/cmn/jsp"
)

const (
	configFile   = "config"
	policyFile   = "policy-mappings"
	endpointFile = "endpoints"
	schemaFile   = "schemas.db"
)

// Store is the Persistent Store. Each of its four documents is guarded by
// its own mutex (spec.md §5 "a single mutex per file; all reads and writes
// go through it"). If the deployment directory cannot be created, Store
// degrades to in-memory-only: loads return empty and saves are no-ops.
// Every such save logs its own warning; the warnings are not reduced to a
// single one.
type Store struct {
	dir      string
	degraded bool

	configMu   sync.Mutex
	policyMu   sync.Mutex
	endpointMu sync.Mutex

	schemas schemaCatalog
}

// Open creates (if needed) dir and returns a ready Store. It never returns
// an error: a directory creation failure degrades to in-memory-only with a
// single WARN, per spec.md §4.1.
func Open(dir string) *Store {
	s := &Store{dir: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		glog.Warningf("dadp: store: cannot create %s, degrading to in-memory-only: %v", dir, err)
		s.degraded = true
		s.schemas = newMemCatalog()
		return s
	}
	ss, err := openSchemaStore(filepath.Join(dir, schemaFile))
	if err != nil {
		glog.Warningf("dadp: store: cannot open schema catalog, degrading to in-memory-only: %v", err)
		s.degraded = true
		s.schemas = newMemCatalog()
		return s
	}
	s.schemas = ss
	return s
}

// Close releases the underlying schema catalog handle.
func (s *Store) Close() error {
	if s.schemas != nil {
		return s.schemas.Close()
	}
	return nil
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// LoadConfig returns the persisted InstanceIdentity, or (nil, nil) if none exists yet.
func (s *Store) LoadConfig() (*InstanceIdentity, error) {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	if s.degraded {
		return nil, nil
	}
	var id InstanceIdentity
	if err := jsp.Load(s.path(configFile), &id); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		glog.Warningf("dadp: store: config load failed, treating as empty: %v", err)
		return nil, nil
	}
	return &id, nil
}

// SaveConfig atomically persists identity.
func (s *Store) SaveConfig(identity *InstanceIdentity) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	if s.degraded {
		glog.Warningf("dadp: store: degraded, saveConfig no-op")
		return nil
	}
	if err := jsp.Save(s.path(configFile), identity); err != nil {
		glog.Warningf("dadp: store: config save failed: %v", err)
		return cmn.Wrap(err, "store: save config")
	}
	return nil
}

// rawPolicy is the on-disk body of the policy-mappings document: the
// version, the full Mapping rows (schema/table/column/enabled) as a list,
// and the per-policy attributes. Mappings are not stored as a column key ->
// policyName map; the resolver rebuilds its key index from the rows on
// reload.
type rawPolicy struct {
	Version    uint64                      `json:"version"`
	Mappings   []Mapping                   `json:"mappings"`
	Attributes map[string]PolicyAttributes `json:"attributes"`
}

// LoadPolicy returns the persisted PolicySnapshot, or (nil, nil) if none exists yet.
func (s *Store) LoadPolicy() (*PolicySnapshot, error) {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	if s.degraded {
		return nil, nil
	}
	var raw rawPolicy
	if err := jsp.Load(s.path(policyFile), &raw); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		glog.Warningf("dadp: store: policy load failed, treating as empty: %v", err)
		return nil, nil
	}
	return &PolicySnapshot{Version: raw.Version, Mappings: raw.Mappings, Attributes: raw.Attributes}, nil
}

// SavePolicy atomically persists snap, replacing any prior document.
func (s *Store) SavePolicy(snap *PolicySnapshot) error {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	if s.degraded {
		glog.Warningf("dadp: store: degraded, savePolicy no-op")
		return nil
	}
	raw := rawPolicy{Version: snap.Version, Mappings: snap.Mappings, Attributes: snap.Attributes}
	if err := jsp.Save(s.path(policyFile), &raw); err != nil {
		glog.Warningf("dadp: store: policy save failed: %v", err)
		return cmn.Wrap(err, "store: save policy")
	}
	return nil
}

// LoadEndpoints returns the persisted EndpointRouting, or (nil, nil) if none exists yet.
func (s *Store) LoadEndpoints() (*EndpointRouting, error) {
	s.endpointMu.Lock()
	defer s.endpointMu.Unlock()
	if s.degraded {
		return nil, nil
	}
	var ep EndpointRouting
	if err := jsp.Load(s.path(endpointFile), &ep); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		glog.Warningf("dadp: store: endpoints load failed, treating as empty: %v", err)
		return nil, nil
	}
	return &ep, nil
}

// SaveEndpoints atomically persists ep.
func (s *Store) SaveEndpoints(ep *EndpointRouting) error {
	s.endpointMu.Lock()
	defer s.endpointMu.Unlock()
	if s.degraded {
		glog.Warningf("dadp: store: degraded, saveEndpoints no-op")
		return nil
	}
	if err := jsp.Save(s.path(endpointFile), ep); err != nil {
		glog.Warningf("dadp: store: endpoints save failed: %v", err)
		return cmn.Wrap(err, "store: save endpoints")
	}
	return nil
}

// LoadSchemas returns every SchemaEntry currently in the catalog.
func (s *Store) LoadSchemas() ([]SchemaEntry, error) { return s.schemas.All() }

// GetCreated returns the subset of the catalog still in CREATED status.
func (s *Store) GetCreated() ([]SchemaEntry, error) { return s.schemas.WithStatus(SchemaCreated) }

// CompareAndUpdate unions fresh into the catalog by key: new keys are
// inserted as CREATED; existing keys keep their stored status/policyName
// but pick up missing descriptive fields from fresh; stored-only keys are
// untouched. Returns the count of inserted + materially-modified entries.
func (s *Store) CompareAndUpdate(fresh []SchemaEntry, keyOf func(SchemaEntry) string) (int, error) {
	return s.schemas.CompareAndUpdate(fresh, keyOf)
}

// UpdateStatus advances the given keys to newStatus (never backwards — only
// CREATED->REGISTERED is meaningful, spec.md §3/§9 Open Question #2).
func (s *Store) UpdateStatus(keys []string, newStatus SchemaStatus) (int, error) {
	return s.schemas.UpdateStatus(keys, newStatus)
}

// UpdatePolicyNames best-effort refreshes PolicyName on matching keys.
func (s *Store) UpdatePolicyNames(byKey map[string]string) (int, error) {
	return s.schemas.UpdatePolicyNames(byKey)
}
