package store

import (
	"sync"

	"github.com/tidwall/buntdb"

	jsoniter "github.com/json-iterator/go"

	"github.com/daone-dadp/dadp-go/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// schemaCatalog is the minimal interface both the buntdb-backed and the
// in-memory degraded implementations satisfy.
type schemaCatalog interface {
	All() ([]SchemaEntry, error)
	WithStatus(SchemaStatus) ([]SchemaEntry, error)
	CompareAndUpdate([]SchemaEntry, func(SchemaEntry) string) (int, error)
	UpdateStatus([]string, SchemaStatus) (int, error)
	UpdatePolicyNames(map[string]string) (int, error)
	Close() error
}

// schemaStore keys SchemaEntry rows by their catalog key in an embedded
// buntdb database, giving getCreated/updateStatus/updatePolicyNames
// indexed lookups instead of a full-file rewrite per mutation (§3.1
// DOMAIN STACK: tidwall/buntdb).
type schemaStore struct {
	db *buntdb.DB
}

var _ schemaCatalog = (*schemaStore)(nil)

func openSchemaStore(path string) (*schemaStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.Wrap(err, "store: open schema catalog")
	}
	if err := db.CreateIndex("status", "*", buntdb.IndexJSON("status")); err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, cmn.Wrap(err, "store: create status index")
	}
	return &schemaStore{db: db}, nil
}

func (s *schemaStore) Close() error { return s.db.Close() }

func (s *schemaStore) All() ([]SchemaEntry, error) {
	var out []SchemaEntry
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			var e SchemaEntry
			if json.UnmarshalFromString(value, &e) == nil {
				out = append(out, e)
			}
			return true
		})
	})
	if err != nil {
		return nil, cmn.Wrap(err, "store: list schemas")
	}
	return out, nil
}

func (s *schemaStore) WithStatus(status SchemaStatus) ([]SchemaEntry, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, e := range all {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *schemaStore) CompareAndUpdate(fresh []SchemaEntry, keyOf func(SchemaEntry) string) (int, error) {
	modified := 0
	err := s.db.Update(func(tx *buntdb.Tx) error {
		for _, f := range fresh {
			key := keyOf(f)
			existingVal, getErr := tx.Get(key)
			if getErr == buntdb.ErrNotFound {
				f.Status = SchemaCreated
				raw, _ := json.MarshalToString(f)
				if _, _, err := tx.Set(key, raw, nil); err != nil {
					return err
				}
				modified++
				continue
			}
			if getErr != nil {
				return getErr
			}
			var existing SchemaEntry
			if err := json.UnmarshalFromString(existingVal, &existing); err != nil {
				return err
			}
			merged, changed := mergeDescriptive(existing, f)
			if changed {
				raw, _ := json.MarshalToString(merged)
				if _, _, err := tx.Set(key, raw, nil); err != nil {
					return err
				}
				modified++
			}
		}
		return nil
	})
	if err != nil {
		return 0, cmn.Wrap(err, "store: compareAndUpdate")
	}
	return modified, nil
}

// mergeDescriptive keeps existing's status and policyName (status only ever
// advances via UpdateStatus, §9 Open Question #2) but fills in any
// descriptive field fresh carries that existing lacks.
func mergeDescriptive(existing, fresh SchemaEntry) (SchemaEntry, bool) {
	changed := false
	if existing.ColumnType == "" && fresh.ColumnType != "" {
		existing.ColumnType = fresh.ColumnType
		changed = true
	}
	if existing.IsNullable == nil && fresh.IsNullable != nil {
		existing.IsNullable = fresh.IsNullable
		changed = true
	}
	if existing.ColumnDefault == "" && fresh.ColumnDefault != "" {
		existing.ColumnDefault = fresh.ColumnDefault
		changed = true
	}
	if existing.DBVendor == "" && fresh.DBVendor != "" {
		existing.DBVendor = fresh.DBVendor
		changed = true
	}
	if existing.DatabaseName == "" && fresh.DatabaseName != "" {
		existing.DatabaseName = fresh.DatabaseName
		changed = true
	}
	return existing, changed
}

func (s *schemaStore) UpdateStatus(keys []string, newStatus SchemaStatus) (int, error) {
	updated := 0
	err := s.db.Update(func(tx *buntdb.Tx) error {
		for _, key := range keys {
			val, err := tx.Get(key)
			if err == buntdb.ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var e SchemaEntry
			if err := json.UnmarshalFromString(val, &e); err != nil {
				return err
			}
			if e.Status == SchemaCreated && newStatus == SchemaRegistered {
				e.Status = newStatus
				raw, _ := json.MarshalToString(e)
				if _, _, err := tx.Set(key, raw, nil); err != nil {
					return err
				}
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, cmn.Wrap(err, "store: updateStatus")
	}
	return updated, nil
}

func (s *schemaStore) UpdatePolicyNames(byKey map[string]string) (int, error) {
	updated := 0
	err := s.db.Update(func(tx *buntdb.Tx) error {
		for key, policyName := range byKey {
			val, err := tx.Get(key)
			if err == buntdb.ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var e SchemaEntry
			if err := json.UnmarshalFromString(val, &e); err != nil {
				return err
			}
			if e.PolicyName == policyName {
				continue
			}
			e.PolicyName = policyName
			raw, _ := json.MarshalToString(e)
			if _, _, err := tx.Set(key, raw, nil); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, cmn.Wrap(err, "store: updatePolicyNames")
	}
	return updated, nil
}

// memCatalog backs the degraded (directory-creation-failed) mode with a
// plain guarded map, so the same Store API works without a filesystem.
var _ schemaCatalog = (*memCatalog)(nil)

type memCatalog struct {
	mu   sync.Mutex
	rows map[string]SchemaEntry
}

func newMemCatalog() *memCatalog {
	return &memCatalog{rows: make(map[string]SchemaEntry)}
}

func (m *memCatalog) Close() error { return nil }

func (m *memCatalog) All() ([]SchemaEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SchemaEntry, 0, len(m.rows))
	for _, e := range m.rows {
		out = append(out, e)
	}
	return out, nil
}

func (m *memCatalog) WithStatus(status SchemaStatus) ([]SchemaEntry, error) {
	all, _ := m.All()
	out := all[:0:0]
	for _, e := range all {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memCatalog) CompareAndUpdate(fresh []SchemaEntry, keyOf func(SchemaEntry) string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	modified := 0
	for _, f := range fresh {
		key := keyOf(f)
		existing, ok := m.rows[key]
		if !ok {
			f.Status = SchemaCreated
			m.rows[key] = f
			modified++
			continue
		}
		merged, changed := mergeDescriptive(existing, f)
		if changed {
			m.rows[key] = merged
			modified++
		}
	}
	return modified, nil
}

func (m *memCatalog) UpdateStatus(keys []string, newStatus SchemaStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, key := range keys {
		e, ok := m.rows[key]
		if !ok {
			continue
		}
		if e.Status == SchemaCreated && newStatus == SchemaRegistered {
			e.Status = newStatus
			m.rows[key] = e
			updated++
		}
	}
	return updated, nil
}

func (m *memCatalog) UpdatePolicyNames(byKey map[string]string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for key, policyName := range byKey {
		e, ok := m.rows[key]
		if !ok || e.PolicyName == policyName {
			continue
		}
		e.PolicyName = policyName
		m.rows[key] = e
		updated++
	}
	return updated, nil
}
