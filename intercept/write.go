package intercept

import (
	"reflect"

	ecpkg "github.com/daone-dadp/dadp-go/engine"
)

// encryptArg dispatches on the shape of arg per spec.md §4.5.3 and returns
// the (possibly new) value to pass to the original callee.
func (e *Engine) encryptArg(opts CallOptions, arg interface{}) (interface{}, error) {
	if arg == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.String:
		if !opts.RepositoryStyle {
			// Service-style callers: deliberate no-op (§4.5.3) to avoid
			// double-encrypting strings whose policy is ambiguous.
			return arg, nil
		}
		enc, err := e.encryptStringValue(opts, rv.String())
		if err != nil {
			return arg, err
		}
		return enc, nil
	case reflect.Slice, reflect.Array:
		if err := e.encryptCollection(opts, rv); err != nil {
			return arg, err
		}
		return arg, nil
	default:
		if err := e.encryptEntity(opts, arg); err != nil {
			return arg, err
		}
		return arg, nil
	}
}

func (e *Engine) encryptStringValue(opts CallOptions, value string) (string, error) {
	if value == "" || ecpkg.IsCiphertext(value) {
		return value, nil
	}
	policyName, _ := e.PR.Resolve(opts.DatasourceID, opts.Schema, opts.Table, opts.Column)
	return e.ec().Encrypt(value, policyName, false)
}

func (e *Engine) encryptEntity(opts CallOptions, entity interface{}) error {
	ev, ok := entityOf(reflect.ValueOf(entity))
	if !ok {
		return nil
	}
	t := ev.Type()
	schema, table, ok := e.Entity.TableFor(t)
	if !ok {
		return ErrNoEntityTableMap
	}
	for _, fd := range restrict(describe(t), opts.Fields) {
		fv := ev.Field(fd.Index)
		if !fv.CanSet() {
			continue
		}
		val := fv.String()
		if val == "" || ecpkg.IsCiphertext(val) {
			continue // idempotence: already-ciphertext values are skipped with no call (§4.5.3)
		}
		policyName, _ := e.PR.Resolve(opts.DatasourceID, schema, table, fd.ColumnName)
		enc, err := e.ec().Encrypt(val, policyName, false)
		if err != nil {
			return err
		}
		fv.SetString(enc)
	}
	return nil
}

type encryptRef struct {
	entityIdx int
	fieldIdx  int
	value     string
}

// encryptCollection implements §4.5.3's "Collection" case: group by
// (field, policy) and issue a single encrypt/batch per group when the
// group size meets or exceeds BatchMinSize; smaller groups fall back to
// per-item encrypt. Results are bound back to items by index.
func (e *Engine) encryptCollection(opts CallOptions, rv reflect.Value) error {
	groups := map[string][]encryptRef{}
	policyOf := map[string]string{}

	n := rv.Len()
	for i := 0; i < n; i++ {
		ev, ok := entityOf(rv.Index(i))
		if !ok {
			continue
		}
		t := ev.Type()
		schema, table, ok := e.Entity.TableFor(t)
		if !ok {
			return ErrNoEntityTableMap
		}
		for _, fd := range restrict(describe(t), opts.Fields) {
			fv := ev.Field(fd.Index)
			if !fv.CanSet() {
				continue
			}
			val := fv.String()
			if val == "" || ecpkg.IsCiphertext(val) {
				continue
			}
			policyName, _ := e.PR.Resolve(opts.DatasourceID, schema, table, fd.ColumnName)
			key := fd.ColumnName + "\x00" + policyName
			groups[key] = append(groups[key], encryptRef{entityIdx: i, fieldIdx: fd.Index, value: val})
			policyOf[key] = policyName
		}
	}

	batchMin := 100
	if e.cfg != nil {
		batchMin = e.cfg.BatchMinSize
	}
	batchDisabled := e.cfg != nil && e.cfg.BatchDisabled

	for key, refs := range groups {
		policyName := policyOf[key]
		if !batchDisabled && len(refs) >= batchMin {
			if err := e.encryptGroupBatched(rv, refs, policyName); err != nil {
				return err
			}
			continue
		}
		for _, r := range refs {
			enc, err := e.ec().Encrypt(r.value, policyName, false)
			if err != nil {
				return err
			}
			e.setCollectionField(rv, r, enc)
		}
	}
	return nil
}

func (e *Engine) encryptGroupBatched(rv reflect.Value, refs []encryptRef, policyName string) error {
	items := make([]ecpkg.BatchEncryptItem, len(refs))
	for i, r := range refs {
		items[i] = ecpkg.BatchEncryptItem{Data: r.value, PolicyName: policyName}
	}
	results, err := e.ec().EncryptBatch(items)
	if err != nil {
		return err
	}
	for i, r := range refs {
		if i >= len(results) || !results[i].Success {
			continue
		}
		e.setCollectionField(rv, r, results[i].Value)
	}
	return nil
}

func (e *Engine) setCollectionField(rv reflect.Value, r encryptRef, value string) {
	ev, ok := entityOf(rv.Index(r.entityIdx))
	if !ok {
		return
	}
	ev.Field(r.fieldIdx).SetString(value)
}
