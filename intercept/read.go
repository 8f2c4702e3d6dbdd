package intercept

import (
	"reflect"

	ecpkg "github.com/daone-dadp/dadp-go/engine"
)

type decryptRef struct {
	itemIdx   int
	fieldIdx  int
	value     string
	maskName  string
	maskUID   string
}

// decryptItems implements spec.md §4.5.4 steps 4-6: collect target string
// values across all elements into a flat array, decrypt per-item or in
// max-chunk-sized batches, and write results back by index. On an error
// every collected field is restored to its original value.
func (e *Engine) decryptItems(opts CallOptions, items []interface{}) error {
	var refs []decryptRef
	for idx, item := range items {
		ev, ok := entityOf(reflect.ValueOf(item))
		if !ok {
			continue
		}
		t := ev.Type()
		for _, fd := range restrict(describe(t), opts.Fields) {
			fv := ev.Field(fd.Index)
			if !fv.CanSet() {
				continue
			}
			val := fv.String()
			if val == "" {
				continue
			}
			maskName, maskUID := resolveMask(opts, fd.ColumnName)
			refs = append(refs, decryptRef{itemIdx: idx, fieldIdx: fd.Index, value: val, maskName: maskName, maskUID: maskUID})
		}
	}
	if len(refs) == 0 {
		return nil
	}

	maxChunk := 10_000
	batchMin := 100
	batchDisabled := false
	if e.cfg != nil {
		if e.cfg.BatchMaxSize > 0 {
			maxChunk = e.cfg.BatchMaxSize
		}
		batchMin = e.cfg.BatchMinSize
		batchDisabled = e.cfg.BatchDisabled
	}

	// rewind restores every collected field to its original value, so a
	// failed call leaves the items untransformed.
	rewind := func() {
		for _, r := range refs {
			setItemField(items, r.itemIdx, r.fieldIdx, r.value)
		}
	}
	for start := 0; start < len(refs); start += maxChunk {
		end := start + maxChunk
		if end > len(refs) {
			end = len(refs)
		}
		chunk := refs[start:end]
		if !batchDisabled && len(chunk) >= batchMin {
			if err := e.decryptChunkBatched(items, chunk); err != nil {
				rewind()
				return err
			}
			continue
		}
		if err := e.decryptChunkIndividually(items, chunk); err != nil {
			rewind()
			return err
		}
	}
	return nil
}

func (e *Engine) decryptChunkIndividually(items []interface{}, chunk []decryptRef) error {
	for _, r := range chunk {
		dec, err := e.ec().Decrypt(r.value, "", r.maskName, r.maskUID)
		if err != nil {
			if err == ecpkg.ErrNotEncrypted {
				continue // leave the original string unchanged (§4.5.4 step 6)
			}
			return err
		}
		setItemField(items, r.itemIdx, r.fieldIdx, dec)
	}
	return nil
}

func (e *Engine) decryptChunkBatched(items []interface{}, chunk []decryptRef) error {
	batchItems := make([]ecpkg.BatchDecryptItem, len(chunk))
	for i, r := range chunk {
		batchItems[i] = ecpkg.BatchDecryptItem{Data: r.value, MaskPolicyName: r.maskName, MaskPolicyUID: r.maskUID}
	}
	results, err := e.ec().DecryptBatch(batchItems)
	if err != nil {
		return err
	}
	for i, r := range chunk {
		if i >= len(results) || !results[i].Success {
			continue // not-encrypted or failed: leave original unchanged
		}
		setItemField(items, r.itemIdx, r.fieldIdx, results[i].Value)
	}
	return nil
}

func setItemField(items []interface{}, itemIdx, fieldIdx int, value string) {
	ev, ok := entityOf(reflect.ValueOf(items[itemIdx]))
	if !ok {
		return
	}
	ev.Field(fieldIdx).SetString(value)
}
