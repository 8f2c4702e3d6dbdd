package intercept

import (
	"time"

	"github.com/golang/glog"

	"github.com/daone-dadp/dadp-go/cmn"
	ecpkg "github.com/daone-dadp/dadp-go/engine"
	"github.com/daone-dadp/dadp-go/policy"
	"github.com/daone-dadp/dadp-go/store"
)

// CallOptions carries the per-call context spec.md §4.5 assumes is
// available to IE: the datasource/schema/table used for bare-string
// encrypts, an optional field restriction, and mask policy selection.
type CallOptions struct {
	DatasourceID string
	Schema       string // only consulted for the bare-string write-path case
	Table        string // only consulted for the bare-string write-path case
	Column       string // only consulted for the bare-string write-path case

	Fields []string // optional caller-supplied restriction (§4.5.1)

	RepositoryStyle bool // bare-string encrypt is only valid from repository-style callers (§4.5.3)

	MaskPolicyName string // method-level default mask policy (§4.5.5)
	MaskPolicyUID  string

	FieldMaskPolicyName map[string]string // per-field override, column -> maskPolicyName
	FieldMaskPolicyUID  map[string]string
}

// Engine is the Interception Engine (IE). It holds no state of its own
// beyond its collaborators; every call is independent.
type Engine struct {
	PR     *policy.Resolver
	EC     func() ecpkg.Client // obtained anew per call, per spec.md §4.4 concurrency note
	Entity EntityTableMap
	cfg    *cmn.Config

	Session SessionHooks          // optional
	Paged   PagedContainerFactory // optional
	Lazy    LazySequenceFactory   // optional

	// HubID reports the current instance identity's hubId, e.g. the Sync
	// Orchestrator's Identity().HubID. Nil means no gating (tests construct
	// Engines without a live SO). Consulted by tenantGate (spec.md §7
	// TenantMissing, §4.4 step 3).
	HubID func() string
}

// New constructs an Engine. Session, Paged, and Lazy may be left nil; their
// absence degrades gracefully per spec.md §4.5.3/§6.
func New(pr *policy.Resolver, ec func() ecpkg.Client, entity EntityTableMap, cfg *cmn.Config) *Engine {
	return &Engine{PR: pr, EC: ec, Entity: entity, cfg: cfg}
}

func (e *Engine) ec() ecpkg.Client { return e.EC() }

// tenantGate implements spec.md §7's TenantMissing row: once no hubId has
// been resolved and failOpen is off, the call fails closed rather than
// silently running the transform. failOpen tolerates a transient absence
// (not yet registered, Hub unreachable) and lets the call through.
func (e *Engine) tenantGate() error {
	if e.HubID == nil {
		return nil
	}
	if e.HubID() == "" && (e.cfg == nil || !e.cfg.FailOpen) {
		return cmn.ErrTenantMissing
	}
	return nil
}

// Schema-enumeration collaborator surface, consumed by package sync as a
// SchemaProvider (spec.md §4.4 step 1). Exposed via a tiny adapter rather
// than implementing sync.SchemaProvider directly on *Engine, since field
// enumeration is a property of the entity set the host registers, not of
// a single call.
type ColumnEnumerator interface {
	Columns() []store.SchemaEntry
}

// SchemaGate adapts a ColumnEnumerator plus a readiness signal into
// sync.SchemaProvider.
type SchemaGate struct {
	Enumerator ColumnEnumerator
	Ready      chan struct{}
}

func (g *SchemaGate) AwaitReady(timeout time.Duration) bool {
	select {
	case <-g.Ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (g *SchemaGate) LocalSchema() []store.SchemaEntry {
	if g.Enumerator == nil {
		return nil
	}
	return g.Enumerator.Columns()
}

// OnEncryptCall is the write-leaning entry point (spec.md §4.5). arg is
// either a single entity, a collection of entities, or a bare string;
// proceed is invoked with the (possibly transformed) argument to continue
// the original call.
func (e *Engine) OnEncryptCall(opts CallOptions, arg interface{}, proceed func(interface{}) (interface{}, error)) (interface{}, error) {
	if err := e.tenantGate(); err != nil {
		return nil, err
	}

	transformed, err := e.encryptArg(opts, arg)
	if err != nil {
		if e.cfg != nil && e.cfg.FallbackToOriginal {
			glog.Warningf("dadp: intercept: encrypt failed, falling back to original: %v", err)
			transformed = arg
		} else {
			return nil, err
		}
	}
	return proceed(transformed)
}

// OnDecryptCall is the read-leaning entry point (spec.md §4.5.4). proceed
// executes the intercepted call; the quarantine invariant requires
// detaching every live entity in the result before any field is modified.
func (e *Engine) OnDecryptCall(opts CallOptions, proceed func() (interface{}, error)) (interface{}, error) {
	if err := e.tenantGate(); err != nil {
		return nil, err
	}

	result, err := proceed()
	if err != nil {
		return nil, err
	}

	items, shape := normalize(result)
	if len(items) == 0 {
		return result, nil
	}

	e.quarantine(items)

	if err := e.decryptItems(opts, items); err != nil {
		if e.cfg != nil && e.cfg.FallbackToOriginal {
			glog.Warningf("dadp: intercept: decrypt failed, returning untransformed result: %v", err)
			return result, nil
		}
		return nil, err
	}

	return rewrap(shape, items, e.Paged, e.Lazy), nil
}

// quarantine implements spec.md §4.5.4 step 3: detach every live, tracked
// entity from its session before any field is modified. Reordering this
// after decryption is a bug.
func (e *Engine) quarantine(items []interface{}) {
	if e.Session == nil {
		return
	}
	for _, item := range items {
		e.Session.Detach(item)
		e.Session.MarkReadOnly(item)
	}
}
