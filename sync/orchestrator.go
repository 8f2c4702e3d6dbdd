// Package sync implements the Sync Orchestrator (SO): the state machine
// driving PR, EC, and PS against the Hub control plane (spec.md §4.4).
package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/singleflight"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/engine"
	"github.com/daone-dadp/dadp-go/hub"
	"github.com/daone-dadp/dadp-go/metrics"
	"github.com/daone-dadp/dadp-go/policy"
	"github.com/daone-dadp/dadp-go/store"
)

// SchemaProvider is the collaborator interface satisfied by the
// interception engine: the schema gate (spec.md §4.4 step 1) and the
// column enumeration used for schema publication. Defined here rather than
// imported from package intercept so that package sync does not import
// package intercept (intercept.SchemaGate satisfies it).
type SchemaProvider interface {
	// AwaitReady blocks until field enumeration has completed or timeout
	// elapses, returning false on timeout (§4.4 step 1: "on timeout,
	// continue with whatever is available").
	AwaitReady(timeout time.Duration) bool
	// LocalSchema returns the locally-known columns as of the call.
	LocalSchema() []store.SchemaEntry
}

// ECFactory builds an Engine Client bound to cryptoURL. Supplied by the
// host so the orchestrator never hardcodes a transport; EC's own
// constructor independently rejects any URL resolving to the Hub control
// segment (spec.md §4.3).
type ECFactory func(cryptoURL string) (engine.Client, error)

const tickKey = "tick"

// Orchestrator is the Sync Orchestrator. Its shared mutable state is the
// started flag, the EC (guarded by the rebuild lock ecMu) and the instance
// identity (guarded by idMu) (spec.md §5).
type Orchestrator struct {
	cfg    *cmn.Config
	ps     *store.Store
	pr     *policy.Resolver
	hub    hub.Client
	schema SchemaProvider
	ecNew  ECFactory

	started int32 // atomic compare-and-set flag

	ecMu sync.RWMutex
	ec   engine.Client

	idMu     sync.Mutex
	identity store.InstanceIdentity

	sf singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Orchestrator. Call Start once to run bootstrap and
// begin the periodic loop.
func New(cfg *cmn.Config, ps *store.Store, pr *policy.Resolver, hubClient hub.Client, schema SchemaProvider, ecNew ECFactory) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		ps:     ps,
		pr:     pr,
		hub:    hubClient,
		schema: schema,
		ecNew:  ecNew,
	}
}

// EC returns the current Engine Client. Callers obtain their reference
// anew on each call so an identity-driven rebuild is observed within one
// call (spec.md §4.4 concurrency note).
func (o *Orchestrator) EC() engine.Client {
	o.ecMu.RLock()
	defer o.ecMu.RUnlock()
	return o.ec
}

// Identity returns a copy of the currently-known instance identity.
func (o *Orchestrator) Identity() store.InstanceIdentity {
	o.idMu.Lock()
	defer o.idMu.Unlock()
	return o.identity
}

// Start runs bootstrap synchronously, then launches the periodic loop in a
// goroutine. It is a no-op on any call after the first (compare-and-set).
func (o *Orchestrator) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&o.started, 0, 1) {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})

	if err := o.bootstrap(ctx); err != nil {
		glog.Warningf("dadp: sync: bootstrap error, continuing: %v", err)
	}

	go o.loop(ctx)
	return nil
}

// Stop cancels the periodic loop and waits for it to exit.
func (o *Orchestrator) Stop() {
	if atomic.LoadInt32(&o.started) == 0 {
		return
	}
	if o.cancel != nil {
		o.cancel()
	}
	if o.done != nil {
		<-o.done
	}
}

// bootstrap runs the four-step sequence of spec.md §4.4 "On start".
func (o *Orchestrator) bootstrap(ctx context.Context) error {
	// 1. Schema gate.
	if o.schema != nil {
		if !o.schema.AwaitReady(o.cfg.SchemaGateTimeout) {
			glog.Warningf("dadp: sync: schema gate timed out after %s, continuing with partial enumeration", o.cfg.SchemaGateTimeout)
		}
	}

	// 2. Local load.
	if err := o.loadLocal(); err != nil {
		glog.Warningf("dadp: sync: local load incomplete: %v", err)
	}

	// 3. Identity resolution.
	if o.Identity().HubID == "" {
		if err := o.register(); err != nil {
			if !o.cfg.FailOpen {
				return cmn.Wrap(err, "sync: bootstrap: register")
			}
			glog.Warningf("dadp: sync: register failed, continuing without a hub id (failOpen): %v", err)
		}
	}

	// 4. Schema publication.
	o.publishSchema()

	return nil
}

func (o *Orchestrator) loadLocal() error {
	id, err := o.ps.LoadConfig()
	if err != nil {
		return cmn.Wrap(err, "sync: load identity")
	}
	if id != nil {
		o.idMu.Lock()
		o.identity = *id
		o.idMu.Unlock()
	} else {
		o.idMu.Lock()
		o.identity = store.InstanceIdentity{
			HubBaseURL: o.cfg.HubBaseURL,
			Alias:      o.cfg.Alias,
			FailOpen:   o.cfg.FailOpen,
		}
		o.idMu.Unlock()
	}

	if err := o.pr.ReloadFromStorage(); err != nil {
		glog.Warningf("dadp: sync: policy reload failed: %v", err)
	}

	ep, err := o.ps.LoadEndpoints()
	if err != nil {
		return cmn.Wrap(err, "sync: load endpoints")
	}
	if ep != nil && ep.CryptoURL != "" {
		o.rebuildEC(ep.CryptoURL)
	} else if o.cfg.CryptoBaseURL != "" {
		o.rebuildEC(o.cfg.CryptoBaseURL)
	}
	return nil
}

// rebuildEC holds the EC lock only for the duration of the swap, never
// across the HTTP construction call's network I/O (there is none here —
// NewHTTPClient-style constructors are non-blocking) — satisfying "no lock
// held across an HTTP call" (spec.md §5).
func (o *Orchestrator) rebuildEC(cryptoURL string) {
	if o.ecNew == nil {
		return
	}
	client, err := o.ecNew(cryptoURL)
	if err != nil {
		glog.Warningf("dadp: sync: rebuild EC for %q failed: %v", cryptoURL, err)
		return
	}
	o.ecMu.Lock()
	o.ec = client
	o.ecMu.Unlock()
}

func (o *Orchestrator) register() error {
	id := o.Identity()
	hubID, err := o.hub.Register(id.Alias, string(o.cfg.Shape))
	if err != nil {
		return cmn.Wrap(err, "sync: register")
	}
	o.idMu.Lock()
	o.identity.HubID = hubID
	id = o.identity
	o.idMu.Unlock()
	if err := o.ps.SaveConfig(&id); err != nil {
		glog.Warningf("dadp: sync: persist identity after register failed: %v", err)
	}
	return nil
}

// publishSchema implements step 4: compareAndUpdate the fresh local
// enumeration into PS, then push CREATED entries (or, on first boot with
// none CREATED, the full set) to the Hub.
func (o *Orchestrator) publishSchema() {
	if o.schema == nil {
		return
	}
	fresh := o.schema.LocalSchema()
	keyOf := func(e store.SchemaEntry) string {
		return cmn.ColumnKey(e.DatasourceID, e.SchemaName, e.TableName, e.ColumnName)
	}
	prior, err := o.ps.LoadSchemas()
	if err != nil {
		glog.Warningf("dadp: sync: load stored schemas failed: %v", err)
		return
	}
	firstBoot := len(prior) == 0
	if _, err := o.ps.CompareAndUpdate(fresh, keyOf); err != nil {
		glog.Warningf("dadp: sync: schema compareAndUpdate failed: %v", err)
		return
	}

	created, err := o.ps.GetCreated()
	if err != nil {
		glog.Warningf("dadp: sync: load created schemas failed: %v", err)
		return
	}
	toPush := created
	if firstBoot && len(created) == 0 {
		all, err := o.ps.LoadSchemas()
		if err != nil {
			glog.Warningf("dadp: sync: load full schema catalog failed: %v", err)
			return
		}
		toPush = all
	}
	if len(toPush) == 0 {
		return
	}
	o.pushSchemas(toPush, keyOf)
}

func (o *Orchestrator) pushSchemas(entries []store.SchemaEntry, keyOf func(store.SchemaEntry) string) {
	id := o.Identity()
	wire := make([]hub.SchemaSyncEntry, len(entries))
	keys := make([]string, len(entries))
	for i, e := range entries {
		wire[i] = hub.SchemaSyncEntry{SchemaName: e.SchemaName, TableName: e.TableName, ColumnName: e.ColumnName, PolicyName: e.PolicyName}
		keys[i] = keyOf(e)
	}
	version, _ := o.pr.CurrentVersion()
	if err := o.hub.SyncSchema(id.Alias, id.HubID, version, wire); err != nil {
		glog.Warningf("dadp: sync: schema/sync failed, entries remain CREATED: %v", err)
		return
	}
	if _, err := o.ps.UpdateStatus(keys, store.SchemaRegistered); err != nil {
		glog.Warningf("dadp: sync: mark schemas REGISTERED failed: %v", err)
	}
}

// loop runs the periodic check (spec.md §4.4), conditional on a hubId
// being present, until ctx is canceled.
func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.done)
	ticker := time.NewTicker(o.cfg.PeriodicInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick()
		}
	}
}

// tick is single-flight: overlapping invocations (e.g. a manual trigger
// racing the ticker) coalesce onto one in-flight call (spec.md §4.4
// concurrency note, §3.1 DOMAIN STACK).
func (o *Orchestrator) tick() {
	_, _, _ = o.sf.Do(tickKey, func() (interface{}, error) {
		o.checkOnce()
		return nil, nil
	})
}

func (o *Orchestrator) checkOnce() {
	id := o.Identity()
	if id.HubID == "" {
		return
	}
	version, _ := o.pr.CurrentVersion()
	result, err := o.hub.Check(id.HubID, version)
	if err != nil {
		metrics.SyncTicks.WithLabelValues("transient").Inc()
		glog.Warningf("dadp: sync: check failed: %v", err)
		return
	}
	switch {
	case result.NotModified:
		metrics.SyncTicks.WithLabelValues("not_modified").Inc()
		return
	case result.Reregistered:
		metrics.SyncTicks.WithLabelValues("reregistered").Inc()
		o.idMu.Lock()
		o.identity.HubID = result.NewHubID
		id = o.identity
		o.idMu.Unlock()
		if err := o.ps.SaveConfig(&id); err != nil {
			glog.Warningf("dadp: sync: persist reregistered identity failed: %v", err)
		}
		o.publishSchema()
		o.pullSnapshot()
	case result.NotFound:
		metrics.SyncTicks.WithLabelValues("not_found").Inc()
		if err := o.bootstrapReregister(); err != nil {
			glog.Warningf("dadp: sync: full register->publish flow after 404 failed: %v", err)
		}
	default:
		metrics.SyncTicks.WithLabelValues("snapshot").Inc()
		o.pullSnapshot()
	}
}

// bootstrapReregister runs the Register -> Publish flow outside of process
// start, as required on a 404 from mappings/check (spec.md §4.4 table).
func (o *Orchestrator) bootstrapReregister() error {
	o.idMu.Lock()
	o.identity.HubID = ""
	o.idMu.Unlock()
	if err := o.register(); err != nil {
		return err
	}
	o.publishSchema()
	return nil
}

// pullSnapshot implements spec.md §4.4's named snapshot-pull sub-procedure.
func (o *Orchestrator) pullSnapshot() {
	id := o.Identity()
	version, _ := o.pr.CurrentVersion()
	snap, notModified, notFound, err := o.hub.PullSnapshot(id.Alias, id.HubID, version)
	if err != nil {
		glog.Warningf("dadp: sync: pull snapshot failed: %v", err)
		return
	}
	if notModified {
		return
	}
	if notFound {
		if err := o.bootstrapReregister(); err != nil {
			glog.Warningf("dadp: sync: register after snapshot 404 failed: %v", err)
		}
		return
	}
	if snap == nil {
		return
	}

	var enabled []store.Mapping
	attrs := map[string]store.PolicyAttributes{}
	for _, m := range snap.Mappings {
		mm := store.Mapping{
			DatasourceID: m.DatasourceID,
			SchemaName:   m.SchemaName,
			TableName:    m.TableName,
			ColumnName:   m.ColumnName,
			PolicyName:   m.PolicyName,
			Enabled:      m.Enabled,
			UseIV:        m.UseIV,
			UsePlain:     m.UsePlain,
		}
		if !mm.Enabled {
			continue
		}
		enabled = append(enabled, mm)
		if _, seen := attrs[mm.PolicyName]; !seen {
			a := store.DefaultPolicyAttributes()
			if mm.UseIV != nil {
				a.UseIV = *mm.UseIV
			}
			if mm.UsePlain != nil {
				a.UsePlain = *mm.UsePlain
			}
			attrs[mm.PolicyName] = a
		}
	}

	if err := o.pr.Refresh(enabled, attrs, snap.Version); err != nil {
		glog.Warningf("dadp: sync: PR refresh failed: %v", err)
		return
	}
	metrics.PolicyVersion.Set(float64(snap.Version))

	if snap.Endpoint != nil && snap.Endpoint.CryptoURL != "" {
		if err := o.applyEndpoint(snap.Endpoint.CryptoURL, id.HubID, snap.Version); err != nil {
			glog.Warningf("dadp: sync: endpoint apply rejected: %v", err)
		}
	}

	byKey := make(map[string]string, len(enabled))
	for _, m := range enabled {
		byKey[cmn.ColumnKey(m.DatasourceID, m.SchemaName, m.TableName, m.ColumnName)] = m.PolicyName
	}
	if _, err := o.ps.UpdatePolicyNames(byKey); err != nil {
		glog.Warningf("dadp: sync: best-effort schema policyName update failed: %v", err)
	}
}

// applyEndpoint persists and seeds a newly-learned crypto endpoint,
// rejecting it up front if it resolves to the Hub's own control segment
// (spec.md §4.3/§6).
func (o *Orchestrator) applyEndpoint(cryptoURL, hubID string, version uint64) error {
	if o.ecNew != nil {
		if _, err := o.ecNew(cryptoURL); err != nil {
			return cmn.Wrap(err, "sync: endpoint validation")
		}
	}
	ep := &store.EndpointRouting{CryptoURL: cryptoURL, HubID: hubID, Version: version}
	if err := o.ps.SaveEndpoints(ep); err != nil {
		glog.Warningf("dadp: sync: persist endpoint failed: %v", err)
	}
	o.rebuildEC(cryptoURL)
	return nil
}
