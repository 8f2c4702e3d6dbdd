// Package dadp wires the five components (PS, PR, EC, SO, IE) into a
// single explicit Context, replacing the global-singleton pattern the
// original system used (spec.md §9 Design Notes) with a value the host
// constructs once and threads through explicitly.
package dadp

import (
	"context"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/engine"
	"github.com/daone-dadp/dadp-go/hub"
	"github.com/daone-dadp/dadp-go/intercept"
	"github.com/daone-dadp/dadp-go/policy"
	"github.com/daone-dadp/dadp-go/store"
	syncpkg "github.com/daone-dadp/dadp-go/sync"
)

// Context holds every live component for one deployment (one Shape, one
// PS directory, one Hub identity). A host process may hold more than one
// Context if it fronts more than one datasource.
type Context struct {
	Config       *cmn.GlobalConfigOwner
	Store        *store.Store
	Policy       *policy.Resolver
	Hub          hub.Client
	Orchestrator *syncpkg.Orchestrator
	Intercept    *intercept.Engine
}

// New builds a Context from cfg. entity and schema are the host-supplied
// collaborators of spec.md §6; schema may be nil if the host has no
// field-enumeration signal to offer (bootstrap then skips both the schema
// gate and schema publication).
func New(cfg *cmn.Config, entity intercept.EntityTableMap, schema syncpkg.SchemaProvider) (*Context, error) {
	gco := cmn.NewGlobalConfigOwner(cfg)
	live := gco.Get()

	tlsConfig, err := cmn.TLSConfig(live.CACertPath)
	if err != nil {
		return nil, cmn.Wrap(err, "dadp: build tls config")
	}

	st := store.Open(live.StoreDir)
	pr := policy.New(st)

	hubClient := hub.NewHTTPClient(live.HubBaseURL, tlsConfig, live.HTTPTimeout)

	ecFactory := func(cryptoURL string) (engine.Client, error) {
		return engine.NewHTTPClient(cryptoURL, tlsConfig, live.HTTPTimeout, live.BatchCompressMin)
	}

	orch := syncpkg.New(live, st, pr, hubClient, schema, ecFactory)
	ie := intercept.New(pr, orch.EC, entity, live)
	ie.HubID = func() string { return orch.Identity().HubID }

	return &Context{
		Config:       gco,
		Store:        st,
		Policy:       pr,
		Hub:          hubClient,
		Orchestrator: orch,
		Intercept:    ie,
	}, nil
}

// UpdateConfig applies mutate to a clone of the current config snapshot and
// publishes it atomically via the GlobalConfigOwner. The SO and IE built by
// New keep the *cmn.Config they were constructed with and never read the
// owner, so they do not see the update; only readers of c.Config.Get()
// observe the new snapshot.
func (c *Context) UpdateConfig(mutate func(*cmn.Config)) *cmn.Config {
	cp := c.Config.BeginUpdate()
	mutate(cp)
	c.Config.CommitUpdate(cp)
	return cp
}

// Start runs the Sync Orchestrator's bootstrap sequence and launches its
// periodic loop.
func (c *Context) Start(ctx context.Context) error {
	return c.Orchestrator.Start(ctx)
}

// Close stops the periodic loop and releases the Persistent Store handle.
func (c *Context) Close() error {
	c.Orchestrator.Stop()
	return c.Store.Close()
}
