package dadp_test

import (
	"os"
	"testing"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/dadp"
)

func TestNewWiresAllComponents(t *testing.T) {
	dir, err := os.MkdirTemp("", "dadp-context-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := cmn.Defaults(cmn.ShapeAOP)
	cfg.Alias = "inst-1"
	cfg.HubBaseURL = "https://hub.example"
	cfg.StoreDir = dir

	ctxObj, err := dadp.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctxObj.Store == nil || ctxObj.Policy == nil || ctxObj.Hub == nil || ctxObj.Orchestrator == nil || ctxObj.Intercept == nil {
		t.Fatalf("expected every component to be wired, got %+v", ctxObj)
	}
	if err := ctxObj.Store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestUpdateConfigPublishesThroughTheOwner(t *testing.T) {
	dir, err := os.MkdirTemp("", "dadp-context-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := cmn.Defaults(cmn.ShapeAOP)
	cfg.Alias = "inst-1"
	cfg.HubBaseURL = "https://hub.example"
	cfg.StoreDir = dir

	ctxObj, err := dadp.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ctxObj.Store.Close()

	if ctxObj.Config.Get().FailOpen != true {
		t.Fatalf("expected default FailOpen true, got %v", ctxObj.Config.Get().FailOpen)
	}

	updated := ctxObj.UpdateConfig(func(c *cmn.Config) { c.FailOpen = false })
	if updated.FailOpen {
		t.Fatalf("expected mutated clone to have FailOpen false")
	}
	if ctxObj.Config.Get().FailOpen {
		t.Fatalf("expected CommitUpdate to publish the mutated snapshot")
	}
}
