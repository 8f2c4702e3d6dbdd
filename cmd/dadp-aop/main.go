// Command dadp-aop is a minimal host process wiring the method-interception
// (AOP) deployment shape together: it builds a dadp.Context from the
// environment, starts the Sync Orchestrator, and serves /metrics.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daone-dadp/dadp-go/cmn"
	"github.com/daone-dadp/dadp-go/dadp"
	"github.com/daone-dadp/dadp-go/metrics"
)

var metricsAddr = flag.String("metrics-addr", ":9090", "address to serve /metrics on")

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := cmn.FromEnv(cmn.ShapeAOP)

	metrics.MustRegister(nil)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			glog.Errorf("dadp-aop: metrics server exited: %v", err)
		}
	}()

	// entity is nil here: a real AOP host supplies its own
	// intercept.EntityTableMap built from whatever attribute carries the
	// "encrypt me" declaration in its object model (§4.5.1/§6).
	ctxObj, err := dadp.New(cfg, nil, nil)
	if err != nil {
		glog.Fatalf("dadp-aop: construct context: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if err := ctxObj.Start(ctx); err != nil {
		glog.Fatalf("dadp-aop: start: %v", err)
	}

	<-sig
	cancel()
	if err := ctxObj.Close(); err != nil {
		glog.Warningf("dadp-aop: close: %v", err)
	}
}
