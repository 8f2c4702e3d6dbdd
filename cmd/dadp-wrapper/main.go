// Command dadp-wrapper is a minimal host process wiring the
// driver-interception (WRAPPER) deployment shape together. It differs from
// dadp-aop only in the Shape reflected back to the Hub (spec.md §6) and its
// default -metrics-addr — the core components are identical.
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

var metricsAddr = flag.String("metrics-addr", ":9091", "address to serve /metrics on")

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := cmn.FromEnv(cmn.ShapeWrapper)

	metrics.MustRegister(nil)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			glog.Errorf("dadp-wrapper: metrics server exited: %v", err)
		}
	}()

	// entity is nil here: a real WRAPPER host drives field detection from
	// the driver layer itself rather than a method-level attribute, and
	// supplies the equivalent intercept.EntityTableMap accordingly.
	ctxObj, err := dadp.New(cfg, nil, nil)
	if err != nil {
		glog.Fatalf("dadp-wrapper: construct context: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if err := ctxObj.Start(ctx); err != nil {
		glog.Fatalf("dadp-wrapper: start: %v", err)
	}

	<-sig
	cancel()
	if err := ctxObj.Close(); err != nil {
		glog.Warningf("dadp-wrapper: close: %v", err)
	}
}
