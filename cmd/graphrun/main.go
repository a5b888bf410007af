package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sbl8/tempo/engine"
	"github.com/sbl8/tempo/graphspec"
	"github.com/sbl8/tempo/observer"
	"github.com/sbl8/tempo/tstime"
)

func main() {
	var (
		graphPath   = flag.String("graph", "", "Path to a graph YAML document")
		realTime    = flag.Bool("realtime", false, "Run in REAL_TIME mode instead of SIMULATION")
		duration    = flag.Duration("duration", 10*time.Second, "How long to run before stopping")
		metricsAddr = flag.String("metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9090)")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		version     = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Println("graphrun - tempo dataflow runtime v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *graphPath == "" {
		fmt.Fprintln(os.Stderr, "usage: graphrun -graph <path.yaml> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	reg := graphspec.NewRegistry()
	registerBuiltinKinds(reg)

	g, err := graphspec.LoadFile(*graphPath, reg)
	if err != nil {
		logger.Error("failed to load graph", "error", err)
		os.Exit(1)
	}

	var obs engine.Observer
	if *metricsAddr != "" {
		promReg := prometheus.NewRegistry()
		metrics := observer.NewMetrics(promReg)
		collector := observer.NewCollector(metrics, nil)
		obs = collector

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	mode := tstime.Simulation
	if *realTime {
		mode = tstime.RealTime
	}

	eng, err := engine.Build(g, mode, time.Now(), obs)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	logger.Info("graph started", "name", g.Name, "nodes", g.NodeCount(), "mode", mode.String())

	stopAt := tstime.FromTime(time.Now().Add(*duration))
	if err := eng.Run(stopAt); err != nil {
		logger.Error("run failed", "error", err)
		eng.Stop()
		os.Exit(1)
	}

	if err := eng.Stop(); err != nil {
		logger.Error("failed to stop engine cleanly", "error", err)
		os.Exit(1)
	}
	logger.Info("graph run complete")
}
