// Package tempo implements a time-driven dataflow runtime: a graph of
// nodes exchanging time-series values, evaluated deterministically by a
// logical engine clock.
//
// A node reads zero or more time-series inputs and writes zero or more
// time-series outputs; an edge wires one node's output to another's
// input. The engine advances its clock in discrete steps ("ticks"),
// evaluating every node whose inputs changed — or whose requested wakeup
// time has arrived — in topological rank order, so no node ever observes
// a half-updated upstream value.
//
// # Architecture Overview
//
// The runtime is split across a handful of packages with a strict
// dependency direction (tsvalue <- graph <- engine):
//
//   - tstime: the logical clock and its EngineTime unit
//   - tsvalue: typed time-series outputs (scalar cells, TSB, TSD, TSL,
//     BUFF, reference values) and the type-erased interfaces the engine
//     uses to drive them without importing generic type parameters
//   - graph: the immutable, topologically ranked node/edge representation
//     a wiring layer builds and hands to the engine
//   - engine: the live node instances, scheduler, and evaluator loop that
//     actually run a built graph
//   - graphspec: a YAML-based graph loader, the minimal wiring front end
//   - observer: Prometheus/OpenTelemetry instrumentation of a running
//     engine
//   - adapters: push/pull sources and sinks bridging external systems
//     (filesystem, WebSocket, MQTT, HTTP scraping, SQLite) into the graph
//   - cmd: command-line tools (graphrun, graphbench)
//
// # Determinism
//
// Two runs of the same graph fed the same inputs at the same logical
// times produce the same sequence of node evaluations and output values,
// regardless of wall-clock timing — the property that makes SIMULATION
// mode a faithful, fast-forwarded stand-in for REAL_TIME mode.
//
// # Basic Usage
//
//	g, err := graphspec.LoadFile("pipeline.yaml", registry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := engine.Build(g, tstime.Simulation, time.Now(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.Run(tstime.MaxTime); err != nil {
//	    log.Fatal(err)
//	}
package tempo
