// Command bobcatsim loads a scenario file and runs it to completion,
// writing the result artifacts spec.md §6 documents.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/ersantana/bobcatsim/internal/engine"
	"github.com/ersantana/bobcatsim/internal/eventbus"
	"github.com/ersantana/bobcatsim/internal/live"
	"github.com/ersantana/bobcatsim/internal/output"
	"github.com/ersantana/bobcatsim/internal/scenario"
	"github.com/ersantana/bobcatsim/internal/simstats"
	"github.com/ersantana/bobcatsim/internal/simtime"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("bobcatsim", pflag.ContinueOnError)

	model := flags.String("model", "", "path to the scenario YAML file")
	network := flags.String("network", "network", "network name, used in the result directory and artifacts")
	seed := flags.Int64("seed", 1, "seed for the engine's random stream")
	endSimTime := flags.Float64("end-simtime", 3600, "simtime (seconds) at which the run stops")
	epochStr := flags.String("epoch", "", "RFC3339 scenario epoch; defaults to now")
	writeToTerminal := flags.Bool("write-to-terminal", false, "print engine warnings and every bus event to stderr as they happen")
	nodeStats := flags.Bool("node-stats", true, "write node_stats.txt / node_stats_total.txt")
	nodeStatsHistory := flags.Int("node-stats-history", 0, "capacity of the message-history ring shared by all nodes (0 = unbounded)")
	initialNodeStates := flags.Bool("initial-node-states", false, "write each node's state before the run starts")
	finalNodeStates := flags.Bool("final-node-states", true, "write sim_end_state.txt after the run completes")
	realTime := flags.Bool("real-time", false, "pace the run against wall-clock time")
	realTimeStrict := flags.Bool("real-time-strict", false, "abort the run on a real-time overrun instead of warning")
	realTimeFactor := flags.Float64("real-time-factor", 1.0, "simtime seconds per wall-clock second under --real-time")
	promiseThreads := flags.Int("promise-threads", 0, "worker-pool size for offloaded node computations (0 disables)")
	resultRoot := flags.String("results-dir", ".", "root directory results are written under")
	listen := flags.String("listen", "", "address to serve the live-monitor websocket feed on (empty disables it)")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *model == "" {
		fmt.Fprintln(os.Stderr, "bobcatsim: --model is required")
		return 2
	}

	epoch := time.Now().UTC()
	if *epochStr != "" {
		parsed, err := time.Parse(time.RFC3339, *epochStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bobcatsim: invalid --epoch: %v\n", err)
			return 2
		}
		epoch = parsed
	}

	data, err := os.ReadFile(*model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: reading model: %v\n", err)
		return 1
	}

	graph, err := scenario.Load(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: loading scenario: %v\n", err)
		return 1
	}

	cfg := engine.Config{
		EndSimTime: *endSimTime,
		Seed:       *seed,
		Epoch:      epoch,
		Workers:    *promiseThreads,
	}
	if *realTime {
		cfg.RealTime = simtime.RealTimeConfig{
			Enabled: true,
			Strict:  *realTimeStrict,
			Factor:  *realTimeFactor,
		}
	}

	eng := engine.New(cfg, func(format string, a ...interface{}) {
		if *writeToTerminal {
			fmt.Fprintf(os.Stderr, format+"\n", a...)
		}
	})
	defer eng.Close()

	if err := scenario.Wire(graph, eng, eng.RNG()); err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: wiring scenario: %v\n", err)
		return 1
	}

	dir := output.ResultDir(*resultRoot, *network, epoch)
	writer, err := output.Open(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: opening result directory: %v\n", err)
		return 1
	}
	defer writer.Close()

	if err := writer.WriteNetworkJSON(graph); err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: writing loaded_network.json: %v\n", err)
	}
	if err := writer.WriteNodeConfig(nodeConfigLines(graph)); err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: writing loaded_node_config.txt: %v\n", err)
	}

	if *writeToTerminal {
		eng.EventBus().Subscribe(func(e eventbus.Event) {
			fmt.Fprintf(os.Stderr, "[%g] %s node=%s\n", e.SimTime, e.Type, e.Node)
		})
	}

	history := simstats.NewHistory(*nodeStatsHistory)
	eng.EventBus().Subscribe(func(e eventbus.Event) {
		if e.Type != eventbus.TypeDispatch {
			return
		}
		messageID, _ := e.Data["messageId"].(string)
		waitTime, _ := e.Data["waitTime"].(float64)
		processingTime, _ := e.Data["processingTime"].(float64)
		dataSize, _ := e.Data["dataSize"].(float64)
		history.Record(simstats.HistoryEntry{
			SimTime:        e.SimTime,
			Node:           e.Node,
			DataID:         messageID,
			DataSize:       dataSize,
			WaitTime:       waitTime,
			ProcessingTime: processingTime,
		})
	})

	eng.EventBus().Subscribe(func(e eventbus.Event) {
		if e.Type != eventbus.TypeCZML {
			return
		}
		document, _ := e.Data["document"].(string)
		if err := writer.WriteCZML(*network, e.Node, document); err != nil {
			fmt.Fprintf(os.Stderr, "bobcatsim: writing czml for %s: %v\n", e.Node, err)
		}
	})

	if *listen != "" {
		hub := live.NewHub()
		go hub.Run()
		eng.EventBus().Subscribe(hub.BroadcastEvent)

		server := &http.Server{Addr: *listen, Handler: live.NewHandler(hub)}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "bobcatsim: live-monitor server: %v\n", err)
			}
		}()
		defer server.Close()
	}

	if *initialNodeStates {
		if err := writer.WriteInitialState(nodeStateLines(eng)); err != nil {
			fmt.Fprintf(os.Stderr, "bobcatsim: writing initial node states: %v\n", err)
		}
	}

	runErr := eng.Run()

	if *nodeStats {
		if err := writer.WriteNodeStats(eng.Stats()); err != nil {
			fmt.Fprintf(os.Stderr, "bobcatsim: writing node stats: %v\n", err)
		}
	}
	if err := writer.WriteMessageHistory(history); err != nil {
		fmt.Fprintf(os.Stderr, "bobcatsim: writing message history: %v\n", err)
	}

	if *finalNodeStates {
		if err := writer.WriteEndState(nodeStateLines(eng)); err != nil {
			fmt.Fprintf(os.Stderr, "bobcatsim: writing final node states: %v\n", err)
		}
	}

	if runErr != nil {
		writer.LogLine(fmt.Sprintf("run aborted: %v", runErr))
		var tooSlow *simtime.ErrTooSlow
		if asErrTooSlow(runErr, &tooSlow) {
			return 3
		}
		return 1
	}

	return 0
}

func nodeStateLines(eng *engine.Engine) []string {
	lines := make([]string, 0, len(eng.NodeNames()))
	for _, name := range eng.NodeNames() {
		node := eng.Node(name)
		state := "idle"
		if !node.IsIdle() {
			state = fmt.Sprintf("busy-until-%g", node.BusyUntil())
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\tqueue=%d", name, state, node.QueueLen()))
	}
	return lines
}

func nodeConfigLines(graph *scenario.Graph) []string {
	lines := make([]string, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		lines = append(lines, fmt.Sprintf("%s\ttype=%s\toptions=%v\tedges=%d", n.Name, n.Type, n.Options, len(n.Edges)))
	}
	return lines
}

func asErrTooSlow(err error, target **simtime.ErrTooSlow) bool {
	for err != nil {
		if te, ok := err.(*simtime.ErrTooSlow); ok {
			*target = te
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
