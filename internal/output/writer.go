// Package output writes a completed run's result directory: the
// per-message log, per-node statistics, the loaded network/config
// snapshots, message history, final node states, and propagator CZML
// visualization documents, per spec.md §6.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ersantana/bobcatsim/internal/simstats"
)

// ResultDir computes the result directory name for a network run
// starting at startTime: "./Results/<network><iso>" with colons and
// dots replaced so the path is filesystem-safe on every platform.
func ResultDir(root, network string, startTime time.Time) string {
	iso := startTime.Format(time.RFC3339Nano)
	iso = strings.ReplaceAll(iso, ":", "-")
	iso = strings.ReplaceAll(iso, ".", "_")
	return filepath.Join(root, "Results", network+iso)
}

// Writer writes a run's artifacts into a result directory. Each Write*
// method creates its file when called; node_log.txt and simulation.log
// are buffered and flushed on Close.
type Writer struct {
	dir string

	nodeLog *os.File
	nodeLogW *bufio.Writer

	simLog *os.File
	simLogW *bufio.Writer
}

// Open creates the result directory and its append-only logs.
func Open(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create result dir: %w", err)
	}

	nodeLog, err := os.Create(filepath.Join(dir, "node_log.txt"))
	if err != nil {
		return nil, fmt.Errorf("output: create node_log.txt: %w", err)
	}
	simLog, err := os.Create(filepath.Join(dir, "simulation.log"))
	if err != nil {
		nodeLog.Close()
		return nil, fmt.Errorf("output: create simulation.log: %w", err)
	}

	w := &Writer{
		dir:      dir,
		nodeLog:  nodeLog,
		nodeLogW: bufio.NewWriter(nodeLog),
		simLog:   simLog,
		simLogW:  bufio.NewWriter(simLog),
	}
	w.nodeLogW.WriteString("SimTime\tNode\tData_ID\tData_Size\tWait_time\tProcessing_time\tDelay_to_Next\n")
	return w, nil
}

// LogNodeRow appends one tab-separated node_log.txt row.
func (w *Writer) LogNodeRow(simTime float64, node, dataID string, dataSize, waitTime, processingTime, delayToNext float64) {
	fmt.Fprintf(w.nodeLogW, "%g\t%s\t%s\t%g\t%g\t%g\t%g\n",
		simTime, node, dataID, dataSize, waitTime, processingTime, delayToNext)
}

// LogLine appends one free-text line to simulation.log, e.g. for
// dispatch warnings and real-time pacing notices.
func (w *Writer) LogLine(line string) {
	fmt.Fprintln(w.simLogW, line)
}

// WriteNetworkJSON writes loaded_network.json: the resolved node/edge
// graph, for diffing what the engine actually ran against the scenario
// source.
func (w *Writer) WriteNetworkJSON(graph interface{}) error {
	f, err := os.Create(filepath.Join(w.dir, "loaded_network.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(graph)
}

// WriteNodeConfig writes loaded_node_config.txt: one line per node
// describing its resolved type and options, for audit purposes.
func (w *Writer) WriteNodeConfig(lines []string) error {
	f, err := os.Create(filepath.Join(w.dir, "loaded_node_config.txt"))
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	for _, l := range lines {
		fmt.Fprintln(bw, l)
	}
	return bw.Flush()
}

// WriteCZML writes czml/<network>/<node>.czml, a visualization document
// a propagator node emitted for its configured sampling window.
func (w *Writer) WriteCZML(network, node, document string) error {
	dir := filepath.Join(w.dir, "czml", network)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, node+".czml"), []byte(document), 0o644)
}

// WriteNodeStats writes node_stats.txt (per-node) and
// node_stats_total.txt (aggregate across all nodes).
func (w *Writer) WriteNodeStats(registry *simstats.Registry) error {
	f, err := os.Create(filepath.Join(w.dir, "node_stats.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	fmt.Fprintln(bw, simstats.Header)

	var totalIngress, totalDispatched, totalDropped uint64
	var totalWait, totalProcessing float64
	for _, s := range registry.All() {
		fmt.Fprintln(bw, s.Line())
		totalIngress += s.Ingress
		totalDispatched += s.Dispatched
		totalDropped += s.Dropped
		totalWait += s.TotalWaitTime
		totalProcessing += s.TotalProcessingTime
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	totalsFile, err := os.Create(filepath.Join(w.dir, "node_stats_total.txt"))
	if err != nil {
		return err
	}
	defer totalsFile.Close()

	avgWait, avgProcessing := 0.0, 0.0
	if totalDispatched > 0 {
		avgWait = totalWait / float64(totalDispatched)
		avgProcessing = totalProcessing / float64(totalDispatched)
	}
	fmt.Fprintf(totalsFile, "Ingress\t%d\nDispatched\t%d\nDropped\t%d\nAvgWaitTime\t%g\nAvgProcessingTime\t%g\n",
		totalIngress, totalDispatched, totalDropped, avgWait, avgProcessing)
	return nil
}

// WriteMessageHistory writes msg_history.txt (tab-separated) and
// msg_history.csv (comma-separated) from a bounded history ring.
func (w *Writer) WriteMessageHistory(history *simstats.History) error {
	if err := w.writeHistoryDelimited("msg_history.txt", history, "\t"); err != nil {
		return err
	}
	return w.writeHistoryDelimited("msg_history.csv", history, ",")
}

func (w *Writer) writeHistoryDelimited(name string, history *simstats.History, sep string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	header := []string{"SimTime", "Node", "DataID", "DataSize", "WaitTime", "ProcessingTime", "DelayToNext"}
	fmt.Fprintln(bw, strings.Join(header, sep))
	for _, e := range history.Entries() {
		row := []string{
			fmt.Sprintf("%g", e.SimTime), e.Node, e.DataID,
			fmt.Sprintf("%g", e.DataSize), fmt.Sprintf("%g", e.WaitTime),
			fmt.Sprintf("%g", e.ProcessingTime), fmt.Sprintf("%g", e.DelayToNext),
		}
		fmt.Fprintln(bw, strings.Join(row, sep))
	}
	return bw.Flush()
}

// WriteEndState writes sim_end_state.txt: each node's final reservation
// state, for post-run inspection.
func (w *Writer) WriteEndState(lines []string) error {
	return w.writeStateFile("sim_end_state.txt", lines)
}

// WriteInitialState writes sim_initial_state.txt: each node's
// reservation state before the run starts.
func (w *Writer) WriteInitialState(lines []string) error {
	return w.writeStateFile("sim_initial_state.txt", lines)
}

func (w *Writer) writeStateFile(name string, lines []string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	for _, l := range lines {
		fmt.Fprintln(bw, l)
	}
	return bw.Flush()
}

// Close flushes and closes the append-only logs.
func (w *Writer) Close() error {
	w.nodeLogW.Flush()
	w.simLogW.Flush()
	if err := w.nodeLog.Close(); err != nil {
		return err
	}
	return w.simLog.Close()
}
