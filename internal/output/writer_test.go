package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ersantana/bobcatsim/internal/simstats"
)

func TestResultDirIsFilesystemSafe(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dir := ResultDir("/tmp/base", "mynet", start)
	if strings.Contains(filepath.Base(dir), ":") {
		t.Fatalf("expected no colons in result dir, got %q", dir)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "Results", "run1")

	w, err := Open(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	w.LogNodeRow(1.5, "nodeA", "msg-1", 10, 0.1, 0.2, 0.3)
	w.LogLine("dispatch warning: nodeA -> missing")

	registry := simstats.NewRegistry()
	registry.For("nodeA").RecordArrival(1)
	registry.For("nodeA").RecordDispatch(0.1, 0.2)
	if err := w.WriteNodeStats(registry); err != nil {
		t.Fatalf("write node stats: %v", err)
	}

	history := simstats.NewHistory(0)
	history.Record(simstats.HistoryEntry{SimTime: 1.5, Node: "nodeA", DataID: "msg-1"})
	if err := w.WriteMessageHistory(history); err != nil {
		t.Fatalf("write message history: %v", err)
	}

	if err := w.WriteEndState([]string{"nodeA\tidle"}); err != nil {
		t.Fatalf("write end state: %v", err)
	}

	if err := w.WriteCZML("mynet", "sat-1", "[]"); err != nil {
		t.Fatalf("write czml: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	for _, name := range []string{"node_log.txt", "simulation.log", "node_stats.txt", "node_stats_total.txt", "msg_history.txt", "msg_history.csv", "sim_end_state.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "czml", "mynet", "sat-1.czml")); err != nil {
		t.Fatalf("expected czml/mynet/sat-1.czml to exist: %v", err)
	}
}
