package main

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"linecook.ai/internal/persistence/indexdb"
	persistlog "linecook.ai/internal/persistence/log"
	"linecook.ai/internal/planner/record"
)

func writeRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tl := persistlog.NewTraceLogger(dir)
	tl.RecordEvent(record.Event{RunID: "r", Tick: 0, Agent: 1, Kind: record.EventSelect, OrderID: 1, State: "BUY_PLATE"})
	tl.RecordEvent(record.Event{RunID: "r", Tick: 3, Agent: 1, Kind: record.EventCommand, OrderID: 1, Command: "BUY"})
	tl.RecordEvent(record.Event{RunID: "r", Tick: 9, Agent: 2, Kind: record.EventAbort, OrderID: 2, Code: "E_STUCK"})
	tl.RecordAttempt(record.Attempt{RunID: "r", OrderID: 1, Agent: 1, StartedTick: 0, EndedTick: 30, Estimated: 20, Outcome: record.OutcomeCompleted, Reward: 30, Cost: 12})
	tl.RecordAttempt(record.Attempt{RunID: "r", OrderID: 2, Agent: 2, StartedTick: 0, EndedTick: 9, Estimated: 40, Outcome: record.OutcomeStuck, Code: "E_STUCK"})
	tl.RecordAttempt(record.Attempt{RunID: "r", OrderID: 3, Agent: 1, StartedTick: 30, EndedTick: 50, Estimated: 40, Outcome: record.OutcomeExpired})
	if err := tl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tl.Err(); err != nil {
		t.Fatalf("trace write: %v", err)
	}
	return dir
}

func TestLoadRunAndSummarize(t *testing.T) {
	tr, err := loadRun(writeRun(t))
	if err != nil {
		t.Fatalf("loadRun: %v", err)
	}
	if len(tr.Events) != 3 || len(tr.Attempts) != 3 {
		t.Fatalf("events=%d attempts=%d", len(tr.Events), len(tr.Attempts))
	}

	s := summarize(tr.Attempts)
	if s.Completed != 1 || s.Aborted != 2 || s.Reward != 30 || s.Cost != 12 {
		t.Fatalf("summary=%+v", s)
	}
	if math.Abs(s.Ratio-1.5) > 1e-9 {
		t.Fatalf("ratio=%v want 1.5", s.Ratio)
	}
	if s.ByCode["E_STUCK"] != 1 || s.ByCode[record.OutcomeExpired] != 1 {
		t.Fatalf("byCode=%v", s.ByCode)
	}
	if !strings.Contains(s.String(), "aborts=[E_STUCK:1 expired:1]") {
		t.Fatalf("line=%q", s.String())
	}
}

func TestPrintEventsFilters(t *testing.T) {
	tr, err := loadRun(writeRun(t))
	if err != nil {
		t.Fatalf("loadRun: %v", err)
	}
	var buf bytes.Buffer
	printEvents(&buf, tr.Events, eventFilter{Agent: 1, From: 1})
	out := strings.TrimSpace(buf.String())
	if out != "tick=3 agent=1 command order=1 cmd=BUY" {
		t.Fatalf("filtered output=%q", out)
	}
}

func TestLoadRun_EmptyDir(t *testing.T) {
	if _, err := loadRun(t.TempDir()); err == nil {
		t.Fatalf("expected error for a directory without traces")
	}
}

func TestBackfill(t *testing.T) {
	tr, err := loadRun(writeRun(t))
	if err != nil {
		t.Fatalf("loadRun: %v", err)
	}
	path := filepath.Join(t.TempDir(), "idx", "outcomes.sqlite")
	n, err := backfill(path, tr.Attempts)
	if err != nil || n != 3 {
		t.Fatalf("backfill n=%d err=%v", n, err)
	}
	// Idempotent: the same attempts replace their rows.
	if _, err := backfill(path, tr.Attempts); err != nil {
		t.Fatalf("second backfill: %v", err)
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	cal, err := idx.Calibration(context.Background(), "r")
	if err != nil {
		t.Fatalf("Calibration: %v", err)
	}
	if cal.Completed != 1 || cal.Aborted != 2 {
		t.Fatalf("calibration=%+v", cal)
	}
}
