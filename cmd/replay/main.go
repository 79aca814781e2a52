package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"linecook.ai/internal/persistence/indexdb"
	persistlog "linecook.ai/internal/persistence/log"
	"linecook.ai/internal/planner/record"
)

func main() {
	var (
		runDir   = flag.String("run", "", "trace directory of one run (contains trace/ and attempts/)")
		agent    = flag.Int("agent", 0, "only show events of this agent (optional)")
		orderID  = flag.Int("order", 0, "only show events of this order (optional)")
		fromTick = flag.Int("from_tick", 0, "first tick to show (inclusive, optional)")
		toTick   = flag.Int("to_tick", 0, "last tick to show (inclusive, optional)")
		quiet    = flag.Bool("q", false, "summary only")
		dbPath   = flag.String("db", "", "backfill the run's attempts into this outcome index (optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	tr, err := loadRun(*runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load run:", err)
		os.Exit(1)
	}

	if !*quiet {
		f := eventFilter{Agent: *agent, Order: *orderID, From: *fromTick, To: *toTick}
		printEvents(os.Stdout, tr.Events, f)
	}
	fmt.Println(summarize(tr.Attempts))

	if *dbPath != "" {
		n, err := backfill(*dbPath, tr.Attempts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "backfill:", err)
			os.Exit(1)
		}
		fmt.Printf("backfill ok: attempts=%d db=%s\n", n, *dbPath)
	}
}

type runTrace struct {
	Events   []record.Event
	Attempts []record.Attempt
}

// loadRun reads every trace and attempts file of a run, oldest first.
func loadRun(dir string) (runTrace, error) {
	var tr runTrace
	eventFiles, err := listTraceFiles(filepath.Join(dir, "trace"), "trace-")
	if err != nil && !os.IsNotExist(err) {
		return tr, err
	}
	attemptFiles, err := listTraceFiles(filepath.Join(dir, "attempts"), "attempts-")
	if err != nil && !os.IsNotExist(err) {
		return tr, err
	}
	if len(eventFiles) == 0 && len(attemptFiles) == 0 {
		return tr, fmt.Errorf("no trace files in %s", dir)
	}

	for _, path := range eventFiles {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var e record.Event
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			tr.Events = append(tr.Events, e)
			return nil
		})
		if err != nil {
			return tr, err
		}
	}
	for _, path := range attemptFiles {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var a record.Attempt
			if err := json.Unmarshal(line, &a); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			tr.Attempts = append(tr.Attempts, a)
			return nil
		})
		if err != nil {
			return tr, err
		}
	}
	return tr, nil
}

func listTraceFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type eventFilter struct {
	Agent, Order int
	From, To     int
}

func (f eventFilter) keep(e record.Event) bool {
	if f.Agent != 0 && e.Agent != f.Agent {
		return false
	}
	if f.Order != 0 && e.OrderID != f.Order {
		return false
	}
	if e.Tick < f.From {
		return false
	}
	return f.To == 0 || e.Tick <= f.To
}

func printEvents(w io.Writer, events []record.Event, f eventFilter) {
	for _, e := range events {
		if !f.keep(e) {
			continue
		}
		line := fmt.Sprintf("tick=%d agent=%d %s", e.Tick, e.Agent, e.Kind)
		if e.OrderID != 0 {
			line += fmt.Sprintf(" order=%d", e.OrderID)
		}
		if e.Command != "" {
			line += " cmd=" + e.Command
		}
		if e.State != "" {
			line += " state=" + e.State
		}
		if e.Code != "" {
			line += " code=" + e.Code
		}
		if e.Detail != "" {
			line += " " + e.Detail
		}
		fmt.Fprintln(w, line)
	}
}

type attemptSummary struct {
	Attempts  int
	Completed int
	Aborted   int
	Reward    int
	Cost      int
	Ratio     float64 // mean actual/estimated ticks over completed attempts
	ByCode    map[string]int
}

func summarize(attempts []record.Attempt) attemptSummary {
	s := attemptSummary{Attempts: len(attempts), ByCode: map[string]int{}}
	var ratioSum float64
	var ratioN int
	for _, a := range attempts {
		if a.Outcome == record.OutcomeCompleted {
			s.Completed++
			s.Reward += a.Reward
			s.Cost += a.Cost
			if a.Estimated > 0 {
				ratioSum += float64(a.Ticks()) / float64(a.Estimated)
				ratioN++
			}
			continue
		}
		s.Aborted++
		code := a.Code
		if code == "" {
			code = a.Outcome
		}
		s.ByCode[code]++
	}
	if ratioN > 0 {
		s.Ratio = ratioSum / float64(ratioN)
	}
	return s
}

func (s attemptSummary) String() string {
	codes := make([]string, 0, len(s.ByCode))
	for c := range s.ByCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, fmt.Sprintf("%s:%d", c, s.ByCode[c]))
	}
	return fmt.Sprintf("attempts=%d completed=%d aborted=%d reward=%d cost=%d actual/estimated=%.3f aborts=[%s]",
		s.Attempts, s.Completed, s.Aborted, s.Reward, s.Cost, s.Ratio, strings.Join(parts, " "))
}

// backfill writes attempts into the SQLite outcome index. Rows already
// present are replaced.
func backfill(path string, attempts []record.Attempt) (int, error) {
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return 0, err
	}
	for _, a := range attempts {
		idx.RecordAttempt(a)
	}
	// Calibration runs behind every queued write, so it doubles as a flush.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := idx.Calibration(ctx, ""); err != nil {
		_ = idx.Close()
		return 0, err
	}
	if err := idx.Close(); err != nil {
		return 0, err
	}
	if st := idx.Stats(); st.DropAttemptTotal > 0 {
		return len(attempts) - int(st.DropAttemptTotal), fmt.Errorf("%d attempts dropped", st.DropAttemptTotal)
	}
	return len(attempts), nil
}
