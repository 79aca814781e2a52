package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"linecook.ai/internal/persistence/indexdb"
	"linecook.ai/internal/planner/record"
)

const defaultDB = "./data/index/outcomes.sqlite"

func openDB(path string) *sql.DB {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", defaultDB, "outcome index path")
	limit := fs.Int("limit", 20, "result limit")
	mapName := fs.String("map", "", "map filter (optional)")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()
	if err := listRuns(os.Stdout, db, *mapName, *limit); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func attemptsCmd(args []string) {
	fs := flag.NewFlagSet("attempts", flag.ExitOnError)
	dbPath := fs.String("db", defaultDB, "outcome index path")
	runID := fs.String("run", "", "run id (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	db := openDB(*dbPath)
	defer db.Close()
	if err := listAttempts(os.Stdout, db, *runID); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func calibrationCmd(args []string) {
	fs := flag.NewFlagSet("calibration", flag.ExitOnError)
	dbPath := fs.String("db", defaultDB, "outcome index path")
	runID := fs.String("run", "", "restrict to one run (optional)")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cal, err := idx.Calibration(ctx, *runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "calibration:", err)
		os.Exit(1)
	}
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(cal)
		return
	}
	fmt.Printf("completed=%d aborted=%d actual/estimated=%.3f\n", cal.Completed, cal.Aborted, cal.Ratio)
	codes := make([]string, 0, len(cal.ByCode))
	for code := range cal.ByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		label := code
		if label == "" {
			label = "(none)"
		}
		fmt.Printf("  %s %d\n", label, cal.ByCode[code])
	}
}

func listRuns(w io.Writer, db *sql.DB, mapName string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT run_id,map,agents,ticks,money,fulfilled,expired,started_at FROM runs
		WHERE (? = '' OR map = ?) ORDER BY started_at DESC LIMIT ?`, mapName, mapName, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, m, at                                   string
			agents, ticks, money, fulfilled, expiredCnt int
		)
		if err := rows.Scan(&id, &m, &agents, &ticks, &money, &fulfilled, &expiredCnt, &at); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s map=%s agents=%d ticks=%d money=%d fulfilled=%d expired=%d started=%s\n",
			id, m, agents, ticks, money, fulfilled, expiredCnt, at)
	}
	return rows.Err()
}

func listAttempts(w io.Writer, db *sql.DB, runID string) error {
	rows, err := db.Query(`SELECT order_id,agent_id,started_tick,ended_tick,estimated_ticks,outcome,COALESCE(code,''),reward,cost
		FROM attempts WHERE run_id = ? ORDER BY started_tick, agent_id, order_id`, runID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			order, agent, start, end, est, reward, cost int
			outcome, code                               string
		)
		if err := rows.Scan(&order, &agent, &start, &end, &est, &outcome, &code, &reward, &cost); err != nil {
			return err
		}
		line := fmt.Sprintf("order=%d agent=%d ticks=%d..%d (%d/%d est) %s", order, agent, start, end, end-start, est, outcome)
		if code != "" {
			line += " code=" + code
		}
		if outcome == record.OutcomeCompleted {
			line += fmt.Sprintf(" reward=%d cost=%d", reward, cost)
		}
		fmt.Fprintln(w, line)
	}
	return rows.Err()
}
