package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"linecook.ai/internal/game"
	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/persistence/indexdb"
	persistlog "linecook.ai/internal/persistence/log"
	"linecook.ai/internal/planner/executor"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/planner/tuning"
	"linecook.ai/internal/sim"
)

type matchConfig struct {
	Ticks      int
	StartMoney int
	CookTicks  int
	Catalog    *catalog.Catalog
	Tuning     tuning.Tuning
	TraceDir   string
	Index      indexdb.Backend
	Logger     *log.Logger
}

type matchResult struct {
	Map       string
	RunID     string
	Agents    int
	Ticks     int
	Money     int
	Fulfilled int
	Expired   int
	Attempts  int
	Completed int
	Aborted   int
}

func (r matchResult) String() string {
	return fmt.Sprintf("[MATCH] map=%s run=%s agents=%d ticks=%d money=%d fulfilled=%d expired=%d attempts=%d completed=%d aborted=%d",
		r.Map, r.RunID, r.Agents, r.Ticks, r.Money, r.Fulfilled, r.Expired, r.Attempts, r.Completed, r.Aborted)
}

func main() {
	var (
		mapPath   = flag.String("map", "", "map file (.txt); overrides -maps")
		mapsDir   = flag.String("maps", "./maps", "directory of map files; every .txt is played")
		configDir = flag.String("configs", "./configs", "config directory")
		ticks     = flag.Int("ticks", 0, "match length in ticks (default: match_ticks from planner.yaml)")
		money     = flag.Int("money", 150, "starting money")
		cookTicks = flag.Int("cook_ticks", 20, "ticks per cook stage")
		traceDir  = flag.String("trace", "", "directory for JSONL+zstd decision traces (empty to disable)")
		dbPath    = flag.String("db", "./data/index/outcomes.sqlite", "outcome index path (empty to disable)")
		backend   = flag.String("index", "", "outcome index backend: sqlite, ingest, none (default: $LINECOOK_INDEX_BACKEND or sqlite)")
		verbose   = flag.Bool("v", false, "log planner decisions to stdout")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[match] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalog.Load(filepath.Join(*configDir, "foods.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load catalog: %v", err)
		}
		logger.Printf("foods.yaml not found; using built-in catalog")
		cat = catalog.Defaults()
	}
	tune, err := tuning.Load(filepath.Join(*configDir, "planner.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("planner.yaml not found; using defaults")
		tune = tuning.Defaults()
	}

	maps, err := listMaps(*mapPath, *mapsDir)
	if err != nil {
		logger.Fatalf("maps: %v", err)
	}

	idx, err := indexdb.OpenBackend(indexdb.BackendConfig{Kind: *backend, DBPath: *dbPath, RunID: uuid.NewString(), Logger: logger})
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if sq, ok := idx.(*indexdb.SQLiteIndex); ok {
			if err := sq.UpsertCatalogs(context.Background(), cat, tune); err != nil {
				logger.Printf("index backend: upsert catalogs: %v", err)
			}
		}
	}

	planLog := log.New(io.Discard, "", 0)
	if *verbose {
		planLog = log.New(os.Stdout, "[planner] ", log.Lmicroseconds)
	}
	cfg := matchConfig{
		Ticks:      *ticks,
		StartMoney: *money,
		CookTicks:  *cookTicks,
		Catalog:    cat,
		Tuning:     tune,
		TraceDir:   *traceDir,
		Index:      idx,
		Logger:     planLog,
	}

	var total matchResult
	for _, p := range maps {
		res, err := playMatch(p, cfg)
		if err != nil {
			logger.Fatalf("map=%s: %v", p, err)
		}
		fmt.Println(res)
		total.Money += res.Money
		total.Fulfilled += res.Fulfilled
		total.Expired += res.Expired
		total.Attempts += res.Attempts
		total.Completed += res.Completed
	}
	if len(maps) > 1 {
		fmt.Printf("[SUMMARY] maps=%d money=%d fulfilled=%d expired=%d attempts=%d completed=%d\n",
			len(maps), total.Money, total.Fulfilled, total.Expired, total.Attempts, total.Completed)
	}

	if sq, ok := idx.(*indexdb.SQLiteIndex); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cal, err := sq.Calibration(ctx, ""); err == nil && cal.Completed > 0 {
			logger.Printf("calibration completed=%d aborted=%d actual/estimated=%.3f", cal.Completed, cal.Aborted, cal.Ratio)
		}
	}
}

// listMaps returns the single map when given, else every .txt in dir, sorted.
func listMaps(single, dir string) ([]string, error) {
	if strings.TrimSpace(single) != "" {
		return []string{single}, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no .txt maps in %s", dir)
	}
	sort.Strings(out)
	return out, nil
}

// playMatch runs one team of planners on a fresh kitchen until the match ends.
func playMatch(path string, cfg matchConfig) (matchResult, error) {
	layout, err := game.LoadMap(path)
	if err != nil {
		return matchResult{}, err
	}
	ticks := cfg.Ticks
	if ticks <= 0 {
		ticks = cfg.Tuning.MatchTicks
	}
	tune := cfg.Tuning
	tune.MatchTicks = ticks

	k, err := sim.NewKitchen(sim.KitchenConfig{
		Layout:     layout,
		Catalog:    cfg.Catalog,
		StartMoney: cfg.StartMoney,
		CookTicks:  cfg.CookTicks,
		MatchTicks: ticks,
	})
	if err != nil {
		return matchResult{}, err
	}

	runID := uuid.NewString()
	counts := &record.Memory{}
	recs := record.Multi{counts}
	var trace *persistlog.TraceLogger
	if cfg.TraceDir != "" {
		trace = persistlog.NewTraceLogger(filepath.Join(cfg.TraceDir, runID))
		recs = append(recs, trace)
	}
	if cfg.Index != nil {
		recs = append(recs, cfg.Index)
	}

	bot := executor.NewBot(executor.Config{
		Catalog:  cfg.Catalog,
		Tuning:   tune,
		Logger:   cfg.Logger,
		Recorder: recs,
		RunID:    runID,
	})
	started := time.Now()
	for !k.Over() {
		bot.Tick(k)
		k.Advance()
	}

	if trace != nil {
		if err := trace.Close(); err != nil {
			return matchResult{}, fmt.Errorf("trace: %w", err)
		}
	}

	st := k.Stats()
	res := matchResult{
		Map:       filepath.Base(path),
		RunID:     runID,
		Agents:    len(k.TeamAgents()),
		Ticks:     k.Tick(),
		Money:     k.Money(),
		Fulfilled: len(st.Fulfilled),
		Expired:   len(st.Expired),
		Attempts:  len(counts.Attempts),
	}
	for _, a := range counts.Attempts {
		if a.Outcome == record.OutcomeCompleted {
			res.Completed++
		} else {
			res.Aborted++
		}
	}
	if cfg.Index != nil {
		cfg.Index.RecordRun(indexdb.Run{
			ID:        runID,
			Map:       res.Map,
			Agents:    res.Agents,
			Ticks:     res.Ticks,
			Money:     res.Money,
			Fulfilled: res.Fulfilled,
			Expired:   res.Expired,
			StartedAt: started,
		})
	}
	return res, nil
}
