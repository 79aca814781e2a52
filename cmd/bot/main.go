package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/persistence/indexdb"
	persistlog "linecook.ai/internal/persistence/log"
	"linecook.ai/internal/planner/executor"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/planner/tuning"
	"linecook.ai/internal/transport/ws"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "agent name")
		configDir = flag.String("configs", "./configs", "config directory")
		traceDir  = flag.String("trace", "", "directory for JSONL+zstd decision traces (empty to disable)")
		dbPath    = flag.String("db", "", "outcome index path (empty to disable)")
		backend   = flag.String("index", "", "outcome index backend: sqlite, ingest, none (default: $LINECOOK_INDEX_BACKEND or sqlite)")
		verbose   = flag.Bool("v", false, "log planner decisions to stdout")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalog.Load(filepath.Join(*configDir, "foods.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load catalog: %v", err)
		}
		cat = catalog.Defaults()
	}
	tune, err := tuning.Load(filepath.Join(*configDir, "planner.yaml"))
	if err != nil && !os.IsNotExist(err) {
		logger.Fatalf("load tuning: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	r, err := ws.Dial(dialCtx, *url, *name)
	dialCancel()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer r.Close()

	welcome := r.Welcome()
	logger.Printf("WELCOME session=%s agent=%d team=%v map=%dx%d match_ticks=%d", welcome.SessionID, welcome.AgentID, welcome.Team, welcome.Map.Width, welcome.Map.Height, welcome.MatchTicks)
	if welcome.CatalogDigest != "" && welcome.CatalogDigest != cat.Digest {
		logger.Printf("catalog digest mismatch: server=%s local=%s; prices may differ", welcome.CatalogDigest, cat.Digest)
	}
	if welcome.MatchTicks > 0 {
		tune.MatchTicks = welcome.MatchTicks
	}

	recs := record.Multi{}
	if *traceDir != "" {
		trace := persistlog.NewTraceLogger(filepath.Join(*traceDir, welcome.SessionID))
		defer trace.Close()
		recs = append(recs, trace)
	}
	idx, err := indexdb.OpenBackend(indexdb.BackendConfig{Kind: *backend, DBPath: *dbPath, RunID: welcome.SessionID, Logger: logger})
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		recs = append(recs, idx)
	}

	planLog := log.New(io.Discard, "", 0)
	if *verbose {
		planLog = log.New(os.Stdout, "[planner] ", log.Lmicroseconds)
	}
	exec := executor.New(r.AgentID(), executor.Config{
		Catalog:  cat,
		Tuning:   tune,
		Logger:   planLog,
		Recorder: recs,
		RunID:    welcome.SessionID,
	})

	if err := play(ctx, r, exec); err != nil {
		logger.Printf("stopped: %v", err)
	}
	logger.Printf("done tick=%d money=%d state=%s", r.Tick(), r.Money(), exec.State())
}

// play runs one executor tick per observation and ends the turn, until the
// match is over or ctx is done.
func play(ctx context.Context, r *ws.Remote, exec *executor.Executor) error {
	for {
		if err := r.Next(ctx); err != nil {
			if errors.Is(err, ws.ErrMatchOver) {
				return nil
			}
			return err
		}
		exec.Tick(r)
		if err := r.Err(); err != nil {
			return err
		}
		if err := r.EndTurn(); err != nil {
			return err
		}
	}
}
