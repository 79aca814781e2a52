package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/planner/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAttempt}

	s.RecordAttempt(record.Attempt{OrderID: 2})
	s.RecordRun(Run{ID: "r1"})
	s.RecordRun(Run{}) // no id: ignored, not dropped

	st := s.Stats()
	if st.DropAttemptTotal != 1 {
		t.Fatalf("DropAttemptTotal=%d want=1", st.DropAttemptTotal)
	}
	if st.DropRunTotal != 1 {
		t.Fatalf("DropRunTotal=%d want=1", st.DropRunTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordAttemptAndCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	attempts := []record.Attempt{
		{RunID: "a", OrderID: 1, Agent: 1, StartedTick: 0, EndedTick: 40, Estimated: 35, Outcome: record.OutcomeCompleted, Reward: 20, Cost: 12},
		{RunID: "a", OrderID: 2, Agent: 1, StartedTick: 40, EndedTick: 100, Estimated: 60, Outcome: record.OutcomeCompleted, Reward: 40, Cost: 30},
		{RunID: "a", OrderID: 3, Agent: 1, StartedTick: 100, EndedTick: 130, Estimated: 63, Outcome: record.OutcomeStuck, Code: "E_BURNT"},
		{RunID: "b", OrderID: 1, Agent: 2, StartedTick: 0, EndedTick: 90, Estimated: 45, Outcome: record.OutcomeCompleted},
		{RunID: "b", OrderID: 4, Agent: 2, StartedTick: 90, EndedTick: 95, Estimated: 35, Outcome: record.OutcomeExpired, Code: "E_EXPIRED"},
	}
	for _, a := range attempts {
		idx.RecordAttempt(a)
	}
	idx.RecordEvent(record.Event{Kind: record.EventSelect})

	ctx := context.Background()
	cal, err := idx.Calibration(ctx, "a")
	if err != nil {
		t.Fatalf("Calibration(a): %v", err)
	}
	want := (40.0/35.0 + 60.0/60.0) / 2
	if cal.Completed != 2 || math.Abs(cal.Ratio-want) > 1e-9 {
		t.Fatalf("run a: completed=%d ratio=%v want 2 %v", cal.Completed, cal.Ratio, want)
	}
	if cal.Aborted != 1 || cal.ByCode["E_BURNT"] != 1 {
		t.Fatalf("run a: aborted=%d byCode=%v", cal.Aborted, cal.ByCode)
	}

	all, err := idx.Calibration(ctx, "")
	if err != nil {
		t.Fatalf("Calibration(all): %v", err)
	}
	if all.Completed != 3 || all.Aborted != 2 || all.ByCode["E_EXPIRED"] != 1 {
		t.Fatalf("all runs: %+v", all)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := idx.Calibration(ctx, ""); err != ErrClosed {
		t.Fatalf("Calibration after Close: err=%v want ErrClosed", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM attempts`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(attempts) {
		t.Fatalf("attempt rows=%d want %d", n, len(attempts))
	}
}

func TestSQLiteIndex_EmptyCalibration(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	cal, err := idx.Calibration(context.Background(), "")
	if err != nil {
		t.Fatalf("Calibration: %v", err)
	}
	if cal.Completed != 0 || cal.Ratio != 0 || cal.Aborted != 0 {
		t.Fatalf("empty index: %+v", cal)
	}
}

func TestSQLiteIndex_RunAndCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cat := catalog.Defaults()
	if err := idx.UpsertCatalogs(context.Background(), cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	idx.RecordRun(Run{ID: "r1", Map: "maps/a.txt", Agents: 2, Ticks: 500, Money: 210, Fulfilled: 4, Expired: 1, StartedAt: started})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		m         string
		agents    int
		money     int
		fulfilled int
		at        string
	)
	row := db.QueryRow(`SELECT map,agents,money,fulfilled,started_at FROM runs WHERE run_id='r1'`)
	if err := row.Scan(&m, &agents, &money, &fulfilled, &at); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if m != "maps/a.txt" || agents != 2 || money != 210 || fulfilled != 4 || at != "2026-01-02T03:04:05Z" {
		t.Fatalf("run row mismatch: map=%q agents=%d money=%d fulfilled=%d at=%q", m, agents, money, fulfilled, at)
	}

	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='foods'`).Scan(&digest); err != nil {
		t.Fatalf("Scan catalog: %v", err)
	}
	if digest != cat.Digest {
		t.Fatalf("foods digest=%q want %q", digest, cat.Digest)
	}
	var tuningRows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs WHERE name='tuning'`).Scan(&tuningRows); err != nil || tuningRows != 1 {
		t.Fatalf("tuning rows=%d err=%v", tuningRows, err)
	}
}

func TestIngestIndex_RetainsBatchOnFlushFailure(t *testing.T) {
	var (
		mu       sync.Mutex
		reqCount int
		kinds    []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		n := reqCount
		mu.Unlock()
		if n <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		var body struct {
			Events []ingestEvent `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		for _, ev := range body.Events {
			kinds = append(kinds, ev.Kind)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenIngest(IngestConfig{
		Endpoint:      srv.URL,
		RunID:         "run_1",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenIngest: %v", err)
	}

	idx.RecordEvent(record.Event{Kind: record.EventSelect}) // not forwarded
	idx.RecordAttempt(record.Attempt{OrderID: 7, Outcome: record.OutcomeCompleted})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(kinds) >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	_ = idx.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 1 || kinds[0] != "attempt" {
		t.Fatalf("delivered kinds=%v want [attempt]", kinds)
	}
	st := idx.Stats()
	if st.FlushFailTotal == 0 {
		t.Fatalf("expected flush failures to be recorded")
	}
	if st.SentTotal != 1 || st.QueueDroppedTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestOpenIngest_RequiresEndpointAndRun(t *testing.T) {
	if _, err := OpenIngest(IngestConfig{RunID: "r"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenIngest(IngestConfig{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(BackendConfig{Kind: "none"})
	if err != nil || b != nil {
		t.Fatalf("none: backend=%v err=%v", b, err)
	}
	b, err = OpenBackend(BackendConfig{Kind: "sqlite", DBPath: filepath.Join(t.TempDir(), "x", "index.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if _, ok := b.(*SQLiteIndex); !ok {
		t.Fatalf("sqlite: got %T", b)
	}
	_ = b.Close()

	t.Setenv("LINECOOK_INGEST_URL", "")
	if _, err := OpenBackend(BackendConfig{Kind: "ingest", RunID: "r"}); err == nil {
		t.Fatalf("ingest without url must fail")
	}
	if _, err := OpenBackend(BackendConfig{Kind: "carrier-pigeon"}); err == nil {
		t.Fatalf("unknown backend must fail")
	}
}
