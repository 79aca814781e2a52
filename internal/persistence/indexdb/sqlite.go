package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"linecook.ai/internal/game/catalog"
	"linecook.ai/internal/planner/record"
	"linecook.ai/internal/planner/tuning"
)

var ErrClosed = errors.New("index closed")

// SQLiteIndex is the outcome index: one row per attempted order, written off
// the tick path by a single writer goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAttempt atomic.Uint64
	dropRun     atomic.Uint64
	writeErrors atomic.Uint64
}

type reqKind int

const (
	reqAttempt reqKind = iota + 1
	reqRun
	reqQuery
)

type req struct {
	kind reqKind

	attempt record.Attempt
	run     Run

	query func(*sql.DB)
	done  chan struct{}
}

// Run summarizes one match: which map, how long, and how it ended.
type Run struct {
	ID        string
	Map       string
	Agents    int
	Ticks     int
	Money     int
	Fulfilled int
	Expired   int
	StartedAt time.Time
}

type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropAttemptTotal uint64
	DropRunTotal     uint64
	WriteErrorTotal  uint64
}

// Calibration compares actual against estimated ticks over completed attempts.
// Ratio above 1 means the cost model is optimistic.
type Calibration struct {
	Completed int
	Aborted   int
	Ratio     float64
	ByCode    map[string]int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			map TEXT NOT NULL,
			agents INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			money INTEGER NOT NULL,
			fulfilled INTEGER NOT NULL,
			expired INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			run_id TEXT NOT NULL,
			order_id INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			started_tick INTEGER NOT NULL,
			ended_tick INTEGER NOT NULL,
			estimated_ticks INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			code TEXT,
			reward INTEGER NOT NULL,
			cost INTEGER NOT NULL,
			PRIMARY KEY (run_id, order_id, agent_id, started_tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordAttempt enqueues one outcome row. When the writer falls behind the
// row is dropped and counted; the trace log remains the source of truth.
func (s *SQLiteIndex) RecordAttempt(a record.Attempt) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqAttempt, attempt: a}:
	default:
		s.dropAttempt.Add(1)
	}
}

// RecordEvent is a no-op: events live in the trace log only.
func (s *SQLiteIndex) RecordEvent(record.Event) {}

func (s *SQLiteIndex) RecordRun(r Run) {
	if s == nil || s.closed.Load() || r.ID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropAttemptTotal: s.dropAttempt.Load(),
		DropRunTotal:     s.dropRun.Load(),
		WriteErrorTotal:  s.writeErrors.Load(),
	}
}

// Calibration commits everything queued so far, then aggregates attempts. An
// empty runID covers every run.
func (s *SQLiteIndex) Calibration(ctx context.Context, runID string) (Calibration, error) {
	var (
		out Calibration
		err error
	)
	run := func(db *sql.DB) {
		out, err = queryCalibration(ctx, db, runID)
	}
	if qerr := s.inWriter(ctx, run); qerr != nil {
		return Calibration{}, qerr
	}
	return out, err
}

// inWriter runs fn on the writer goroutine after it commits its open batch, so
// reads never wait on the single connection held by a pending transaction.
func (s *SQLiteIndex) inWriter(ctx context.Context, fn func(*sql.DB)) (err error) {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	defer func() {
		// Close raced with us and the channel is gone.
		if recover() != nil {
			err = ErrClosed
		}
	}()
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqQuery, query: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func queryCalibration(ctx context.Context, db *sql.DB, runID string) (Calibration, error) {
	out := Calibration{ByCode: map[string]int{}}

	var ratio sql.NullFloat64
	row := db.QueryRowContext(ctx, `SELECT COUNT(*), AVG(CAST(ended_tick - started_tick AS REAL) / estimated_ticks)
		FROM attempts WHERE outcome = ? AND estimated_ticks > 0 AND (? = '' OR run_id = ?)`,
		record.OutcomeCompleted, runID, runID)
	if err := row.Scan(&out.Completed, &ratio); err != nil {
		return Calibration{}, err
	}
	if ratio.Valid {
		out.Ratio = ratio.Float64
	}

	rows, err := db.QueryContext(ctx, `SELECT COALESCE(code, ''), COUNT(*) FROM attempts
		WHERE outcome <> ? AND (? = '' OR run_id = ?) GROUP BY code`,
		record.OutcomeCompleted, runID, runID)
	if err != nil {
		return Calibration{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code string
			n    int
		)
		if err := rows.Scan(&code, &n); err != nil {
			return Calibration{}, err
		}
		out.ByCode[code] = n
		out.Aborted += n
	}
	return out, rows.Err()
}

// UpsertCatalogs stores the catalog and tuning actually in effect, keyed by
// digest, so attempts can be traced back to the cost model that produced them.
func (s *SQLiteIndex) UpsertCatalogs(ctx context.Context, cat *catalog.Catalog, tune tuning.Tuning) error {
	if s == nil || cat == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	{
		foods := make([]catalog.FoodDef, 0, len(cat.Names))
		for _, n := range cat.Names {
			foods = append(foods, cat.Foods[n])
		}
		b, _ := json.Marshal(struct {
			PlateCost int               `json:"plate_cost"`
			PanCost   int               `json:"pan_cost"`
			Foods     []catalog.FoodDef `json:"foods"`
		}{cat.PlateCost, cat.PanCost, foods})
		rows = append(rows, kv{name: "foods", digest: cat.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	var txErr error
	fn := func(db *sql.DB) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			txErr = err
			return
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
			txErr = err
			return
		}
		for _, r := range rows {
			if r.digest == "" || len(r.json) == 0 {
				continue
			}
			if _, err := tx.Exec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
				r.name, r.digest, string(r.json), now); err != nil {
				txErr = err
				return
			}
		}
		txErr = tx.Commit()
	}
	if err := s.inWriter(ctx, fn); err != nil {
		return err
	}
	return txErr
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAttempt, _ := s.db.Prepare(`INSERT OR REPLACE INTO attempts(run_id,order_id,agent_id,started_tick,ended_tick,estimated_ticks,outcome,code,reward,cost) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,map,agents,ticks,money,fulfilled,expired,started_at) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertAttempt != nil {
			_ = insertAttempt.Close()
		}
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqQuery {
			commit()
			r.query(s.db)
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAttempt:
			a := r.attempt
			if insertAttempt == nil {
				continue
			}
			if _, err := tx.Stmt(insertAttempt).Exec(
				a.RunID,
				a.OrderID,
				a.Agent,
				a.StartedTick,
				a.EndedTick,
				a.Estimated,
				a.Outcome,
				a.Code,
				a.Reward,
				a.Cost,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqRun:
			ru := r.run
			if insertRun == nil {
				continue
			}
			if _, err := tx.Stmt(insertRun).Exec(
				ru.ID,
				ru.Map,
				ru.Agents,
				ru.Ticks,
				ru.Money,
				ru.Fulfilled,
				ru.Expired,
				ru.StartedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
