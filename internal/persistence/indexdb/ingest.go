package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"linecook.ai/internal/planner/record"
)

// IngestConfig points the remote outcome sink at an HTTP endpoint that accepts
// batches of {"events":[...]}.
type IngestConfig struct {
	Endpoint      string
	Token         string
	RunID         string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

// IngestIndex ships attempts (and optionally abort events) to a remote
// collector in batches. A failed batch is kept and retried on the next flush.
type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	flushFail atomic.Uint64
	dropped   atomic.Uint64
	sent      atomic.Uint64
}

type ingestEvent struct {
	Kind    string `json:"kind"`
	RunID   string `json:"run_id"`
	Payload any    `json:"payload"`
}

type IngestStats struct {
	SentTotal         uint64
	FlushFailTotal    uint64
	QueueDroppedTotal uint64
}

// maxPending bounds how many unsent events a failing endpoint can pile up.
const maxPending = 4096

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.RunID = strings.TrimSpace(cfg.RunID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.RunID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &IngestIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan ingestEvent, 8192),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) RecordAttempt(a record.Attempt) {
	if d == nil {
		return
	}
	if a.RunID == "" {
		a.RunID = d.cfg.RunID
	}
	d.enqueue(ingestEvent{Kind: "attempt", RunID: a.RunID, Payload: a})
}

// RecordEvent forwards aborts only; the full decision stream stays local.
func (d *IngestIndex) RecordEvent(e record.Event) {
	if d == nil || e.Kind != record.EventAbort {
		return
	}
	if e.RunID == "" {
		e.RunID = d.cfg.RunID
	}
	d.enqueue(ingestEvent{Kind: "abort", RunID: e.RunID, Payload: e})
}

func (d *IngestIndex) RecordRun(r Run) {
	d.enqueue(ingestEvent{Kind: "run", RunID: r.ID, Payload: struct {
		Map       string `json:"map"`
		Agents    int    `json:"agents"`
		Ticks     int    `json:"ticks"`
		Money     int    `json:"money"`
		Fulfilled int    `json:"fulfilled"`
		Expired   int    `json:"expired"`
		StartedAt string `json:"started_at"`
	}{r.Map, r.Agents, r.Ticks, r.Money, r.Fulfilled, r.Expired, r.StartedAt.UTC().Format(time.RFC3339Nano)}})
}

func (d *IngestIndex) Stats() IngestStats {
	if d == nil {
		return IngestStats{}
	}
	return IngestStats{
		SentTotal:         d.sent.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		QueueDroppedTotal: d.dropped.Load(),
	}
}

func (d *IngestIndex) enqueue(ev ingestEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
		d.printf("ingest queue full; drop kind=%s run=%s", ev.Kind, ev.RunID)
	}
}

func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("ingest flush failed batch=%d err=%v", len(batch), err)
			if len(batch) > maxPending {
				n := len(batch) - maxPending
				d.dropped.Add(uint64(n))
				batch = append(batch[:0], batch[n:]...)
			}
			return
		}
		d.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-linecook-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(50*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *IngestIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
