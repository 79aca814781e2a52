package indexdb

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"linecook.ai/internal/planner/record"
)

// Backend is the outcome index as the binaries see it.
type Backend interface {
	record.Recorder
	RecordRun(Run)
	Close() error
}

// BackendConfig selects the outcome index. Kind is "sqlite", "ingest" or
// "none"; an empty Kind reads LINECOOK_INDEX_BACKEND and falls back to sqlite.
type BackendConfig struct {
	Kind   string
	DBPath string
	RunID  string
	Logger *log.Logger
}

// OpenBackend returns nil, nil when indexing is disabled.
func OpenBackend(cfg BackendConfig) (Backend, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(os.Getenv("LINECOOK_INDEX_BACKEND")))
	}
	if kind == "" {
		kind = "sqlite"
	}

	switch kind {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		if cfg.DBPath == "" {
			return nil, nil
		}
		idx, err := OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "ingest":
		endpoint := strings.TrimSpace(os.Getenv("LINECOOK_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("LINECOOK_INDEX_BACKEND=ingest but LINECOOK_INGEST_URL is empty")
		}
		idx, err := OpenIngest(IngestConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("LINECOOK_INGEST_TOKEN")),
			RunID:         cfg.RunID,
			BatchSize:     envInt("LINECOOK_INGEST_BATCH_SIZE", 64),
			FlushInterval: time.Duration(envInt("LINECOOK_INGEST_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", kind)
	}
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
