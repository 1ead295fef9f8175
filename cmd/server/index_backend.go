package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"negotiator.ai/internal/config"
	"negotiator.ai/internal/negotiation"
	"negotiator.ai/internal/persistence/indexdb"
)

type runtimeIndex interface {
	negotiation.EventSink
	Close() error
}

// openRuntimeIndex opens the read-model backend named by NEG_INDEX_BACKEND,
// falling back to the settings file.
func openRuntimeIndex(cfg config.Config, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("NEG_INDEX_BACKEND")))
	if backend == "" {
		backend = cfg.Index.Backend
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite", "":
		path := strings.TrimSpace(cfg.Index.Path)
		if path == "" {
			path = indexdb.DefaultPath(cfg.DataDir)
		}
		return indexdb.OpenSQLite(path)
	case "http":
		endpoint := strings.TrimSpace(os.Getenv("NEG_INDEX_INGEST_URL"))
		if endpoint == "" {
			endpoint = cfg.Index.IngestURL
		}
		token := strings.TrimSpace(os.Getenv("NEG_INDEX_TOKEN"))
		if token == "" {
			token = cfg.Index.Token
		}
		if endpoint == "" {
			return nil, fmt.Errorf("index backend http but no ingest url (NEG_INDEX_INGEST_URL or index.ingest_url)")
		}
		return indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      endpoint,
			Token:         token,
			Agent:         cfg.Name,
			BatchSize:     envInt("NEG_INDEX_BATCH_SIZE", cfg.Index.BatchSize),
			FlushInterval: time.Duration(envInt("NEG_INDEX_FLUSH_MS", cfg.Index.FlushMs)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported NEG_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
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
