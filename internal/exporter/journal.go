package exporter

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/tessen/netdom/internal/device"
	"codeberg.org/tessen/netdom/internal/errors"
	"codeberg.org/tessen/netdom/internal/logger"
	"codeberg.org/tessen/netdom/internal/metric"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultDirPerm       = 0o755
	defaultBatchSize     = 64
	defaultFlushInterval = 10 * time.Second
)

// JournalConfig configures the local SQLite sink.
type JournalConfig struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

func (c JournalConfig) withDefaults() JournalConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}

	return c
}

// Journal is a local SQLite backend: batches are buffered in memory and
// flushed in one transaction per batch-size or flush-interval boundary.
// It is a sink like any other, not a durable queue for the push backends.
type Journal struct {
	db  *sql.DB
	cfg JournalConfig

	mu     sync.Mutex
	buffer []journalRow

	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

type journalRow struct {
	timestamp int64
	deviceID  string
	name      string
	value     float64
	tags      string
}

func NewJournal(cfg JournalConfig) (*Journal, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.WithMessage(errors.ErrExportInit, "journal: missing database path")
	}
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrExportInit, err)
	}

	// WAL keeps concurrent flushes from blocking readers of the journal.
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrExportInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:            db,
		cfg:           cfg,
		buffer:        make([]journalRow, 0, cfg.BatchSize),
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}
	go j.flusher()

	logger.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", schemaVersion).
		Int("batch_size", cfg.BatchSize).
		Msg("journal exporter initialized")

	return j, nil
}

func (*Journal) Name() string {
	return "journal"
}

func (j *Journal) Export(_ context.Context, dev *device.Device, batch []metric.Metric) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, m := range batch {
		tags, err := json.Marshal(mergeTags(dev.Tags, m.Tags))
		if err != nil {
			continue
		}
		j.buffer = append(j.buffer, journalRow{
			timestamp: m.Timestamp,
			deviceID:  dev.Name,
			name:      m.Name,
			value:     m.Value,
			tags:      string(tags),
		})
	}

	if len(j.buffer) >= j.cfg.BatchSize {
		if err := j.flush(); err != nil {
			var appErr errors.Error
			if errors.As(err, &appErr) {
				logger.ErrorWithCode(appErr).Msg("journal flush failed")
			}
		}
	}
}

func (j *Journal) Close() error {
	close(j.shutdownChan)
	j.flushTicker.Stop()
	<-j.flushDoneChan

	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().Wrap(errors.ErrExportClose, err)
	}

	if err := j.db.Close(); err != nil {
		return errors.New().Wrap(errors.ErrExportClose, err)
	}

	logger.Info().Msg("journal exporter closed")

	return nil
}

func (j *Journal) flusher() {
	defer close(j.flushDoneChan)

	for {
		select {
		case <-j.flushTicker.C:
			j.mu.Lock()
			j.flush() //nolint:errcheck // logged inside
			j.mu.Unlock()
		case <-j.shutdownChan:
			j.mu.Lock()
			j.flush() //nolint:errcheck
			j.mu.Unlock()
			return
		}
	}
}

// flush writes the buffer in one transaction. Callers hold j.mu.
func (j *Journal) flush() error {
	if len(j.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := j.db.Begin()
	if err != nil {
		return errFactory.Wrap(errors.ErrExportTransient, err)
	}

	stmt, err := tx.Prepare(insertMetricSQL)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return errFactory.Wrap(errors.ErrExportTransient, err)
	}
	defer stmt.Close()

	for _, row := range j.buffer {
		if _, err := stmt.Exec(row.timestamp, row.deviceID, row.name, row.value, row.tags); err != nil {
			tx.Rollback() //nolint:errcheck
			return errFactory.Wrap(errors.ErrExportTransient, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(errors.ErrExportTransient, err)
	}

	logger.Debug().Int("records", len(j.buffer)).Msg("journal flushed")
	j.buffer = j.buffer[:0]

	return nil
}
