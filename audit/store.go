// Package audit persists crawl-step records to SQLite asynchronously.
// One row per executed loop step: which intent the model chose, what
// the executor did with it, and how long it took. Recording never
// blocks or fails the crawl; a full buffer drops entries.
package audit

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"
)

// Schema for the crawl_steps table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS crawl_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	intent TEXT NOT NULL,
	target TEXT,
	outcome TEXT NOT NULL,
	error TEXT,
	duration_us INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crawl_steps_ts ON crawl_steps(timestamp);
CREATE INDEX IF NOT EXISTS idx_crawl_steps_outcome ON crawl_steps(outcome);
`

// Step is one audit record.
type Step struct {
	Question   string
	Intent     string // navigate | click | answer | unparseable | answer_not_found
	Target     string // URL or link text
	Outcome    string // success | unreachable_url | link_not_found | click_ambiguous | recovered | exhausted
	Error      string
	DurationUs int64
	Timestamp  int64
}

// Store persists steps to a SQLite table asynchronously.
type Store struct {
	db   *sql.DB
	ch   chan *Step
	done chan struct{}
	once sync.Once
}

// NewStore creates a store backed by the given database connection and
// starts its flush goroutine.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Step, 1024),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the crawl_steps table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues a step for persistence. Non-blocking; drops if the
// buffer is full.
func (s *Store) RecordAsync(step *Step) {
	select {
	case s.ch <- step:
	default:
		// buffer full — drop rather than backpressure the loop
	}
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Step, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case step, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, step)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Step) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("audit store: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO crawl_steps (question, intent, target, outcome, error, duration_us, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("audit store: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.Question, e.Intent, e.Target, e.Outcome, e.Error, e.DurationUs, e.Timestamp); err != nil {
			slog.Error("audit store: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("audit store: commit", "error", err)
	}
}
