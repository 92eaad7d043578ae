package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/umputun/spam-bayes/app/storage/engine"
	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// Scores is a sql storage of computed message scores, keyed by message hash.
// It implements the same contract as the json file cache and can replace it.
type Scores struct {
	*engine.SQL
	engine.RWLocker
	timeout time.Duration
}

// scoreRow is a row of the scores table
type scoreRow struct {
	GID  string    `db:"gid"`
	Hash string    `db:"hash"`
	Spam float64   `db:"spam"`
	Ham  float64   `db:"ham"`
	TS   time.Time `db:"ts"`
}

// score queries
const (
	CmdCreateScoresTable engine.DBCmd = iota + 100
	CmdCreateScoresIndexes
	CmdUpsertScore
)

var scoresQueries = engine.NewQueryMap().
	Add(CmdCreateScoresTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS scores (
			gid TEXT NOT NULL DEFAULT '',
			hash TEXT NOT NULL,
			spam REAL NOT NULL,
			ham REAL NOT NULL,
			ts DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (gid, hash)
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS scores (
			gid TEXT NOT NULL DEFAULT '',
			hash TEXT NOT NULL,
			spam DOUBLE PRECISION NOT NULL,
			ham DOUBLE PRECISION NOT NULL,
			ts TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (gid, hash)
		)`,
	}).
	AddSame(CmdCreateScoresIndexes, `CREATE INDEX IF NOT EXISTS idx_scores_ts ON scores(ts)`).
	Add(CmdUpsertScore, engine.Query{
		Sqlite: `INSERT OR REPLACE INTO scores (gid, hash, spam, ham, ts) VALUES (?, ?, ?, ?, ?)`,
		Postgres: `INSERT INTO scores (gid, hash, spam, ham, ts) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (gid, hash) DO UPDATE SET spam = EXCLUDED.spam, ham = EXCLUDED.ham, ts = EXCLUDED.ts`,
	})

// NewScores creates the scores table if needed and returns the storage.
// timeout limits every single db call, zero means the default of 5s.
func NewScores(ctx context.Context, db *engine.SQL, timeout time.Duration) (*Scores, error) {
	if db == nil {
		return nil, fmt.Errorf("db connection is nil")
	}
	if err := engine.InitTable(ctx, db, scoresQueries, CmdCreateScoresTable, CmdCreateScoresIndexes); err != nil {
		return nil, fmt.Errorf("failed to init scores table: %w", err)
	}
	return &Scores{SQL: db, RWLocker: db.MakeLock(), timeout: timeout}, nil
}

// Get returns stored scores of the message. Db errors are logged and reported as a miss.
func (s *Scores) Get(msg string) (spamcheck.Scores, bool) {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := ctxWithTimeout(s.timeout)
	defer cancel()

	var row scoreRow
	query := s.Adopt(`SELECT gid, hash, spam, ham, ts FROM scores WHERE gid = ? AND hash = ?`)
	if err := s.GetContext(ctx, &row, query, s.GID(), spamcheck.Hash(msg)); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[WARN] failed to get scores for %q: %v", msg, err)
		}
		return spamcheck.Scores{}, false
	}
	return spamcheck.Scores{Spam: row.Spam, Ham: row.Ham}, true
}

// Put stores scores of the message, replacing previous ones
func (s *Scores) Put(msg string, sc spamcheck.Scores) error {
	query, err := scoresQueries.Pick(s.Type(), CmdUpsertScore)
	if err != nil {
		return fmt.Errorf("%w: can't store scores: %w", spamcheck.ErrIO, err)
	}

	s.Lock()
	defer s.Unlock()

	ctx, cancel := ctxWithTimeout(s.timeout)
	defer cancel()

	if _, err = s.ExecContext(ctx, query, s.GID(), spamcheck.Hash(msg), sc.Spam, sc.Ham, time.Now()); err != nil {
		return fmt.Errorf("%w: can't store scores: %w", spamcheck.ErrIO, err)
	}
	return nil
}

// Clear removes all scores of the group
func (s *Scores) Clear() error {
	s.Lock()
	defer s.Unlock()

	ctx, cancel := ctxWithTimeout(s.timeout)
	defer cancel()

	if _, err := s.ExecContext(ctx, s.Adopt(`DELETE FROM scores WHERE gid = ?`), s.GID()); err != nil {
		return fmt.Errorf("%w: can't clear scores: %w", spamcheck.ErrIO, err)
	}
	return nil
}

// Len returns the number of stored scores of the group, -1 on error
func (s *Scores) Len() int {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := ctxWithTimeout(s.timeout)
	defer cancel()

	var count int
	if err := s.GetContext(ctx, &count, s.Adopt(`SELECT COUNT(*) FROM scores WHERE gid = ?`), s.GID()); err != nil {
		log.Printf("[WARN] failed to count scores: %v", err)
		return -1
	}
	return count
}
