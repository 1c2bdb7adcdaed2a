package tradelock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"informer/internal/logger"

	_ "modernc.org/sqlite"
)

// Holder is the run that took the trade for one New York trade date.
type Holder struct {
	TradeDateNY string `json:"trade_date_ny"`
	RunID       string `json:"run_id"`
	Symbol      string `json:"symbol"`
	LockedAt    int64  `json:"locked_at"`
	// Fresh is set when this Acquire call inserted the row.
	Fresh bool `json:"-"`
}

// Store enforces one trade per New York trade date across runs and processes.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("trade lock path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS trade_locks (
		trade_date_ny TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		symbol TEXT,
		locked_at INTEGER NOT NULL
	);`)
	return err
}

// Acquire takes the lock for tradeDateNY on behalf of runID. It reports
// false with the current holder when another run already traded that day;
// re-acquiring with the holder's own run id succeeds.
func (s *Store) Acquire(ctx context.Context, tradeDateNY, runID, symbol string) (Holder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Holder{}, false, fmt.Errorf("trade lock store closed")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_locks (trade_date_ny, run_id, symbol, locked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(trade_date_ny) DO NOTHING`,
		tradeDateNY, runID, symbol, time.Now().Unix())
	if err != nil {
		return Holder{}, false, fmt.Errorf("acquire trade lock %s: %w", tradeDateNY, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Holder{}, false, fmt.Errorf("acquire trade lock %s: %w", tradeDateNY, err)
	}
	h, found, err := s.holder(ctx, tradeDateNY)
	if err != nil {
		return Holder{}, false, err
	}
	if !found {
		return Holder{}, false, fmt.Errorf("trade lock %s vanished", tradeDateNY)
	}
	if h.RunID != runID {
		logger.ForRun(runID).Infof("[tradelock] %s already held by run %s (%s)", tradeDateNY, h.RunID, h.Symbol)
		return h, false, nil
	}
	h.Fresh = inserted == 1
	return h, true, nil
}

// Release drops the lock for tradeDateNY if runID still holds it. Used when
// the run that took the lock could not record its decision.
func (s *Store) Release(ctx context.Context, tradeDateNY, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("trade lock store closed")
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM trade_locks WHERE trade_date_ny = ? AND run_id = ?`, tradeDateNY, runID)
	if err != nil {
		return fmt.Errorf("release trade lock %s: %w", tradeDateNY, err)
	}
	return nil
}

// Holder returns the lock for tradeDateNY, if any.
func (s *Store) Holder(ctx context.Context, tradeDateNY string) (Holder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return Holder{}, false, fmt.Errorf("trade lock store closed")
	}
	return s.holder(ctx, tradeDateNY)
}

func (s *Store) holder(ctx context.Context, tradeDateNY string) (Holder, bool, error) {
	var h Holder
	var symbol sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT trade_date_ny, run_id, symbol, locked_at FROM trade_locks WHERE trade_date_ny = ?`,
		tradeDateNY).Scan(&h.TradeDateNY, &h.RunID, &symbol, &h.LockedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Holder{}, false, nil
	}
	if err != nil {
		return Holder{}, false, err
	}
	h.Symbol = symbol.String
	return h, true, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
