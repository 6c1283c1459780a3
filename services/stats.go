package services

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"harmonia/types"
)

// StatsStore persists the play counter, the cumulative downloaded-byte
// total and the set of transfer ids already credited. The credited set is
// what makes completion crediting exactly-once across polls and restarts.
type StatsStore interface {
	AddPlay() error
	// CreditTransfer adds bytes to the downloaded total and marks the
	// transfer id credited. Returns false when the id was already
	// credited, in which case nothing is counted.
	CreditTransfer(id int64, bytes int64) (bool, error)
	IsCredited(id int64) (bool, error)
	Snapshot() (types.Stats, error)
	Close() error
}

type statsStore struct {
	db *sql.DB
}

// NewStatsStore opens (creating if needed) the stats database at path.
func NewStatsStore(path string) (StatsStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create stats directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		play_count INTEGER NOT NULL DEFAULT 0,
		downloaded_bytes INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO stats (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS credited_transfers (
		transfer_id INTEGER PRIMARY KEY,
		credited_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats tables: %w", err)
	}

	return &statsStore{db: db}, nil
}

func (s *statsStore) AddPlay() error {
	_, err := s.db.Exec(`UPDATE stats SET play_count = play_count + 1 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

func (s *statsStore) CreditTransfer(id int64, bytes int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO credited_transfers (transfer_id) VALUES (?) ON CONFLICT DO NOTHING`, id)
	if err != nil {
		return false, fmt.Errorf("failed to record credited transfer: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check credit result: %w", err)
	}
	if inserted == 0 {
		// Already credited on a previous poll or run.
		return false, nil
	}

	if _, err := tx.Exec(
		`UPDATE stats SET downloaded_bytes = downloaded_bytes + ? WHERE id = 1`, bytes); err != nil {
		return false, fmt.Errorf("failed to add downloaded bytes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit credit: %w", err)
	}
	return true, nil
}

func (s *statsStore) IsCredited(id int64) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM credited_transfers WHERE transfer_id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query credited transfers: %w", err)
	}
	return true, nil
}

func (s *statsStore) Snapshot() (types.Stats, error) {
	var stats types.Stats
	err := s.db.QueryRow(
		`SELECT play_count, downloaded_bytes FROM stats WHERE id = 1`).
		Scan(&stats.PlayCount, &stats.DownloadedBytes)
	if err != nil {
		return types.Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, nil
}

func (s *statsStore) Close() error {
	return s.db.Close()
}
