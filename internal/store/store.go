package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	_ "github.com/mattn/go-sqlite3"
)

const fileName = "gitfolio.db"

// ErrNotFound is returned when no profile is stored for a login
var ErrNotFound = errors.New("profile not stored")

// StoredProfile is a profile with the bookkeeping the freshness policy needs
type StoredProfile struct {
	Profile    *analysis.AnalyzedProfile
	AnalyzedAt time.Time
	UpdatedAt  time.Time
}

// Age returns how old the analysis is at now
func (p *StoredProfile) Age(now time.Time) time.Duration {
	return now.Sub(p.AnalyzedAt)
}

// PoolConfig sizes the SQLite connection pool
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, MaxLifetime: 5 * time.Minute}
}

// Store persists analyzed profiles in SQLite, one row per login
type Store struct {
	db       *sql.DB
	pool     PoolConfig
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
	now      func() time.Time
}

// Open creates dataDir if needed and opens the profile database inside it
func Open(dataDir string, pool PoolConfig) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, fileName)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	s := &Store{
		db:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
		now:      time.Now,
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := s.initPreparedStatements(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Profile store opened",
		"path", dbPath,
		"max_open_conns", pool.MaxOpenConns,
		"max_idle_conns", pool.MaxIdleConns)

	return s, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			login_key TEXT PRIMARY KEY, -- lower-cased login
			username TEXT NOT NULL,
			overall_score REAL NOT NULL,
			data TEXT NOT NULL, -- JSON profile
			analyzed_at INTEGER NOT NULL, -- unix millis, UTC
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_analyzed ON profiles(analyzed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_score ON profiles(overall_score DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (s *Store) initPreparedStatements() error {
	statements := map[string]string{
		"upsert_profile": `INSERT INTO profiles (login_key, username, overall_score, data, analyzed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(login_key) DO UPDATE SET
			username = excluded.username,
			overall_score = excluded.overall_score,
			data = excluded.data,
			analyzed_at = excluded.analyzed_at,
			updated_at = excluded.updated_at`,

		"get_profile": `SELECT data, analyzed_at, updated_at FROM profiles WHERE login_key = ?`,

		"get_latest": `SELECT data, analyzed_at, updated_at FROM profiles ORDER BY analyzed_at DESC LIMIT 1`,

		"delete_profile": `DELETE FROM profiles WHERE login_key = ?`,

		"delete_all": `DELETE FROM profiles`,

		"count_profiles": `SELECT COUNT(*) FROM profiles`,

		"top_scores": `SELECT username, overall_score, analyzed_at FROM profiles
			ORDER BY overall_score DESC, analyzed_at DESC LIMIT ?`,

		"delete_before": `DELETE FROM profiles WHERE analyzed_at < ?`,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		s.prepared[name] = stmt
	}
	return nil
}

func (s *Store) stmt(name string) (*sql.Stmt, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stmt, exists := s.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

func loginKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Save inserts or replaces the stored profile for profile.Username
func (s *Store) Save(ctx context.Context, profile *analysis.AnalyzedProfile) error {
	if profile == nil || loginKey(profile.Username) == "" {
		return fmt.Errorf("cannot store profile without username")
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	stmt, err := s.stmt("upsert_profile")
	if err != nil {
		return err
	}

	analyzedAt := profile.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = s.now()
	}
	_, err = stmt.ExecContext(ctx,
		loginKey(profile.Username),
		profile.Username,
		profile.CollaborationScore.OverallScore,
		string(data),
		analyzedAt.UnixMilli(),
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", profile.Username, err)
	}
	return nil
}

// Load returns the stored profile for username or ErrNotFound
func (s *Store) Load(ctx context.Context, username string) (*StoredProfile, error) {
	stmt, err := s.stmt("get_profile")
	if err != nil {
		return nil, err
	}
	stored, err := scanProfile(stmt.QueryRowContext(ctx, loginKey(username)))
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", username, err)
	}
	return stored, nil
}

// Latest returns the most recently analyzed profile or ErrNotFound
func (s *Store) Latest(ctx context.Context) (*StoredProfile, error) {
	stmt, err := s.stmt("get_latest")
	if err != nil {
		return nil, err
	}
	stored, err := scanProfile(stmt.QueryRowContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("load latest profile: %w", err)
	}
	return stored, nil
}

func scanProfile(row *sql.Row) (*StoredProfile, error) {
	var (
		data                  string
		analyzedAt, updatedAt int64
	)
	if err := row.Scan(&data, &analyzedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var profile analysis.AnalyzedProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode stored profile: %w", err)
	}

	return &StoredProfile{
		Profile:    &profile,
		AnalyzedAt: time.UnixMilli(analyzedAt).UTC(),
		UpdatedAt:  time.UnixMilli(updatedAt).UTC(),
	}, nil
}

// Delete removes the profile for username and reports whether one existed
func (s *Store) Delete(ctx context.Context, username string) (bool, error) {
	stmt, err := s.stmt("delete_profile")
	if err != nil {
		return false, err
	}
	res, err := stmt.ExecContext(ctx, loginKey(username))
	if err != nil {
		return false, fmt.Errorf("failed to delete profile %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll removes every stored profile and returns how many were removed
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	stmt, err := s.stmt("delete_all")
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear profiles: %w", err)
	}
	return res.RowsAffected()
}

// ScoreEntry is one leaderboard row
type ScoreEntry struct {
	Rank         int       `json:"rank"`
	Username     string    `json:"username"`
	OverallScore float64   `json:"overall_score"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// TopScores returns up to limit stored profiles ranked by overall
// collaboration score, most recent analysis first on ties.
func (s *Store) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	stmt, err := s.stmt("top_scores")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top scores: %w", err)
	}
	defer rows.Close()

	entries := make([]ScoreEntry, 0, limit)
	for rows.Next() {
		var (
			entry      ScoreEntry
			analyzedAt int64
		)
		if err := rows.Scan(&entry.Username, &entry.OverallScore, &analyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score entry: %w", err)
		}
		entry.Rank = len(entries) + 1
		entry.AnalyzedAt = time.UnixMilli(analyzedAt).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes profiles analyzed before cutoff
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, err := s.stmt("delete_before")
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired profiles: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored profiles
func (s *Store) Count(ctx context.Context) (int, error) {
	stmt, err := s.stmt("count_profiles")
	if err != nil {
		return 0, err
	}
	var n int
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetPoolStats returns database connection pool statistics
func (s *Store) GetPoolStats() map[string]interface{} {
	stats := s.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": s.pool.MaxOpenConns,
		"max_idle_connections": s.pool.MaxIdleConns,
		"max_lifetime_seconds": s.pool.MaxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close closes the prepared statements and the database
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for name, stmt := range s.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	s.prepared = make(map[string]*sql.Stmt)

	return s.db.Close()
}
