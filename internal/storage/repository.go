package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id VARCHAR(20) PRIMARY KEY,
			channel_id VARCHAR(20) NOT NULL DEFAULT '',
			access_token TEXT NOT NULL,
			openid TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS watch_state (
			user_id VARCHAR(20) PRIMARY KEY,
			last_match_id VARCHAR(50) NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES accounts(user_id) ON DELETE CASCADE
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Account operations

// UpsertAccount inserts an account or refreshes its credentials and channel
// if the user is already bound. Re-running login rotates the token.
func (r *Repository) UpsertAccount(a *Account) error {
	_, err := r.db.Exec(
		`INSERT INTO accounts (user_id, channel_id, access_token, openid) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			access_token = excluded.access_token,
			openid = excluded.openid,
			updated_at = CURRENT_TIMESTAMP`,
		a.UserID, a.ChannelID, a.AccessToken, a.OpenID,
	)
	return err
}

// GetAccount finds an account by user id. Returns nil when not bound.
func (r *Repository) GetAccount(userID string) (*Account, error) {
	a := &Account{}
	err := r.db.QueryRow(
		`SELECT user_id, channel_id, access_token, openid, created_at, updated_at FROM accounts WHERE user_id = ?`,
		userID,
	).Scan(&a.UserID, &a.ChannelID, &a.AccessToken, &a.OpenID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAccounts returns all bound accounts
func (r *Repository) ListAccounts() ([]*Account, error) {
	rows, err := r.db.Query(
		`SELECT user_id, channel_id, access_token, openid, created_at, updated_at FROM accounts`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a := &Account{}
		if err := rows.Scan(&a.UserID, &a.ChannelID, &a.AccessToken, &a.OpenID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

// DeleteAccount removes an account and its watch state
func (r *Repository) DeleteAccount(userID string) error {
	if _, err := r.db.Exec(`DELETE FROM watch_state WHERE user_id = ?`, userID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM accounts WHERE user_id = ?`, userID)
	return err
}

// Watch state operations

// GetWatchState returns the last broadcast match id for a user.
// Returns nil when no match has been broadcast yet.
func (r *Repository) GetWatchState(userID string) (*WatchState, error) {
	s := &WatchState{}
	err := r.db.QueryRow(
		`SELECT user_id, last_match_id, updated_at FROM watch_state WHERE user_id = ?`,
		userID,
	).Scan(&s.UserID, &s.LastMatchID, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SetWatchState records the last broadcast match id for a user
func (r *Repository) SetWatchState(userID, matchID string) error {
	_, err := r.db.Exec(
		`INSERT INTO watch_state (user_id, last_match_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET last_match_id = excluded.last_match_id, updated_at = excluded.updated_at`,
		userID, matchID, time.Now(),
	)
	return err
}
