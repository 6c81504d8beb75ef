package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps one row per account; updates run in a transaction
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dsn and creates the schema
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "users.db"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and avoids SQLITE_BUSY between them
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY NOT NULL,
			password TEXT NOT NULL,
			usage_count INTEGER NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
			subscription_status BOOLEAN NOT NULL DEFAULT FALSE
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Get returns the record for username
func (s *SQLiteStore) Get(ctx context.Context, username string) (User, error) {
	return getUser(ctx, s.db, username)
}

// Create inserts a new record
func (s *SQLiteStore) Create(ctx context.Context, username string, user User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password, usage_count, subscription_status) VALUES (?, ?, ?, ?)",
		username, user.Password, user.UsageCount, user.SubscriptionStatus)
	if isConstraintViolation(err) {
		return ErrExists
	}
	return err
}

// Update applies fn to the row inside a transaction
func (s *SQLiteStore) Update(ctx context.Context, username string, fn func(*User) error) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	u, err := getUser(ctx, tx, username)
	if err != nil {
		return User{}, err
	}
	if err := fn(&u); err != nil {
		return User{}, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET password = ?, usage_count = ?, subscription_status = ? WHERE username = ?",
		u.Password, u.UsageCount, u.SubscriptionStatus, username)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(); err != nil {
		return User{}, err
	}
	return u, nil
}

// All returns every record
func (s *SQLiteStore) All(ctx context.Context) (map[string]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT username, password, usage_count, subscription_status FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := map[string]User{}
	for rows.Next() {
		var name string
		var u User
		if err := rows.Scan(&name, &u.Password, &u.UsageCount, &u.SubscriptionStatus); err != nil {
			return nil, err
		}
		users[name] = u
	}
	return users, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getUser(ctx context.Context, q queryer, username string) (User, error) {
	var u User
	err := q.QueryRowContext(ctx,
		"SELECT password, usage_count, subscription_status FROM users WHERE username = ?",
		username,
	).Scan(&u.Password, &u.UsageCount, &u.SubscriptionStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
