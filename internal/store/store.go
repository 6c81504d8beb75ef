// Package store persists accounts keyed by username.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for an unknown username
	ErrNotFound = errors.New("user not found")
	// ErrExists is returned when creating a username that is already taken
	ErrExists = errors.New("user already exists")
)

// User is the persisted account record
type User struct {
	Password           string `json:"password"`
	UsageCount         int    `json:"usage_count"`
	SubscriptionStatus bool   `json:"subscription_status"`
}

// Store is a username-keyed account store. Usernames are case-sensitive.
type Store interface {
	Get(ctx context.Context, username string) (User, error)
	// Create inserts a new record, failing with ErrExists for a taken name
	Create(ctx context.Context, username string, user User) error
	// Update applies fn to the record as one read-modify-write step
	Update(ctx context.Context, username string, fn func(*User) error) (User, error)
	All(ctx context.Context) (map[string]User, error)
	Close() error
}

// Open returns the store for driver: "json" (a single JSON document) or
// "sqlite3".
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "json":
		return NewJSONStore(dsn)
	case "sqlite", "sqlite3":
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", driver)
	}
}
