/*
   Copyright (c) 2023, btnmasher
   All rights reserved.
   Use of this source code is governed by a BSD-style
   license that can be found in the LICENSE file.
*/

package ircd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore backs SASL PLAIN verification (spec.md section 4.1's
// account store), queryable over either Postgres or SQLite depending on
// configuration.
type CredentialStore struct {
	db      *sql.DB
	timeout time.Duration
}

// DatabaseConfig configures the credential store's connection pool, per
// spec.md section 6's "database.*" table.
type DatabaseConfig struct {
	Driver         string // "postgres" or "sqlite3"
	DSN            string
	MaxPoolSize    int
	MinPoolSize    int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

// OpenCredentialStore opens the configured driver and applies the pool
// settings. The caller owns the returned store's lifetime and must Close it.
func OpenCredentialStore(cfg DatabaseConfig) (*CredentialStore, error) {
	if cfg.Driver != "postgres" && cfg.Driver != "sqlite3" {
		return nil, fmt.Errorf("ircd: unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxPoolSize > 0 {
		db.SetMaxOpenConns(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		db.SetMaxIdleConns(cfg.MinPoolSize)
	}
	if cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(cfg.IdleTimeout)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &CredentialStore{db: db, timeout: timeout}, nil
}

func (s *CredentialStore) Close() error { return s.db.Close() }

// Verify looks up account and compares password against its stored bcrypt
// hash. Returns ErrPasswdMismatch for a wrong password or missing account
// (the two are not distinguished, to avoid account enumeration), and wraps
// any underlying database error so callers can tell apart a refused
// authentication from a store outage (spec.md section 7's External kind).
func (s *CredentialStore) Verify(ctx context.Context, account, password string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var hash string
	row := s.db.QueryRowContext(ctx, `SELECT password_hash FROM accounts WHERE account_name = $1`, account)
	switch err := row.Scan(&hash); {
	case err == sql.ErrNoRows:
		return ErrPasswdMismatch
	case err != nil:
		return fmt.Errorf("%w: %v", ErrCredentialStoreDown, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrPasswdMismatch
	}
	return nil
}
