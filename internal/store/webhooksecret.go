// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// WebhookSecretStore hashes and verifies the single shared secret
// internal/notify's webhook sink sends alongside every dispatch, so the
// plaintext from config never has to be compared or stored in the clear.
type WebhookSecretStore struct {
	db *DB
}

func NewWebhookSecretStore(db *DB) *WebhookSecretStore { return &WebhookSecretStore{db: db} }

// SetSecret bcrypt-hashes secret and replaces the stored singleton row.
// Called once at startup when config.Notify.WebhookSecret is non-empty.
func (s *WebhookSecretStore) SetSecret(ctx context.Context, secret string) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("store: hash webhook secret: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO webhook_secret (id, secret_hash, created_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET secret_hash=excluded.secret_hash, created_at=excluded.created_at`,
		string(hash), time.Now())
	if err != nil {
		return fmt.Errorf("store: save webhook secret: %w", err)
	}
	return nil
}

// Verify reports whether candidate matches the stored secret. It returns
// (false, nil) — not an error — when no secret has ever been configured,
// the same result as for a wrong secret; the two cases are not
// distinguished.
func (s *WebhookSecretStore) Verify(ctx context.Context, candidate string) (bool, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	var hash string
	err := s.db.conn.QueryRowContext(ctx, `SELECT secret_hash FROM webhook_secret WHERE id = 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: load webhook secret: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)); err != nil {
		return false, nil
	}
	return true, nil
}
