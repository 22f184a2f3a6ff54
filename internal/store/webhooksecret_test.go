// dispatchctl - IPTV provider orchestration, probing, and bandwidth tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchctl

package store

import (
	"context"
	"testing"
)

func TestWebhookSecretStoreNoSecretConfigured(t *testing.T) {
	db := setupTestDB(t)
	ws := NewWebhookSecretStore(db)

	ok, err := ws.Verify(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("Verify = true with no secret configured, want false")
	}
}

func TestWebhookSecretStoreSetAndVerify(t *testing.T) {
	db := setupTestDB(t)
	ws := NewWebhookSecretStore(db)
	ctx := context.Background()

	if err := ws.SetSecret(ctx, "correct horse battery staple"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}

	ok, err := ws.Verify(ctx, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("Verify = false for the correct secret")
	}

	ok, err = ws.Verify(ctx, "wrong secret")
	if err != nil {
		t.Fatalf("Verify wrong: %v", err)
	}
	if ok {
		t.Fatal("Verify = true for an incorrect secret")
	}

	if err := ws.SetSecret(ctx, "new secret"); err != nil {
		t.Fatalf("SetSecret replace: %v", err)
	}
	ok, err = ws.Verify(ctx, "new secret")
	if err != nil {
		t.Fatalf("Verify after replace: %v", err)
	}
	if !ok {
		t.Fatal("Verify = false for the replaced secret")
	}
}
