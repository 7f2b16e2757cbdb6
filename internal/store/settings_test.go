package store

import (
	"context"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
)

func TestResolveJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := ResolveJWTSecret(ctx, database, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := ResolveJWTSecret(ctx, database, "")
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestResolveJWTSecret_ConfiguredWins(t *testing.T) {
	database := db.NewTestDB(t)

	secret, err := ResolveJWTSecret(context.Background(), database, "from-config")
	if err != nil {
		t.Fatal(err)
	}
	if secret != "from-config" {
		t.Fatalf("expected configured secret, got %q", secret)
	}

	if _, ok, _ := GetSetting(context.Background(), database, jwtSecretKey); ok {
		t.Error("configured secret should not be persisted")
	}
}

func TestSetSettingOverwrites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SetSetting(ctx, database, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := SetSetting(ctx, database, "k", "v2"); err != nil {
		t.Fatal(err)
	}

	value, ok, err := GetSetting(ctx, database, "k")
	if err != nil || !ok {
		t.Fatalf("GetSetting: ok=%v err=%v", ok, err)
	}
	if value != "v2" {
		t.Errorf("expected 'v2', got %q", value)
	}
}
