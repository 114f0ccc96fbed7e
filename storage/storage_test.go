package storage

import (
	"context"
	"path/filepath"
	"testing"
)

// exerciseKV runs the shared contract against any KV implementation
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if _, ok, err := kv.Get(ctx, "coverage_codes"); err != nil || ok {
		t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := kv.Put(ctx, "coverage_codes", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, ok, err := kv.Get(ctx, "coverage_codes")
	if err != nil || !ok {
		t.Fatalf("Expected stored key, got ok=%v err=%v", ok, err)
	}
	if string(value) != `[{"id":"1"}]` && string(value) != `[{"id": "1"}]` {
		t.Errorf("Unexpected stored value %s", value)
	}

	if err := kv.Put(ctx, "coverage_codes", []byte(`[]`)); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	value, _, _ = kv.Get(ctx, "coverage_codes")
	if string(value) != `[]` {
		t.Errorf("Expected overwritten value [], got %s", value)
	}

	if _, ok, _ := kv.Get(ctx, "medical_plans"); ok {
		t.Error("Keys should be independent")
	}
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	value := []byte(`[1]`)
	if err := kv.Put(ctx, "k", value); err != nil {
		t.Fatal(err)
	}
	value[1] = '2'

	got, _, _ := kv.Get(ctx, "k")
	if string(got) != `[1]` {
		t.Errorf("Stored value was aliased, got %s", got)
	}
}

func TestMemoryKVCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewMemory().Put(ctx, "k", nil); err == nil {
		t.Error("Expected error on cancelled context")
	}
}

func TestSQLiteKV(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "benefits.db")

	kv, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer kv.Close()

	exerciseKV(t, kv)

	if kv.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, kv.Path())
	}
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "benefits.db")

	kv, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := kv.Put(ctx, "medical_plans", []byte(`[{"id":"p1"}]`)); err != nil {
		t.Fatal(err)
	}
	kv.Close()

	reopened, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "medical_plans")
	if err != nil || !ok {
		t.Fatalf("Expected persisted value, got ok=%v err=%v", ok, err)
	}
	if string(value) != `[{"id":"p1"}]` {
		t.Errorf("Unexpected value %s", value)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "redis", "", ""); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestOpenEmptySQLitePath(t *testing.T) {
	if _, err := Open(context.Background(), "sqlite", "", ""); err == nil {
		t.Error("Expected error for empty sqlite path")
	}
}

func TestOpenPostgresRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), "postgres", "", ""); err == nil {
		t.Error("Expected error for empty DATABASE_URL")
	}
}
