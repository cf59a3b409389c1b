package storage

import (
	"context"
	"testing"
)

func TestLocalStorePutGetRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "reports/findings.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "reports/findings.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("got %q, want the bytes written by Put", got)
	}
}

func TestLocalStoreListReturnsPutKeys(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	store.Put(ctx, "exports/findings.csv", []byte("a"))
	store.Put(ctx, "exports/dashboard.html", []byte("b"))
	store.Put(ctx, "other/unrelated.txt", []byte("c"))

	keys, err := store.List(ctx, "exports")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys under exports/, got %v", keys)
	}
}

func TestLocalStoreGetMissingKeyErrors(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Error("expected an error reading a key that was never written")
	}
}
