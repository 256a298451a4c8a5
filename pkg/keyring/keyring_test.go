package keyring

import (
	"bytes"
	"context"
	"testing"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"

	"github.com/e2llm/repoconf/pkg/storage"
)

func armoredKey(t *testing.T, name string) ([]byte, string) {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", "build@example.org", nil)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor: %v", err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes(), Fingerprint(e)
}

func TestImportSaveReload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFSBackend(t.TempDir())
	k, err := Open(ctx, store, "trusted.asc")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(k.Trusted()) != 0 {
		t.Fatal("expected empty keyring")
	}

	key, fp := armoredKey(t, "Repo Signing Key")
	added, err := k.Import("oss", key)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(added) != 1 || added[0] != fp {
		t.Fatalf("Import added %v, want [%s]", added, fp)
	}
	again, err := k.Import("oss", key)
	if err != nil || len(again) != 0 {
		t.Fatalf("re-import = %v, %v", again, err)
	}
	if err := k.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Open(ctx, store, "trusted.asc")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Trusted(); len(got) != 1 || got[0] != fp {
		t.Fatalf("Trusted = %v, want [%s]", got, fp)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	k, err := Open(context.Background(), storage.NewFSBackend(t.TempDir()), "trusted.asc")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := k.Import("bad", []byte("not a key")); err == nil {
		t.Fatal("expected error for garbage key")
	}
}

func TestSaveWithoutChangesWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFSBackend(t.TempDir())
	k, _ := Open(ctx, store, "trusted.asc")
	if err := k.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, _ := store.Exists(ctx, "trusted.asc"); ok {
		t.Fatal("clean keyring should not be written")
	}
}
