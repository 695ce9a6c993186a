package secret_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"masterdata/internal/secret"
)

func TestFileStore_SetGetDelete(t *testing.T) {
	store, err := secret.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Set("db:conn-1", []byte("s3cret")); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("db:conn-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "s3cret" {
		t.Errorf("got %q", got)
	}

	if err := store.Set("db:conn-1", []byte("rotated")); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get("db:conn-1")
	if string(got) != "rotated" {
		t.Errorf("overwrite failed: %q", got)
	}

	if err := store.Delete("db:conn-1"); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get("db:conn-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("deleted key returned %q", got)
	}
}

func TestFileStore_MissingKeyIsNotAnError(t *testing.T) {
	store, err := secret.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("nope")
	if err != nil || got != nil {
		t.Errorf("got %q, err %v", got, err)
	}
	if err := store.Delete("nope"); err != nil {
		t.Errorf("delete of missing key: %v", err)
	}
}

func TestFileStore_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	dir := t.TempDir()
	store, err := secret.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, "secrets.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := secret.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	reopened, err := secret.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v" {
		t.Errorf("got %q", got)
	}
}
