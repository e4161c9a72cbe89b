package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/JaimeStill/postmottak/pkg/storage"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	sys := storage.NewMemory()

	if err := sys.Upload(ctx, "in-progress/Rf1350/a-flowstatus.json", strings.NewReader("one"), "application/json"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := sys.Upload(ctx, "in-progress/Rf1350/a-flowstatus.json", strings.NewReader("two"), "application/json"); err != nil {
		t.Fatalf("Upload overwrite: %v", err)
	}

	rc, err := sys.Download(ctx, "in-progress/Rf1350/a-flowstatus.json")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "two" {
		t.Errorf("content: got %q", data)
	}

	if _, err := sys.Download(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryListAndDeletePrefix(t *testing.T) {
	ctx := context.Background()
	sys := storage.NewMemory()

	for _, key := range []string{"failed/Rf1350/x", "in-progress/Innsyn/b", "in-progress/Rf1350/a"} {
		if err := sys.Upload(ctx, key, strings.NewReader("{}"), "application/json"); err != nil {
			t.Fatalf("Upload %s: %v", key, err)
		}
	}

	items, err := sys.List(ctx, "in-progress/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Key != "in-progress/Innsyn/b" {
		t.Errorf("items: got %+v", items)
	}

	n, err := sys.DeletePrefix(ctx, "in-progress/")
	if err != nil || n != 2 {
		t.Errorf("DeletePrefix: got (%d, %v)", n, err)
	}

	rest, err := sys.List(ctx, "")
	if err != nil || len(rest) != 1 || rest[0].Key != "failed/Rf1350/x" {
		t.Errorf("failed blob must survive: got (%+v, %v)", rest, err)
	}
	if err := sys.Delete(ctx, "in-progress/Rf1350/a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete after DeletePrefix = %v, want ErrNotFound", err)
	}
}

func TestMemoryRejectsTraversal(t *testing.T) {
	sys := storage.NewMemory()
	err := sys.Upload(context.Background(), "../escape", strings.NewReader(""), "text/plain")
	if !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("got %v, want ErrInvalidKey", err)
	}
}
