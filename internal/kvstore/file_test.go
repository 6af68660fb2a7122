// 本文件用于文件键值存储测试
package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStore_PersistAcrossRestart(t *testing.T) {
	ctx := context.Background()
	storePath := filepath.Join(t.TempDir(), "store.json")

	store, err := NewFileStore(storePath, FileOptions{})
	if err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	if err := store.Set(ctx, "ai4free_knowledge_bases", `[{"id":"kb_1"}]`); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	_ = store.Close()

	reopened, err := NewFileStore(storePath, FileOptions{})
	if err != nil {
		t.Fatalf("reopen store failed: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	value, ok, err := reopened.Get(ctx, "ai4free_knowledge_bases")
	if err != nil || !ok {
		t.Fatalf("expected persisted key, ok=%v err=%v", ok, err)
	}
	if value != `[{"id":"kb_1"}]` {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestFileStore_CorruptFileFallback(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.json")
	if err := os.WriteFile(storePath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file failed: %v", err)
	}

	store, err := NewFileStore(storePath, FileOptions{})
	if err != nil {
		t.Fatalf("corrupt file should fall back to empty store, got %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	keys, _ := store.Keys(context.Background())
	if len(keys) != 0 {
		t.Fatalf("expected empty store, got %v", keys)
	}
	stats := store.Stats()
	if stats.CorruptFallbackTotal != 1 {
		t.Fatalf("expected corrupt fallback counted, got %+v", stats)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	foundBackup := false
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "store.json.corrupt-") && strings.HasSuffix(entry.Name(), ".bak") {
			foundBackup = true
			data, _ := os.ReadFile(filepath.Join(dir, entry.Name()))
			if string(data) != "{not json" {
				t.Fatalf("backup content mismatch: %q", data)
			}
		}
	}
	if !foundBackup {
		t.Fatal("expected corrupt backup file")
	}
}

func TestFileStore_WriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "store.json")
	store, err := NewFileStore(storePath, FileOptions{})
	if err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// 用同名目录占住目标路径，使重命名失败
	if err := os.Remove(storePath); err != nil {
		t.Fatalf("remove store file failed: %v", err)
	}
	if err := os.Mkdir(storePath, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(storePath, "keep"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write keep failed: %v", err)
	}

	if err := store.Set(ctx, "a", "2"); err == nil {
		t.Fatal("expected write failure")
	}
	value, _, _ := store.Get(ctx, "a")
	if value != "1" {
		t.Fatalf("expected in-memory value rolled back to 1, got %q", value)
	}
	if store.Stats().PersistWriteFailureTotal != 1 {
		t.Fatalf("expected write failure counted, got %+v", store.Stats())
	}
}

func TestFileStore_ReloadsExternalChange(t *testing.T) {
	ctx := context.Background()
	storePath := filepath.Join(t.TempDir(), "store.json")
	reloaded := make(chan struct{}, 4)
	store, err := NewFileStore(storePath, FileOptions{
		Watch:    true,
		OnReload: func() { reloaded <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := writeFileAtomic(storePath, []byte(`{"a":"from-other-process"}`), 0o644); err != nil {
		t.Fatalf("external write failed: %v", err)
	}
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload after external change")
	}
	value, _, _ := store.Get(ctx, "a")
	if value != "from-other-process" {
		t.Fatalf("expected reloaded value, got %q", value)
	}
	if store.Stats().ReloadTotal < 1 {
		t.Fatalf("expected reload counted, got %+v", store.Stats())
	}
}

func TestFileStore_ReloadIgnoresOwnWrite(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	store, err := NewFileStore(storePath, FileOptions{})
	if err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Set(context.Background(), "a", "1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	store.reload()
	if store.Stats().ReloadTotal != 0 {
		t.Fatalf("own write must not count as reload, got %+v", store.Stats())
	}
}

func TestBuildCorruptBackupPath(t *testing.T) {
	got := buildCorruptBackupPath("/data/store.json")
	if !strings.HasPrefix(got, "/data/store.json.corrupt-") || !strings.HasSuffix(got, ".bak") {
		t.Fatalf("unexpected backup path %q", got)
	}
}
