// 本文件用于文件监控相关测试
package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestIsTempFile(t *testing.T) {
	cases := []struct {
		name     string
		filePath string
		want     bool
	}{
		{name: "tmp", filePath: "/tmp/a.tmp", want: true},
		{name: "part", filePath: "a.part", want: true},
		{name: "swp", filePath: "a.swp", want: true},
		{name: "uppercase", filePath: "A.TMP", want: true},
		{name: "atomic-write", filePath: "/data/.ai4free.json.tmp-123456", want: true},
		{name: "store", filePath: "/data/ai4free.json", want: false},
		{name: "similar", filePath: "a.tmpx", want: false},
		{name: "empty", filePath: "", want: false},
		{name: "root", filePath: "/", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isTempFile(tc.filePath)
			if got != tc.want {
				t.Fatalf("isTempFile(%q) = %v, want %v", tc.filePath, got, tc.want)
			}
		})
	}
}

func TestIsTargetFileEvent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "store.json")
	fw, err := NewFileWatcher(target, 10*time.Millisecond, func(string) {})
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	t.Cleanup(func() { _ = fw.Close() })

	if !fw.isTargetFileEvent(fsnotify.Event{Name: target, Op: fsnotify.Write}) {
		t.Fatal("expected write on target to match")
	}
	if fw.isTargetFileEvent(fsnotify.Event{Name: filepath.Join(dir, "other.json"), Op: fsnotify.Write}) {
		t.Fatal("expected other file to be ignored")
	}
	if fw.isTargetFileEvent(fsnotify.Event{Name: target + ".tmp-1", Op: fsnotify.Create}) {
		t.Fatal("expected temp file to be ignored")
	}
	if fw.isTargetFileEvent(fsnotify.Event{Name: target, Op: fsnotify.Chmod}) {
		t.Fatal("expected chmod to be ignored")
	}
}

func TestFileWatcherNotifiesOnChange(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "store.json")
	if err := os.WriteFile(target, []byte("{}"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changed := make(chan string, 4)
	fw, err := NewFileWatcher(target, 20*time.Millisecond, func(path string) { changed <- path })
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	t.Cleanup(func() { _ = fw.Close() })
	if err := fw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(target, []byte(`{"a":"1"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change notification")
	}
}

func TestNewFileWatcherRejectsEmptyInput(t *testing.T) {
	if _, err := NewFileWatcher("", 0, func(string) {}); err == nil {
		t.Fatal("expected error for empty target")
	}
	if _, err := NewFileWatcher("a.json", 0, nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}
