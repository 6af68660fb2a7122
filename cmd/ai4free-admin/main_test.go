// 本文件用于离线管理命令的测试用例
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	storeFile := filepath.Join(dir, "data.json")
	configPath := filepath.Join(dir, "config.yaml")
	body := "storage_backend: file\nstorage_file: " + storeFile + "\nstorage_watch: false\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return configPath, storeFile
}

func TestRunWithArgs_ShowDefaults(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	var stdout, stderr bytes.Buffer

	code := runWithArgs([]string{"-config", configPath, "-action", "show"}, &stdout, &stderr)
	if code != exitCodeOK {
		t.Fatalf("show exit code expected %d, got %d: %s", exitCodeOK, code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "knowledge bases: 8") {
		t.Fatalf("stdout expected default catalog, got: %s", stdout.String())
	}

	stdout.Reset()
	code = runWithArgs([]string{"-config", configPath, "-action", "show", "-target", "topics"}, &stdout, &stderr)
	if code != exitCodeOK || !strings.Contains(stdout.String(), "topics: 3") {
		t.Fatalf("unexpected topics output %d: %s", code, stdout.String())
	}
}

func TestRunWithArgs_ImportExportReset(t *testing.T) {
	configPath, storeFile := writeTestConfig(t)
	input := filepath.Join(t.TempDir(), "kb.json")
	payload := `[{"id":"a","name":"A","url":"/a","order":1,"iframeStrategy":"snapshot"}]`
	if err := os.WriteFile(input, []byte(payload), 0o644); err != nil {
		t.Fatalf("write input failed: %v", err)
	}
	var stdout, stderr bytes.Buffer

	code := runWithArgs([]string{"-config", configPath, "-action", "import", "-file", input}, &stdout, &stderr)
	if code != exitCodeOK {
		t.Fatalf("import exit code expected %d, got %d: %s", exitCodeOK, code, stderr.String())
	}
	raw, err := os.ReadFile(storeFile)
	if err != nil {
		t.Fatalf("store file should exist: %v", err)
	}
	if !strings.Contains(string(raw), "ai4free_knowledge_bases") {
		t.Fatalf("store file should contain the collection key, got: %s", raw)
	}

	stdout.Reset()
	code = runWithArgs([]string{"-config", configPath, "-action", "export"}, &stdout, &stderr)
	if code != exitCodeOK || !strings.Contains(stdout.String(), `"iframeStrategy": "snapshot"`) {
		t.Fatalf("export should contain the imported record, got %d: %s", code, stdout.String())
	}

	stdout.Reset()
	code = runWithArgs([]string{"-config", configPath, "-action", "keys"}, &stdout, &stderr)
	if code != exitCodeOK || !strings.Contains(stdout.String(), "backend=file") {
		t.Fatalf("unexpected keys output %d: %s", code, stdout.String())
	}

	stdout.Reset()
	code = runWithArgs([]string{"-config", configPath, "-action", "reset"}, &stdout, &stderr)
	if code != exitCodeOK {
		t.Fatalf("reset exit code expected %d, got %d", exitCodeOK, code)
	}
	stdout.Reset()
	runWithArgs([]string{"-config", configPath, "-action", "show"}, &stdout, &stderr)
	if !strings.Contains(stdout.String(), "knowledge bases: 8") {
		t.Fatalf("reset should restore defaults, got: %s", stdout.String())
	}
}

func TestRunWithArgs_ImportInvalid(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	input := filepath.Join(t.TempDir(), "kb.json")
	if err := os.WriteFile(input, []byte(`[{"id":"a","url":"/a","order":1}]`), 0o644); err != nil {
		t.Fatalf("write input failed: %v", err)
	}
	var stdout, stderr bytes.Buffer

	code := runWithArgs([]string{"-config", configPath, "-action", "import", "-file", input}, &stdout, &stderr)
	if code != exitCodeInvalid {
		t.Fatalf("invalid import exit code expected %d, got %d", exitCodeInvalid, code)
	}
	if !strings.Contains(stderr.String(), "第 1 项") {
		t.Fatalf("stderr expected validation message, got: %s", stderr.String())
	}
}

func TestRunWithArgs_UsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runWithArgs([]string{"-action", "drop"}, &stdout, &stderr); code != exitCodeUsage {
		t.Fatalf("unknown action expected %d, got %d", exitCodeUsage, code)
	}
	if code := runWithArgs([]string{"-action", "import"}, &stdout, &stderr); code != exitCodeUsage {
		t.Fatalf("import without file expected %d, got %d", exitCodeUsage, code)
	}
	if code := runWithArgs([]string{"-target", "users"}, &stdout, &stderr); code != exitCodeUsage {
		t.Fatalf("unknown target expected %d, got %d", exitCodeUsage, code)
	}
}

func TestRunWithArgs_ImportTopicsDuplicateIDs(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	input := filepath.Join(t.TempDir(), "topics.json")
	body := `[{"id":"a","name":"A","category":"c","articles":[{"id":"p","title":"1","contentType":"richtext"},{"id":"p","title":"2","contentType":"richtext"}]}]`
	if err := os.WriteFile(input, []byte(body), 0o644); err != nil {
		t.Fatalf("write input failed: %v", err)
	}
	var stdout, stderr bytes.Buffer

	code := runWithArgs([]string{"-config", configPath, "-action", "import", "-target", "topics", "-file", input}, &stdout, &stderr)
	if code != exitCodeInvalid {
		t.Fatalf("duplicate article ids expected exit %d, got %d", exitCodeInvalid, code)
	}
	if !strings.Contains(stderr.String(), "第 1 个专题的第 2 篇文章标识（id）重复") {
		t.Fatalf("stderr expected duplicate message, got: %s", stderr.String())
	}
}
