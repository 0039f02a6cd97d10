package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckConfigMasksSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[server]
api_key = "hunter2"

[store]
sqlite_path = "` + filepath.ToSlash(filepath.Join(dir, "f.db")) + `"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-config", "--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-config: %v", err)
	}

	idx := strings.Index(out.String(), "{")
	var cfg map[string]any
	if err := json.Unmarshal([]byte(out.String()[idx:]), &cfg); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	server := cfg["Server"].(map[string]any)
	if server["APIKey"] != "***" {
		t.Fatalf("api key not masked: %v", server["APIKey"])
	}
}

func TestCheckConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`mode = "live"`), 0o600); err != nil {
		t.Fatal(err)
	}
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check-config", "--config", path})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("err = %v", err)
	}
}
