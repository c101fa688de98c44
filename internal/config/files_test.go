package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveDescriptionsRecursive(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "soc.csr.yaml")
	nested := filepath.Join(root, "periph", "uart.csr.json")
	other := filepath.Join(root, "periph", "notes.txt")
	generated := filepath.Join(root, "build", "old.csr.yaml")
	writeFile(t, top, "name: soc")
	writeFile(t, nested, `{"name": "uart"}`)
	writeFile(t, other, "ignore me")
	writeFile(t, generated, "name: old")

	cfg := DefaultConfig()
	cfg.Exclude = []string{"build/*"}

	files, err := cfg.ResolveDescriptions(root)
	if err != nil {
		t.Fatalf("ResolveDescriptions: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 description files, got %v", files)
	}
	if !containsPath(files, top) || !containsPath(files, nested) {
		t.Fatalf("expected %s and %s, got %v", top, nested, files)
	}
}

func TestResolveDescriptionsSingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "regs.yaml")
	writeFile(t, path, "name: regs")

	files, err := DefaultConfig().ResolveDescriptions(path)
	if err != nil {
		t.Fatalf("ResolveDescriptions: %v", err)
	}
	if len(files) != 1 || files[0] != path {
		t.Fatalf("expected only %s, got %v", path, files)
	}
}

func TestResolveDescriptionsSkipsConfigFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "csrc.json"), `{"busWidth": 32}`)
	writeFile(t, filepath.Join(root, "soc.csr.json"), `{"name": "soc"}`)

	cfg := DefaultConfig()
	cfg.Descriptions = []string{"*.json"}
	files, err := cfg.ResolveDescriptions(root)
	if err != nil {
		t.Fatalf("ResolveDescriptions: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "soc.csr.json" {
		t.Fatalf("expected only soc.csr.json, got %v", files)
	}
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}
