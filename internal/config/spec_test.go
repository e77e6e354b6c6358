package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSpecFile(t *testing.T) {
	t.Run("valid spec loads", func(t *testing.T) {
		spec, err := LoadSpecFile(filepath.Join("testdata", "graph.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !spec.IsValidType("image") {
			t.Fatalf("expected image type to be valid")
		}
		image, _ := spec.TypeByName("Image")
		if len(image.Entries) != 3 || len(image.Reap) != 1 {
			t.Fatalf("expected 3 entries and 1 reap on Image, got %d and %d", len(image.Entries), len(image.Reap))
		}
	})

	t.Run("missing types", func(t *testing.T) {
		path := writeTempSpec(t, "version: 1\ntypes: []\n")
		if _, err := LoadSpecFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("duplicate type names", func(t *testing.T) {
		path := writeTempSpec(t, "version: 1\ntypes:\n  - name: Image\n  - name: image\n")
		if _, err := LoadSpecFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("entry without property", func(t *testing.T) {
		path := writeTempSpec(t, "version: 1\ntypes:\n  - name: Image\n    entries:\n      - { child: Pixels }\n  - name: Pixels\n")
		if _, err := LoadSpecFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown entry op", func(t *testing.T) {
		path := writeTempSpec(t, "version: 1\ntypes:\n  - name: Image\n    entries:\n      - { child: Pixels, property: image, ops: [explode] }\n  - name: Pixels\n")
		if _, err := LoadSpecFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("reap op on entry", func(t *testing.T) {
		path := writeTempSpec(t, "version: 1\ntypes:\n  - name: Image\n    entries:\n      - { child: Pixels, property: image, ops: [reap] }\n  - name: Pixels\n")
		if _, err := LoadSpecFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsupported reap scope", func(t *testing.T) {
		path := writeTempSpec(t, "version: 1\ntypes:\n  - name: Image\n    reap:\n      - { column: fileset, target: Fileset, scope: some }\n  - name: Fileset\n")
		if _, err := LoadSpecFile(path); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestSpecFileHelpers(t *testing.T) {
	spec, err := LoadSpecFile(filepath.Join("testdata", "graph.yaml"))
	if err != nil {
		t.Fatalf("loading spec file: %v", err)
	}

	t.Run("TypeByName case-insensitive", func(t *testing.T) {
		if _, ok := spec.TypeByName("FILESET"); !ok {
			t.Fatalf("expected to find Fileset type")
		}
	})

	t.Run("IsValidType", func(t *testing.T) {
		if spec.IsValidType("dragon") {
			t.Fatalf("expected dragon to be invalid")
		}
	})
}

func writeTempSpec(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp spec: %v", err)
	}
	return path
}
