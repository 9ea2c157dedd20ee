package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/totegamma/starnet/internal/domain"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	store := NewFileContentStore()
	ctx := context.Background()
	root := t.TempDir()

	if err := store.Validate(ctx, ""); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for empty path got %v", err)
	}
	if err := store.Validate(ctx, filepath.Join(root, "missing")); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for missing path got %v", err)
	}

	onlyDescriptor := filepath.Join(root, "desc")
	writeFiles(t, onlyDescriptor, map[string]string{domain.DescriptorFileName: "{}"})
	if err := store.Validate(ctx, onlyDescriptor); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for descriptor only dir got %v", err)
	}

	src := filepath.Join(root, "src")
	writeFiles(t, src, map[string]string{"main.txt": "hello"})
	if err := store.Validate(ctx, src); err != nil {
		t.Fatalf("expected valid source got %v", err)
	}
}

func TestCopyDigestStable(t *testing.T) {
	store := NewFileContentStore()
	ctx := context.Background()
	root := t.TempDir()

	src := filepath.Join(root, "src")
	writeFiles(t, src, map[string]string{
		"main.txt":      "hello",
		"lib/util.txt":  "world",
		"lib/extra.txt": "!",
	})

	dst := filepath.Join(root, "published")
	info, err := store.Copy(ctx, src, dst)
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if info.Files != 3 || info.Size != 11 {
		t.Fatalf("expected 3 files and 11 bytes got %d and %d", info.Files, info.Size)
	}

	again, err := store.Digest(ctx, src)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if again.Digest != info.Digest {
		t.Fatalf("expected digest of source and copy to match: %s != %s", again.Digest, info.Digest)
	}

	writeFiles(t, dst, map[string]string{"main.txt": "tampered"})
	changed, _ := store.Digest(ctx, dst)
	if changed.Digest == info.Digest {
		t.Fatalf("expected digest to change after modification")
	}

	_, err = store.Digest(ctx, filepath.Join(root, "nothing"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestInstallSkipsExisting(t *testing.T) {
	store := NewFileContentStore()
	ctx := context.Background()
	root := t.TempDir()

	src := filepath.Join(root, "src")
	writeFiles(t, src, map[string]string{"main.txt": "v2"})
	dst := filepath.Join(root, "installed")
	writeFiles(t, dst, map[string]string{"main.txt": "v1"})

	skipped, err := store.Install(ctx, src, dst, false)
	if err != nil || !skipped {
		t.Fatalf("expected install to be skipped got %v (%v)", skipped, err)
	}
	data, _ := os.ReadFile(filepath.Join(dst, "main.txt"))
	if string(data) != "v1" {
		t.Fatalf("expected existing content to be kept got %q", data)
	}

	skipped, err = store.Install(ctx, src, dst, true)
	if err != nil || skipped {
		t.Fatalf("expected reinstall got %v (%v)", skipped, err)
	}
	data, _ = os.ReadFile(filepath.Join(dst, "main.txt"))
	if string(data) != "v2" {
		t.Fatalf("expected content to be replaced got %q", data)
	}
}

func TestManifestAndDescriptor(t *testing.T) {
	store := NewFileContentStore()
	ctx := context.Background()
	dir := t.TempDir()

	path, err := store.WriteManifest(ctx, dir, domain.Manifest{ID: "a", Version: 3, Digest: "xxh3:00"})
	if err != nil {
		t.Fatalf("write manifest failed: %v", err)
	}
	if filepath.Base(path) != domain.ManifestFileName {
		t.Fatalf("unexpected manifest path %s", path)
	}

	m, err := store.ReadManifest(ctx, dir)
	if err != nil {
		t.Fatalf("read manifest failed: %v", err)
	}
	if m.ID != "a" || m.Version != 3 {
		t.Fatalf("unexpected manifest %+v", m)
	}

	if err := store.WriteDescriptor(ctx, dir, domain.Descriptor{ID: "a", Version: 3, Family: "oapps"}); err != nil {
		t.Fatalf("write descriptor failed: %v", err)
	}
	d, err := store.ReadDescriptor(ctx, filepath.Join(dir, domain.DescriptorFileName))
	if err != nil {
		t.Fatalf("read descriptor failed: %v", err)
	}
	if d.Family != "oapps" {
		t.Fatalf("unexpected descriptor %+v", d)
	}

	if _, err := store.ReadDescriptor(ctx, t.TempDir()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}

	writeFiles(t, dir, map[string]string{"broken/" + domain.ManifestFileName: "{"})
	if _, err := store.ReadManifest(ctx, filepath.Join(dir, "broken")); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}
