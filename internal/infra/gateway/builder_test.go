package gateway

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"

	"github.com/totegamma/starnet/internal/domain"
)

func TestTarballBuilder(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "content")
	writeFiles(t, src, map[string]string{
		"main.txt":     "hello",
		"lib/util.txt": "world",
	})

	builder := NewTarballBuilder()
	artifact, err := builder.Build(context.Background(), src, filepath.Join(root, "out"), domain.Holon{ID: "abc", Version: 2})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if filepath.Base(artifact) != "abc-v2.tar.gz" {
		t.Fatalf("unexpected artifact name %s", artifact)
	}

	data, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	sum := blake2b.Sum256(data)
	checksum, err := os.ReadFile(artifact + checksumSuffix)
	if err != nil {
		t.Fatalf("read checksum: %v", err)
	}
	if !strings.HasPrefix(string(checksum), hex.EncodeToString(sum[:])) {
		t.Fatalf("checksum mismatch: %s", checksum)
	}

	f, _ := os.Open(artifact)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		if header.Typeflag == tar.TypeReg {
			names = append(names, header.Name)
		}
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "lib/util.txt" || names[1] != "main.txt" {
		t.Fatalf("unexpected tar entries %v", names)
	}
}

func TestTarballBuilderCancelled(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "content")
	writeFiles(t, src, map[string]string{"main.txt": "hello"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(root, "out")
	if _, err := NewTarballBuilder().Build(ctx, src, out, domain.Holon{ID: "abc", Version: 1}); err == nil {
		t.Fatalf("expected cancelled build to fail")
	}
	if _, err := os.Stat(filepath.Join(out, "abc-v1.tar.gz")); !os.IsNotExist(err) {
		t.Fatalf("expected no artifact after cancellation")
	}
}
