package gateway

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/usecase"
)

const checksumSuffix = ".blake2b"

// TarballBuilder packs published content into a gzip compressed tarball
// with a blake2b-256 checksum file next to it.
type TarballBuilder struct{}

func NewTarballBuilder() *TarballBuilder {
	return &TarballBuilder{}
}

func (b *TarballBuilder) Build(ctx context.Context, sourceDir, outDir string, h domain.Holon) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create artifact directory")
	}

	artifact := filepath.Join(outDir, fmt.Sprintf("%s-v%d.tar.gz", h.ID, h.Version))
	tmp := artifact + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", errors.Wrap(err, "create artifact")
	}

	sum, _ := blake2b.New256(nil)
	err = writeTarball(ctx, io.MultiWriter(f, sum), sourceDir)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "write artifact")
	}

	if err := os.Rename(tmp, artifact); err != nil {
		return "", errors.Wrap(err, "finalize artifact")
	}
	checksum := hex.EncodeToString(sum.Sum(nil))
	if err := os.WriteFile(artifact+checksumSuffix, []byte(checksum+"  "+filepath.Base(artifact)+"\n"), 0o644); err != nil {
		return "", errors.Wrap(err, "write checksum")
	}
	return artifact, nil
}

func writeTarball(ctx context.Context, w io.Writer, sourceDir string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == sourceDir || !(d.IsDir() || d.Type().IsRegular()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

var _ usecase.ArtifactBuilder = (*TarballBuilder)(nil)
