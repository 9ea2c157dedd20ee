package gateway

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/usecase"
)

const digestPrefix = "xxh3:"

// FileContentStore keeps holon content on the local filesystem.
type FileContentStore struct{}

func NewFileContentStore() *FileContentStore {
	return &FileContentStore{}
}

func (s *FileContentStore) Validate(ctx context.Context, path string) error {
	if path == "" {
		return domain.Validation("sourcePath is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Validation("sourcePath %s does not exist", path)
		}
		return errors.Wrap(err, "stat source")
	}

	if !info.IsDir() {
		if info.Size() == 0 {
			return domain.Validation("sourcePath %s is empty", path)
		}
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrap(err, "read source")
	}
	for _, e := range entries {
		if e.Name() != domain.DescriptorFileName {
			return nil
		}
	}
	return domain.Validation("sourcePath %s is empty", path)
}

// Digest hashes every regular file below dir together with its relative path.
func (s *FileContentStore) Digest(ctx context.Context, dir string) (domain.ContentInfo, error) {
	hasher := xxh3.New()
	var info domain.ContentInfo
	var lenBuf [8]byte

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(rel)))
		hasher.Write(lenBuf[:])
		hasher.Write([]byte(rel))

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint64(lenBuf[:], uint64(stat.Size()))
		hasher.Write(lenBuf[:])

		n, err := io.Copy(hasher, f)
		if err != nil {
			return err
		}
		info.Size += n
		info.Files++
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ContentInfo{}, domain.NotFoundError{Resource: "content " + dir}
		}
		return domain.ContentInfo{}, errors.Wrap(err, "digest content")
	}

	sum := hasher.Sum128().Bytes()
	info.Digest = digestPrefix + hex.EncodeToString(sum[:])
	return info, nil
}

func (s *FileContentStore) Copy(ctx context.Context, src, dst string) (domain.ContentInfo, error) {
	if err := os.RemoveAll(dst); err != nil {
		return domain.ContentInfo{}, errors.Wrap(err, "clear destination")
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return domain.ContentInfo{}, errors.Wrap(err, "create destination")
	}

	info, err := os.Stat(src)
	if err != nil {
		return domain.ContentInfo{}, errors.Wrap(err, "stat source")
	}
	if !info.IsDir() {
		if err := copyFile(src, filepath.Join(dst, filepath.Base(src)), info.Mode()); err != nil {
			return domain.ContentInfo{}, err
		}
		return s.Digest(ctx, dst)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fi.Mode())
	})
	if err != nil {
		return domain.ContentInfo{}, errors.Wrap(err, "copy content")
	}
	return s.Digest(ctx, dst)
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func hasContent(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func (s *FileContentStore) Install(ctx context.Context, src, dst string, overwrite bool) (bool, error) {
	if !overwrite && hasContent(dst) {
		return true, nil
	}
	_, err := s.Copy(ctx, src, dst)
	return false, err
}

func (s *FileContentStore) Remove(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

// writeJSON replaces path atomically so readers never see a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path, resource string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NotFoundError{Resource: resource}
		}
		return errors.Wrap(err, "read "+resource)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.Validation("invalid %s %s: %v", resource, path, err)
	}
	return nil
}

// resolveFile accepts either the file itself or the directory holding it.
func resolveFile(path, name string) string {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return filepath.Join(path, name)
	}
	return path
}

func (s *FileContentStore) WriteManifest(ctx context.Context, dir string, m domain.Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create manifest directory")
	}
	path := filepath.Join(dir, domain.ManifestFileName)
	if err := writeJSON(path, m); err != nil {
		return "", errors.Wrap(err, "write manifest")
	}
	return path, nil
}

func (s *FileContentStore) ReadManifest(ctx context.Context, path string) (domain.Manifest, error) {
	var m domain.Manifest
	err := readJSON(resolveFile(path, domain.ManifestFileName), "manifest", &m)
	return m, err
}

func (s *FileContentStore) WriteDescriptor(ctx context.Context, dir string, d domain.Descriptor) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create descriptor directory")
	}
	return writeJSON(filepath.Join(dir, domain.DescriptorFileName), d)
}

func (s *FileContentStore) ReadDescriptor(ctx context.Context, dir string) (domain.Descriptor, error) {
	var d domain.Descriptor
	err := readJSON(resolveFile(dir, domain.DescriptorFileName), "descriptor", &d)
	return d, err
}

var _ usecase.ContentStore = (*FileContentStore)(nil)
