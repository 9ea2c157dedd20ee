package usecase

import (
	"context"
	"time"

	"github.com/totegamma/starnet/internal/domain"
)

// HolonRepository stores holon version records keyed by (id, version).
type HolonRepository interface {
	// Insert stores a new (id, version) record and fails with a Conflict
	// error when that pair already exists.
	Insert(ctx context.Context, h domain.Holon) error
	// Get resolves version domain.LatestVersion to the greatest stored version.
	Get(ctx context.Context, id string, version int) (domain.Holon, error)
	Versions(ctx context.Context, id string) ([]domain.Holon, error)
	List(ctx context.Context, q domain.HolonQuery) ([]domain.Holon, error)
	// Save overwrites the mutable fields of an existing version.
	Save(ctx context.Context, h domain.Holon) error
	// Delete removes one version, or all of them for domain.LatestVersion.
	Delete(ctx context.Context, id string, version int) (int64, error)
}

// ContentStore moves holon content between source, published and installed locations.
type ContentStore interface {
	Validate(ctx context.Context, path string) error
	Digest(ctx context.Context, dir string) (domain.ContentInfo, error)
	// Copy replaces dst with the content of src.
	Copy(ctx context.Context, src, dst string) (domain.ContentInfo, error)
	// Install copies src into dst unless dst already holds content and overwrite is false.
	Install(ctx context.Context, src, dst string, overwrite bool) (skipped bool, err error)
	Remove(ctx context.Context, path string) error
	WriteManifest(ctx context.Context, dir string, m domain.Manifest) (string, error)
	ReadManifest(ctx context.Context, path string) (domain.Manifest, error)
	WriteDescriptor(ctx context.Context, dir string, d domain.Descriptor) error
	ReadDescriptor(ctx context.Context, dir string) (domain.Descriptor, error)
}

// NetworkRegistry is the shared index other identities discover holons from.
type NetworkRegistry interface {
	// Register replaces the single entry held for (family, id).
	Register(ctx context.Context, entry domain.NetworkEntry) error
	// Unregister removes the entry only while it still points at version;
	// domain.LatestVersion removes it whatever version it holds.
	Unregister(ctx context.Context, family, id string, version int) error
	List(ctx context.Context, family string) ([]domain.NetworkEntry, error)
}

type ArtifactBuilder interface {
	Build(ctx context.Context, sourceDir, outDir string, h domain.Holon) (string, error)
}

type CloudUploader interface {
	Upload(ctx context.Context, key, path string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, channel string, event domain.Event) error
}

type ManifestSigner interface {
	Sign(m domain.Manifest) (domain.Manifest, error)
	Verify(m domain.Manifest) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	New() string
}
