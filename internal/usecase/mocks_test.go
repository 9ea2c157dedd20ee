package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/totegamma/starnet/internal/domain"
)

// --- mocks ---

type memHolonRepo struct {
	mu         sync.Mutex
	records    map[string]map[int]domain.Holon
	failInsert error
	failSave   error
	failDelete error
}

func newMemHolonRepo() *memHolonRepo {
	return &memHolonRepo{records: map[string]map[int]domain.Holon{}}
}

func (m *memHolonRepo) Insert(ctx context.Context, h domain.Holon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	versions, ok := m.records[h.ID]
	if !ok {
		versions = map[int]domain.Holon{}
		m.records[h.ID] = versions
	}
	if _, exists := versions[h.Version]; exists {
		return domain.Conflict("holon %s version %d already exists", h.ID, h.Version)
	}
	versions[h.Version] = h.Clone()
	return nil
}

func (m *memHolonRepo) Get(ctx context.Context, id string, version int) (domain.Holon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.records[id]
	if version == domain.LatestVersion {
		latest := -1
		for v := range versions {
			if v > latest {
				latest = v
			}
		}
		version = latest
	}
	h, ok := versions[version]
	if !ok {
		return domain.Holon{}, domain.NotFoundError{Resource: "holon"}
	}
	return h.Clone(), nil
}

func (m *memHolonRepo) Versions(ctx context.Context, id string) ([]domain.Holon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []domain.Holon{}
	for _, h := range m.records[id] {
		list = append(list, h.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
	return list, nil
}

func (m *memHolonRepo) List(ctx context.Context, q domain.HolonQuery) ([]domain.Holon, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var list []domain.Holon
	for _, id := range ids {
		versions, _ := m.Versions(ctx, id)
		if !q.AllVersions && len(versions) > 0 {
			versions = versions[len(versions)-1:]
		}
		for _, h := range versions {
			if q.Family != "" && h.Family != q.Family {
				continue
			}
			if q.OwnerID != "" && h.OwnerID != q.OwnerID {
				continue
			}
			if q.Subtype != "" && h.Subtype != q.Subtype {
				continue
			}
			list = append(list, h)
		}
	}
	return list, nil
}

func (m *memHolonRepo) Save(ctx context.Context, h domain.Holon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	if _, ok := m.records[h.ID][h.Version]; !ok {
		return domain.NotFoundError{Resource: "holon"}
	}
	m.records[h.ID][h.Version] = h.Clone()
	return nil
}

func (m *memHolonRepo) Delete(ctx context.Context, id string, version int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return 0, m.failDelete
	}
	versions := m.records[id]
	if version == domain.LatestVersion {
		n := int64(len(versions))
		delete(m.records, id)
		return n, nil
	}
	if _, ok := versions[version]; !ok {
		return 0, nil
	}
	delete(versions, version)
	return 1, nil
}

// fakeContent models directories as a single digest per path.
type fakeContent struct {
	mu          sync.Mutex
	dirs        map[string]string
	manifests   map[string]domain.Manifest
	descriptors map[string]domain.Descriptor
	failCopy    error
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		dirs:        map[string]string{},
		manifests:   map[string]domain.Manifest{},
		descriptors: map[string]domain.Descriptor{},
	}
}

// addSource registers a non-empty source folder.
func (f *fakeContent) addSource(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[path] = "xxh3:" + body
}

func (f *fakeContent) Validate(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == "" {
		return domain.Validation("sourcePath is required")
	}
	if _, ok := f.dirs[path]; !ok {
		return domain.Validation("sourcePath %s does not exist", path)
	}
	return nil
}

func (f *fakeContent) Digest(ctx context.Context, dir string) (domain.ContentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dirs[dir]
	if !ok {
		return domain.ContentInfo{}, domain.NotFoundError{Resource: "content " + dir}
	}
	return domain.ContentInfo{Digest: d, Files: 1, Size: int64(len(d))}, nil
}

func (f *fakeContent) Copy(ctx context.Context, src, dst string) (domain.ContentInfo, error) {
	if f.failCopy != nil {
		return domain.ContentInfo{}, f.failCopy
	}
	f.mu.Lock()
	d, ok := f.dirs[src]
	if ok {
		f.dirs[dst] = d
	}
	f.mu.Unlock()
	if !ok {
		return domain.ContentInfo{}, fmt.Errorf("source %s missing", src)
	}
	return f.Digest(ctx, dst)
}

func (f *fakeContent) Install(ctx context.Context, src, dst string, overwrite bool) (bool, error) {
	f.mu.Lock()
	_, exists := f.dirs[dst]
	f.mu.Unlock()
	if exists && !overwrite {
		return true, nil
	}
	_, err := f.Copy(ctx, src, dst)
	return false, err
}

func (f *fakeContent) Remove(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := range f.dirs {
		if p == path || strings.HasPrefix(p, path+string(filepath.Separator)) {
			delete(f.dirs, p)
		}
	}
	return nil
}

func (f *fakeContent) WriteManifest(ctx context.Context, dir string, m domain.Manifest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := filepath.Join(dir, domain.ManifestFileName)
	f.manifests[path] = m
	return path, nil
}

func (f *fakeContent) ReadManifest(ctx context.Context, path string) (domain.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.manifests[path]
	if !ok {
		return domain.Manifest{}, domain.NotFoundError{Resource: "manifest"}
	}
	return m, nil
}

func (f *fakeContent) WriteDescriptor(ctx context.Context, dir string, d domain.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descriptors[dir] = d
	return nil
}

func (f *fakeContent) ReadDescriptor(ctx context.Context, dir string) (domain.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.descriptors[dir]
	if !ok {
		return domain.Descriptor{}, domain.NotFoundError{Resource: "descriptor"}
	}
	return d, nil
}

type mockNetwork struct {
	mu          sync.Mutex
	entries     map[string]domain.NetworkEntry
	unregisters int
	failWith    error
}

func newMockNetwork() *mockNetwork {
	return &mockNetwork{entries: map[string]domain.NetworkEntry{}}
}

func (m *mockNetwork) Register(ctx context.Context, e domain.NetworkEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.entries[e.Family+"/"+e.ID] = e
	return nil
}

func (m *mockNetwork) Unregister(ctx context.Context, family, id string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.unregisters++
	e, ok := m.entries[family+"/"+id]
	if ok && (version == domain.LatestVersion || e.Version == version) {
		delete(m.entries, family+"/"+id)
	}
	return nil
}

func (m *mockNetwork) entry(family, id string) (domain.NetworkEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[family+"/"+id]
	return e, ok
}

func (m *mockNetwork) List(ctx context.Context, family string) ([]domain.NetworkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []domain.NetworkEntry
	for _, e := range m.entries {
		if e.Family == family {
			list = append(list, e)
		}
	}
	return list, nil
}

type mockEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockEvents) Publish(ctx context.Context, channel string, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type mockBuilder struct {
	err         error
	hadDeadline bool
}

func (m *mockBuilder) Build(ctx context.Context, sourceDir, outDir string, h domain.Holon) (string, error) {
	_, m.hadDeadline = ctx.Deadline()
	if m.err != nil {
		return "", m.err
	}
	return filepath.Join(outDir, fmt.Sprintf("%s-v%d.tar.gz", h.ID, h.Version)), nil
}

type mockUploader struct {
	key string
}

func (m *mockUploader) Upload(ctx context.Context, key, path string) (string, error) {
	m.key = key
	return "https://bucket.example.com/" + key, nil
}

type mockSigner struct{}

func (mockSigner) Sign(m domain.Manifest) (domain.Manifest, error) {
	m.Signer = "stn1node"
	m.Signature = "sig:" + m.Digest
	return m, nil
}

func (mockSigner) Verify(m domain.Manifest) error {
	if m.Signature != "sig:"+m.Digest {
		return errors.New("bad signature")
	}
	return nil
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("holon-%d", s.n)
}

// --- fixture ---

type fixture struct {
	uc      *HolonUsecase
	repo    *memHolonRepo
	content *fakeContent
	network *mockNetwork
	events  *mockEvents
	builder *mockBuilder
	upload  *mockUploader
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMemHolonRepo(),
		content: newFakeContent(),
		network: newMockNetwork(),
		events:  &mockEvents{},
		builder: &mockBuilder{},
		upload:  &mockUploader{},
	}
	f.uc = NewHolonUsecase(HolonUsecaseDeps{
		Repo:     f.repo,
		Content:  f.content,
		Network:  f.network,
		Builder:  f.builder,
		Uploader: f.upload,
		Events:   f.events,
		Signer:   mockSigner{},
		Clock:    fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		IDs:      &seqIDs{},
	}, domain.Config{
		PublishRoot: "/published",
		InstallRoot: "/installed",
		SourceRoot:  "/sources",
	})
	return f
}

func scopeFor(t *testing.T, family, avatar string) Scope {
	t.Helper()
	fam, err := domain.LookupFamily(family)
	if err != nil {
		t.Fatalf("lookup family: %v", err)
	}
	return Scope{Family: fam, AvatarID: avatar}
}
