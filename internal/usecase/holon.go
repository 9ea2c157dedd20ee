package usecase

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/policy"
)

// Scope is the family and acting avatar an operation runs under.
type Scope struct {
	Family   domain.Family
	AvatarID string
}

type CreateInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Subtype     string               `json:"holonSubType"`
	SourcePath  string               `json:"sourceFolderPath"`
	Options     domain.CreateOptions `json:"createOptions"`
}

type HolonUsecaseDeps struct {
	Repo     HolonRepository
	Content  ContentStore
	Network  NetworkRegistry
	Builder  ArtifactBuilder
	Uploader CloudUploader
	Events   EventPublisher
	Signer   ManifestSigner
	Clock    Clock
	IDs      IDGenerator
	// Policy overrides the built-in holon access policy.
	Policy *policy.PolicyDocument
}

// HolonUsecase drives the versioned publish lifecycle of every holon family.
type HolonUsecase struct {
	repo     HolonRepository
	content  ContentStore
	network  NetworkRegistry
	builder  ArtifactBuilder
	uploader CloudUploader
	events   EventPublisher
	signer   ManifestSigner
	clock    Clock
	ids      IDGenerator
	config   domain.Config
	policy   policy.PolicyDocument
	locks    *keyedMutex
}

func NewHolonUsecase(deps HolonUsecaseDeps, config domain.Config) *HolonUsecase {
	uc := &HolonUsecase{
		repo:     deps.Repo,
		content:  deps.Content,
		network:  deps.Network,
		builder:  deps.Builder,
		uploader: deps.Uploader,
		events:   deps.Events,
		signer:   deps.Signer,
		clock:    deps.Clock,
		ids:      deps.IDs,
		config:   config,
		locks:    newKeyedMutex(),
	}
	if uc.clock == nil {
		uc.clock = RealClock{}
	}
	if uc.ids == nil {
		uc.ids = UUIDGenerator{}
	}
	if deps.Policy != nil {
		uc.policy = *deps.Policy
	} else {
		doc, err := policy.HolonPolicy()
		if err != nil {
			slog.Error("failed to load the holon policy", slog.String("error", err.Error()), slog.String("module", "holon"))
		}
		uc.policy = doc
	}
	return uc
}

var errAvatarRequired = domain.Validation("AvatarId is required but was not found. Please authenticate or provide X-Avatar-Id header.")

func requireAvatar(s Scope) error {
	if s.AvatarID == "" {
		return errAvatarRequired
	}
	return nil
}

func (uc *HolonUsecase) allowed(s Scope, h domain.Holon, action string) (bool, error) {
	return policy.Authorize(uc.policy, policy.HolonContext(s.AvatarID, h), action)
}

// authorize rejects avatars the holon policy does not let perform action on h.
func (uc *HolonUsecase) authorize(s Scope, h domain.Holon, action string) error {
	ok, err := uc.allowed(s, h, action)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Forbidden("avatar %s does not own %s %s", s.AvatarID, s.Family.Title, h.ID)
	}
	return nil
}

func (uc *HolonUsecase) Create(ctx context.Context, s Scope, input CreateInput) (domain.Holon, error) {
	if err := requireAvatar(s); err != nil {
		return domain.Holon{}, err
	}
	if input.Name == "" {
		return domain.Holon{}, domain.Validation("Name is required")
	}
	subtype, err := s.Family.ParseSubtype(input.Subtype)
	if err != nil {
		return domain.Holon{}, err
	}

	now := uc.clock.Now()
	h := domain.Holon{
		ID:           uc.ids.New(),
		Version:      1,
		Family:       s.Family.Name,
		Name:         input.Name,
		Description:  input.Description,
		Subtype:      subtype,
		OwnerID:      s.AvatarID,
		Status:       domain.StatusDraft,
		SourcePath:   input.SourcePath,
		LaunchTarget: input.Options.LaunchTarget,
		MetaData:     maps.Clone(input.Options.MetaData),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if h.MetaData == nil {
		h.MetaData = map[string]string{}
	}

	if h.SourcePath != "" {
		err = uc.content.WriteDescriptor(ctx, h.SourcePath, domain.Descriptor{
			ID:      h.ID,
			Version: domain.LatestVersion,
			Family:  h.Family,
			Name:    h.Name,
		})
		if err != nil {
			return domain.Holon{}, domain.Upstream(err, "failed to write descriptor")
		}
	}

	if err := uc.repo.Insert(ctx, h); err != nil {
		return domain.Holon{}, err
	}
	uc.emit(ctx, domain.EventCreated, h)
	return h, nil
}

// load fetches a record and hides records of other families.
func (uc *HolonUsecase) load(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	if id == "" {
		return domain.Holon{}, domain.Validation("id is required")
	}
	if version < 0 {
		return domain.Holon{}, domain.Validation("version must not be negative")
	}
	h, err := uc.repo.Get(ctx, id, version)
	if err != nil {
		return domain.Holon{}, err
	}
	if h.Family != s.Family.Name {
		return domain.Holon{}, domain.NotFoundError{Resource: s.Family.Title}
	}
	return h, nil
}

func (uc *HolonUsecase) Load(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	return uc.load(ctx, s, id, version)
}

// LoadAll returns the latest version of every holon of the family, or every
// version when showAllVersions is set.
func (uc *HolonUsecase) LoadAll(ctx context.Context, s Scope, subtype string, showAllVersions bool) ([]domain.Holon, error) {
	q := domain.HolonQuery{Family: s.Family.Name, AllVersions: showAllVersions}
	if subtype != "" {
		parsed, err := s.Family.ParseSubtype(subtype)
		if err != nil {
			return nil, err
		}
		q.Subtype = parsed
	}
	return uc.repo.List(ctx, q)
}

func (uc *HolonUsecase) LoadAllForAvatar(ctx context.Context, s Scope, showAllVersions bool, version int) ([]domain.Holon, error) {
	if err := requireAvatar(s); err != nil {
		return nil, err
	}
	list, err := uc.repo.List(ctx, domain.HolonQuery{
		Family:      s.Family.Name,
		OwnerID:     s.AvatarID,
		AllVersions: showAllVersions || version > 0,
	})
	if err != nil {
		return nil, err
	}
	if version > 0 {
		list = filterVersion(list, version)
	}
	return list, nil
}

func (uc *HolonUsecase) LoadByMetaData(ctx context.Context, s Scope, key, value string) ([]domain.Holon, error) {
	if key == "" {
		return nil, domain.Validation("metadata key is required")
	}
	list, err := uc.repo.List(ctx, domain.HolonQuery{Family: s.Family.Name})
	if err != nil {
		return nil, err
	}
	var out []domain.Holon
	for _, h := range list {
		v, ok := lookupMeta(h.MetaData, key)
		if ok && (value == "" || equalFold(v, value)) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (uc *HolonUsecase) LoadByParent(ctx context.Context, s Scope, parentID string) ([]domain.Holon, error) {
	if parentID == "" {
		return nil, domain.Validation("parent id is required")
	}
	return uc.LoadByMetaData(ctx, s, domain.MetaKeyParentID, parentID)
}

// LoadFromPath loads the holon a source or installed folder belongs to.
func (uc *HolonUsecase) LoadFromPath(ctx context.Context, s Scope, path string) (domain.Holon, error) {
	if path == "" {
		return domain.Holon{}, domain.Validation("path is required")
	}
	d, err := uc.content.ReadDescriptor(ctx, path)
	if err != nil {
		return domain.Holon{}, err
	}
	return uc.load(ctx, s, d.ID, d.Version)
}

// LoadFromPublished loads the holon a published manifest describes.
func (uc *HolonUsecase) LoadFromPublished(ctx context.Context, s Scope, manifestPath string) (domain.Holon, error) {
	if manifestPath == "" {
		return domain.Holon{}, domain.Validation("publishedFilePath is required")
	}
	m, err := uc.content.ReadManifest(ctx, manifestPath)
	if err != nil {
		return domain.Holon{}, err
	}
	return uc.load(ctx, s, m.ID, m.Version)
}

// Update appends a new Draft version built from the latest one. An entity
// without id is created instead.
func (uc *HolonUsecase) Update(ctx context.Context, s Scope, input domain.Holon) (domain.Holon, error) {
	if input.ID == "" {
		return uc.Create(ctx, s, CreateInput{
			Name:        input.Name,
			Description: input.Description,
			Subtype:     input.Subtype,
			SourcePath:  input.SourcePath,
			Options: domain.CreateOptions{
				LaunchTarget: input.LaunchTarget,
				MetaData:     input.MetaData,
			},
		})
	}
	if err := requireAvatar(s); err != nil {
		return domain.Holon{}, err
	}

	unlock := uc.locks.Lock(input.ID)
	defer unlock()

	latest, err := uc.load(ctx, s, input.ID, domain.LatestVersion)
	if err != nil {
		return domain.Holon{}, err
	}
	if err := uc.authorize(s, latest, policy.ActionEdit); err != nil {
		return domain.Holon{}, err
	}

	next := nextDraft(latest, uc.clock.Now())
	if input.Name != "" {
		next.Name = input.Name
	}
	if input.Description != "" {
		next.Description = input.Description
	}
	if input.SourcePath != "" {
		next.SourcePath = input.SourcePath
	}
	if input.LaunchTarget != "" {
		next.LaunchTarget = input.LaunchTarget
	}
	if input.Subtype != "" {
		subtype, err := s.Family.ParseSubtype(input.Subtype)
		if err != nil {
			return domain.Holon{}, err
		}
		next.Subtype = subtype
	}
	for k, v := range input.MetaData {
		next.MetaData[k] = v
	}

	if err := uc.repo.Insert(ctx, next); err != nil {
		return domain.Holon{}, err
	}
	uc.emit(ctx, domain.EventEdited, next)
	return next, nil
}

// nextDraft derives the record of the version after latest.
func nextDraft(latest domain.Holon, now time.Time) domain.Holon {
	next := latest.Clone()
	next.Version = latest.Version + 1
	next.Status = domain.StatusDraft
	next.PublishedOn = nil
	next.PublishedBy = ""
	next.PublishedPath = ""
	next.InstalledPath = ""
	next.Digest = ""
	next.Registered = false
	next.CreatedAt = now
	next.UpdatedAt = now
	if next.MetaData == nil {
		next.MetaData = map[string]string{}
	}
	return next
}

// Delete removes one version, or every version for domain.LatestVersion.
func (uc *HolonUsecase) Delete(ctx context.Context, s Scope, id string, version int) (bool, error) {
	if err := requireAvatar(s); err != nil {
		return false, err
	}

	unlock := uc.locks.Lock(id)
	defer unlock()

	h, err := uc.load(ctx, s, id, version)
	if err != nil {
		return false, err
	}
	if err := uc.authorize(s, h, policy.ActionDelete); err != nil {
		return false, err
	}

	removed := []domain.Holon{h}
	if version == domain.LatestVersion {
		removed, err = uc.repo.Versions(ctx, id)
		if err != nil {
			return false, err
		}
	}

	n, err := uc.repo.Delete(ctx, id, version)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, domain.NotFoundError{Resource: s.Family.Title}
	}

	if version == domain.LatestVersion || h.Registered {
		if err := uc.network.Unregister(ctx, s.Family.Name, id, version); err != nil {
			uc.restore(ctx, removed)
			return false, domain.Upstream(err, "failed to remove holon from the network index")
		}
	}
	uc.emit(ctx, domain.EventDeleted, h)
	return true, nil
}

func (uc *HolonUsecase) LoadVersions(ctx context.Context, s Scope, id string) ([]domain.Holon, error) {
	if id == "" {
		return nil, domain.Validation("id is required")
	}
	versions, err := uc.repo.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 || versions[0].Family != s.Family.Name {
		return nil, domain.NotFoundError{Resource: s.Family.Title}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

func (uc *HolonUsecase) Search(ctx context.Context, s Scope, params domain.SearchParams) ([]domain.Holon, error) {
	if params.Term == "" && len(params.Filters) == 0 {
		return nil, domain.Validation("Search term is required")
	}
	switch params.MatchMode {
	case "":
		params.MatchMode = domain.MatchAll
	case domain.MatchAll, domain.MatchAny:
	default:
		return nil, domain.Validation("The given matchMode %q is invalid. Valid values include: %s, %s", params.MatchMode, domain.MatchAll, domain.MatchAny)
	}

	q := domain.HolonQuery{
		Family:      s.Family.Name,
		AllVersions: params.ShowAllVersions || params.Version > 0,
	}
	if params.ScopeToOwner {
		if err := requireAvatar(s); err != nil {
			return nil, err
		}
		q.OwnerID = s.AvatarID
	}

	list, err := uc.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if params.Version > 0 {
		list = filterVersion(list, params.Version)
	}

	var out []domain.Holon
	for _, h := range list {
		if matchesSearch(h, params) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Network lists what the family has registered on the shared index.
func (uc *HolonUsecase) Network(ctx context.Context, s Scope) ([]domain.NetworkEntry, error) {
	entries, err := uc.network.List(ctx, s.Family.Name)
	if err != nil {
		return nil, domain.Upstream(err, "failed to list the network index")
	}
	return entries, nil
}

func (uc *HolonUsecase) emit(ctx context.Context, typ string, h domain.Holon) {
	if uc.events == nil {
		return
	}
	event := domain.Event{
		Type:      typ,
		Family:    h.Family,
		ID:        h.ID,
		Version:   h.Version,
		Status:    h.Status,
		OwnerID:   h.OwnerID,
		Timestamp: uc.clock.Now(),
	}
	err := uc.events.Publish(ctx, domain.EventChannel(h.Family), event)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish holon event",
			slog.String("error", err.Error()),
			slog.String("type", typ),
			slog.String("id", h.ID),
			slog.String("module", "holon"),
		)
	}
}
