package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/policy"
)

func versionDir(root, family, id string, version int) string {
	return filepath.Join(root, family, id, fmt.Sprintf("v%d", version))
}

// pipelineContext bounds an optional publish step by the configured timeout.
func (uc *HolonUsecase) pipelineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.config.PipelineTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, uc.config.PipelineTimeout)
}

// Publish makes the content of a holon available under a signed manifest.
// A Draft latest version is published in place; otherwise a new version is
// published unless opts.Edit asks to publish over a Draft that does not exist.
func (uc *HolonUsecase) Publish(ctx context.Context, s Scope, id string, opts domain.PublishOptions) (domain.PublishResult, error) {
	if err := requireAvatar(s); err != nil {
		return domain.PublishResult{}, err
	}

	unlock := uc.locks.Lock(id)
	defer unlock()

	latest, err := uc.load(ctx, s, id, domain.LatestVersion)
	if err != nil {
		return domain.PublishResult{}, err
	}
	if err := uc.authorize(s, latest, policy.ActionPublish); err != nil {
		return domain.PublishResult{}, err
	}

	now := uc.clock.Now()
	target := latest.Clone()
	appendVersion := false
	switch {
	case latest.Status == domain.StatusDraft:
	case opts.Edit:
		return domain.PublishResult{}, domain.InvalidTransition(latest.Status, domain.OpPublish)
	default:
		target = nextDraft(latest, now)
		appendVersion = true
	}

	if target.MetaData == nil {
		target.MetaData = map[string]string{}
	}
	if opts.SourcePath != "" {
		target.SourcePath = opts.SourcePath
	}
	if opts.LaunchTarget != "" {
		target.LaunchTarget = opts.LaunchTarget
	}
	if err := uc.content.Validate(ctx, target.SourcePath); err != nil {
		return domain.PublishResult{}, err
	}

	next, err := domain.NextStatus(target, domain.OpPublish)
	if err != nil {
		return domain.PublishResult{}, err
	}

	publishRoot := opts.PublishPath
	if publishRoot == "" {
		publishRoot = uc.config.PublishRoot
	}
	dir := versionDir(publishRoot, target.Family, target.ID, target.Version)

	info, err := uc.content.Copy(ctx, target.SourcePath, filepath.Join(dir, domain.ContentDirName))
	if err != nil {
		return domain.PublishResult{}, domain.Upstream(err, "failed to copy content")
	}

	manifest := domain.Manifest{
		ID:           target.ID,
		Version:      target.Version,
		Family:       target.Family,
		Name:         target.Name,
		Description:  target.Description,
		Subtype:      target.Subtype,
		OwnerID:      target.OwnerID,
		LaunchTarget: target.LaunchTarget,
		MetaData:     target.MetaData,
		Digest:       info.Digest,
		Size:         info.Size,
		Files:        info.Files,
		PublishedOn:  now,
	}
	if uc.signer != nil {
		manifest, err = uc.signer.Sign(manifest)
		if err != nil {
			return domain.PublishResult{}, domain.Upstream(err, "failed to sign manifest")
		}
	}
	manifestPath, err := uc.content.WriteManifest(ctx, dir, manifest)
	if err != nil {
		return domain.PublishResult{}, domain.Upstream(err, "failed to write manifest")
	}

	result := domain.PublishResult{ManifestPath: manifestPath}

	if opts.GenerateBinary || opts.UploadToCloud {
		uc.runOptionalSteps(ctx, &target, opts, dir, &result)
	}

	target.Status = next
	target.PublishedOn = &now
	target.PublishedBy = s.AvatarID
	target.PublishedPath = manifestPath
	target.Digest = info.Digest
	target.Registered = opts.RegisterOnNetwork
	target.UpdatedAt = now

	if appendVersion {
		err = uc.repo.Insert(ctx, target)
	} else {
		err = uc.repo.Save(ctx, target)
	}
	if err != nil {
		uc.removeOrphan(ctx, dir)
		return domain.PublishResult{}, err
	}

	if opts.RegisterOnNetwork {
		if err := uc.network.Register(ctx, uc.networkEntry(target)); err != nil {
			if appendVersion {
				if _, delErr := uc.repo.Delete(ctx, target.ID, target.Version); delErr != nil {
					slog.ErrorContext(
						ctx, "failed to drop unregistered version",
						slog.String("error", delErr.Error()),
						slog.String("id", target.ID),
						slog.Int("version", target.Version),
						slog.String("module", "publish"),
					)
				}
			} else {
				uc.rollback(ctx, latest)
			}
			uc.removeOrphan(ctx, dir)
			return domain.PublishResult{}, domain.Upstream(err, "failed to register holon on the network")
		}
		uc.retireRegistrations(ctx, target)
	}

	result.Holon = target
	uc.emit(ctx, domain.EventPublished, target)
	return result, nil
}

func (uc *HolonUsecase) removeOrphan(ctx context.Context, dir string) {
	if err := uc.content.Remove(ctx, dir); err != nil {
		slog.WarnContext(
			ctx, "failed to remove orphaned publish directory",
			slog.String("error", err.Error()),
			slog.String("path", dir),
			slog.String("module", "holon"),
		)
	}
}

// runOptionalSteps builds and uploads the artifact. Failures only degrade
// the result to a partial success.
func (uc *HolonUsecase) runOptionalSteps(ctx context.Context, target *domain.Holon, opts domain.PublishOptions, dir string, result *domain.PublishResult) {
	warn := func(msg string, err error) {
		result.Partial = true
		if err != nil {
			msg = msg + ": " + err.Error()
		}
		result.Warnings = append(result.Warnings, msg)
		slog.WarnContext(
			ctx, msg,
			slog.String("id", target.ID),
			slog.Int("version", target.Version),
			slog.String("module", "publish"),
		)
	}

	if uc.builder == nil {
		warn("artifact builder is not configured", nil)
		return
	}

	artifactDir := dir
	if uc.config.ArtifactRoot != "" {
		artifactDir = versionDir(uc.config.ArtifactRoot, target.Family, target.ID, target.Version)
	}

	buildCtx, cancel := uc.pipelineContext(ctx)
	artifact, err := uc.builder.Build(buildCtx, filepath.Join(dir, domain.ContentDirName), artifactDir, *target)
	cancel()
	if err != nil {
		warn("binary generation failed", err)
		return
	}
	result.ArtifactPath = artifact
	target.MetaData[domain.MetaKeyArtifact] = artifact

	if !opts.UploadToCloud {
		return
	}
	if uc.uploader == nil {
		warn("cloud uploader is not configured", nil)
		return
	}

	key := fmt.Sprintf("%s/%s/v%d/%s", target.Family, target.ID, target.Version, filepath.Base(artifact))
	uploadCtx, cancel := uc.pipelineContext(ctx)
	url, err := uc.uploader.Upload(uploadCtx, key, artifact)
	cancel()
	if err != nil {
		warn("cloud upload failed", err)
		return
	}
	result.CloudURL = url
	target.MetaData[domain.MetaKeyCloudURL] = url
}

// Download installs the published content of a version into downloadPath,
// or into the install root when no path is given.
func (uc *HolonUsecase) Download(ctx context.Context, s Scope, id string, version int, downloadPath string, reInstall bool) (domain.DownloadResult, error) {
	if err := requireAvatar(s); err != nil {
		return domain.DownloadResult{}, err
	}

	h, err := uc.load(ctx, s, id, version)
	if err != nil {
		return domain.DownloadResult{}, err
	}
	if h.PublishedPath == "" {
		return domain.DownloadResult{}, domain.NotFoundError{Resource: "published manifest"}
	}
	visible, err := uc.allowed(s, h, policy.ActionDownload)
	if err != nil {
		return domain.DownloadResult{}, err
	}
	if !visible {
		return domain.DownloadResult{}, domain.NotFoundError{Resource: "published manifest"}
	}
	owner := h.OwnerID == s.AvatarID

	manifest, err := uc.content.ReadManifest(ctx, h.PublishedPath)
	if err != nil {
		return domain.DownloadResult{}, err
	}
	if uc.signer != nil && manifest.Signature != "" {
		if err := uc.signer.Verify(manifest); err != nil {
			return domain.DownloadResult{}, domain.Upstream(err, "manifest signature is invalid")
		}
	}

	contentDir := filepath.Join(filepath.Dir(h.PublishedPath), domain.ContentDirName)
	info, err := uc.content.Digest(ctx, contentDir)
	if err != nil {
		return domain.DownloadResult{}, domain.Upstream(err, "failed to read published content")
	}
	if info.Digest != manifest.Digest {
		return domain.DownloadResult{}, domain.Upstream(nil, "published content does not match its manifest digest")
	}

	dest := downloadPath
	if dest == "" {
		dest = versionDir(uc.config.InstallRoot, h.Family, h.ID, h.Version)
	} else if !uc.holdsHolon(ctx, dest, h.ID) {
		dest = filepath.Join(downloadPath, fmt.Sprintf("%s-v%d", h.ID, h.Version))
	}

	skipped, err := uc.content.Install(ctx, contentDir, dest, reInstall)
	if err != nil {
		return domain.DownloadResult{}, domain.Upstream(err, "failed to install content")
	}
	if !skipped {
		err = uc.content.WriteDescriptor(ctx, dest, domain.Descriptor{
			ID:      h.ID,
			Version: h.Version,
			Family:  h.Family,
			Name:    h.Name,
		})
		if err != nil {
			return domain.DownloadResult{}, domain.Upstream(err, "failed to write descriptor")
		}
	}

	if owner && h.InstalledPath != dest {
		h, err = uc.setInstalledPath(ctx, s, h.ID, h.Version, dest)
		if err != nil {
			return domain.DownloadResult{}, err
		}
	}

	uc.emit(ctx, domain.EventDownloaded, h)
	return domain.DownloadResult{Holon: h, Path: dest, Success: true, Skipped: skipped}, nil
}

// holdsHolon reports whether dir is empty or carries the descriptor of id,
// the only directories an install may replace.
func (uc *HolonUsecase) holdsHolon(ctx context.Context, dir, id string) bool {
	info, err := uc.content.Digest(ctx, dir)
	if domain.KindOf(err) == domain.KindNotFound {
		return true
	}
	if err != nil {
		return false
	}
	if info.Files == 0 {
		return true
	}
	d, err := uc.content.ReadDescriptor(ctx, dir)
	return err == nil && d.ID == id
}

// Uninstall removes the installed copy of a version owned by the caller.
func (uc *HolonUsecase) Uninstall(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	if err := requireAvatar(s); err != nil {
		return domain.Holon{}, err
	}
	h, err := uc.load(ctx, s, id, version)
	if err != nil {
		return domain.Holon{}, err
	}
	if err := uc.authorize(s, h, policy.ActionUninstall); err != nil {
		return domain.Holon{}, err
	}
	if h.InstalledPath == "" {
		return domain.Holon{}, domain.NotFoundError{Resource: "installation"}
	}
	if err := uc.content.Remove(ctx, h.InstalledPath); err != nil {
		return domain.Holon{}, domain.Upstream(err, "failed to remove installed content")
	}
	return uc.setInstalledPath(ctx, s, h.ID, h.Version, "")
}

func (uc *HolonUsecase) setInstalledPath(ctx context.Context, s Scope, id string, version int, path string) (domain.Holon, error) {
	unlock := uc.locks.Lock(id)
	defer unlock()

	h, err := uc.load(ctx, s, id, version)
	if err != nil {
		return domain.Holon{}, err
	}
	h.InstalledPath = path
	h.UpdatedAt = uc.clock.Now()
	if err := uc.repo.Save(ctx, h); err != nil {
		return domain.Holon{}, err
	}
	return h, nil
}

// sourceRoot is where clones get their own copy of the source content.
func (uc *HolonUsecase) sourceRoot() string {
	if uc.config.SourceRoot != "" {
		return uc.config.SourceRoot
	}
	return filepath.Join(filepath.Dir(uc.config.PublishRoot), "sources")
}

// Clone seeds a new Draft holon owned by the caller from the latest version of id.
func (uc *HolonUsecase) Clone(ctx context.Context, s Scope, id string, newName string) (domain.Holon, error) {
	if err := requireAvatar(s); err != nil {
		return domain.Holon{}, err
	}
	if newName == "" {
		return domain.Holon{}, domain.Validation("newName is required")
	}

	src, err := uc.load(ctx, s, id, domain.LatestVersion)
	if err != nil {
		return domain.Holon{}, err
	}

	now := uc.clock.Now()
	clone := domain.Holon{
		ID:           uc.ids.New(),
		Version:      1,
		Family:       src.Family,
		Name:         newName,
		Description:  src.Description,
		Subtype:      src.Subtype,
		OwnerID:      s.AvatarID,
		Status:       domain.StatusDraft,
		LaunchTarget: src.LaunchTarget,
		MetaData:     src.Clone().MetaData,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if clone.MetaData == nil {
		clone.MetaData = map[string]string{}
	}
	delete(clone.MetaData, domain.MetaKeyArtifact)
	delete(clone.MetaData, domain.MetaKeyCloudURL)
	clone.MetaData[domain.MetaKeyClonedFrom] = fmt.Sprintf("%s@v%d", src.ID, src.Version)

	if src.SourcePath != "" && uc.content.Validate(ctx, src.SourcePath) == nil {
		dst := filepath.Join(uc.sourceRoot(), clone.Family, clone.ID)
		if _, err := uc.content.Copy(ctx, src.SourcePath, dst); err != nil {
			return domain.Holon{}, domain.Upstream(err, "failed to copy source content")
		}
		clone.SourcePath = dst
		err = uc.content.WriteDescriptor(ctx, dst, domain.Descriptor{
			ID:      clone.ID,
			Version: domain.LatestVersion,
			Family:  clone.Family,
			Name:    clone.Name,
		})
		if err != nil {
			return domain.Holon{}, domain.Upstream(err, "failed to write descriptor")
		}
	}

	if err := uc.repo.Insert(ctx, clone); err != nil {
		return domain.Holon{}, err
	}
	uc.emit(ctx, domain.EventCloned, clone)
	return clone, nil
}
