package usecase

import (
	"context"
	"log/slog"

	"github.com/totegamma/starnet/internal/domain"
)

func (uc *HolonUsecase) networkEntry(h domain.Holon) domain.NetworkEntry {
	return domain.NetworkEntry{
		ID:           h.ID,
		Version:      h.Version,
		Family:       h.Family,
		Name:         h.Name,
		Description:  h.Description,
		Subtype:      h.Subtype,
		OwnerID:      h.OwnerID,
		ManifestPath: h.PublishedPath,
		Digest:       h.Digest,
		CloudURL:     h.MetaData[domain.MetaKeyCloudURL],
		RegisteredAt: uc.clock.Now(),
	}
}

// retireRegistrations clears the registered flag of every version other
// than current, which now owns the single network entry of its id.
func (uc *HolonUsecase) retireRegistrations(ctx context.Context, current domain.Holon) {
	versions, err := uc.repo.Versions(ctx, current.ID)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to list versions to retire registrations",
			slog.String("error", err.Error()),
			slog.String("id", current.ID),
			slog.String("module", "holon"),
		)
		return
	}
	for _, v := range versions {
		if v.Version == current.Version || !v.Registered {
			continue
		}
		retired := v.Clone()
		retired.Registered = false
		if err := uc.repo.Save(ctx, retired); err != nil {
			slog.WarnContext(
				ctx, "failed to retire registration",
				slog.String("error", err.Error()),
				slog.String("id", v.ID),
				slog.Int("version", v.Version),
				slog.String("module", "holon"),
			)
		}
	}
}

// rollback writes back a record whose network update failed.
func (uc *HolonUsecase) rollback(ctx context.Context, prev domain.Holon) {
	if err := uc.repo.Save(ctx, prev); err != nil {
		slog.ErrorContext(
			ctx, "failed to roll back holon record",
			slog.String("error", err.Error()),
			slog.String("id", prev.ID),
			slog.Int("version", prev.Version),
			slog.String("module", "holon"),
		)
	}
}

// restore re-inserts deleted records whose network entry could not be removed.
func (uc *HolonUsecase) restore(ctx context.Context, removed []domain.Holon) {
	for _, h := range removed {
		if err := uc.repo.Insert(ctx, h); err != nil {
			slog.ErrorContext(
				ctx, "failed to restore deleted holon record",
				slog.String("error", err.Error()),
				slog.String("id", h.ID),
				slog.Int("version", h.Version),
				slog.String("module", "holon"),
			)
		}
	}
}
