package usecase

import (
	"context"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/policy"
)

func (uc *HolonUsecase) Unpublish(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	return uc.transition(ctx, s, id, version, domain.OpUnpublish)
}

func (uc *HolonUsecase) Republish(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	return uc.transition(ctx, s, id, version, domain.OpRepublish)
}

func (uc *HolonUsecase) Activate(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	return uc.transition(ctx, s, id, version, domain.OpActivate)
}

func (uc *HolonUsecase) Deactivate(ctx context.Context, s Scope, id string, version int) (domain.Holon, error) {
	return uc.transition(ctx, s, id, version, domain.OpDeactivate)
}

var transitionEvents = map[domain.Operation]string{
	domain.OpUnpublish:  domain.EventUnpublished,
	domain.OpRepublish:  domain.EventRepublished,
	domain.OpActivate:   domain.EventActivated,
	domain.OpDeactivate: domain.EventDeactivated,
}

// transition moves one version to the status op leads to. Nothing is
// written when the guard fails or the status would not change.
func (uc *HolonUsecase) transition(ctx context.Context, s Scope, id string, version int, op domain.Operation) (domain.Holon, error) {
	if err := requireAvatar(s); err != nil {
		return domain.Holon{}, err
	}

	unlock := uc.locks.Lock(id)
	defer unlock()

	h, err := uc.load(ctx, s, id, version)
	if err != nil {
		return domain.Holon{}, err
	}
	if err := uc.authorize(s, h, policy.ActionTransition); err != nil {
		return domain.Holon{}, err
	}

	next, err := domain.NextStatus(h, op)
	if err != nil {
		return domain.Holon{}, err
	}
	if next == h.Status {
		return h, nil
	}

	updated := h.Clone()
	updated.Status = next
	updated.UpdatedAt = uc.clock.Now()
	if err := uc.repo.Save(ctx, updated); err != nil {
		return domain.Holon{}, err
	}

	if h.Registered {
		switch op {
		case domain.OpUnpublish:
			err = uc.network.Unregister(ctx, h.Family, h.ID, h.Version)
		case domain.OpRepublish:
			err = uc.network.Register(ctx, uc.networkEntry(updated))
		}
		if err != nil {
			uc.rollback(ctx, h)
			return domain.Holon{}, domain.Upstream(err, "failed to update the network index")
		}
	}

	uc.emit(ctx, transitionEvents[op], updated)
	return updated, nil
}
