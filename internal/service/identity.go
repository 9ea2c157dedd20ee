package service

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/starnet/jwt"
)

var tracer = otel.Tracer("starnet")

// IdentityService extracts an avatar id from a bearer token without
// verifying it. Real verification belongs to the identity provider in
// front of this node.
type IdentityService struct {
	cache *cache.Cache
}

func NewIdentityService() *IdentityService {
	return &IdentityService{
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

type IdentityResult struct {
	AvatarID string
}

func (s *IdentityService) AvatarFromToken(ctx context.Context, token string) (*IdentityResult, error) {
	_, span := tracer.Start(ctx, "Identity.Service.AvatarFromToken")
	defer span.End()

	if cached, found := s.cache.Get(token); found {
		return cached.(*IdentityResult), nil
	}

	_, claims, err := jwt.Decode(token)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt decode failed"))
		return nil, err
	}

	avatarID := claims.Principal()
	if avatarID == "" {
		err := fmt.Errorf("token carries no avatar id")
		span.RecordError(err)
		return nil, err
	}

	result := &IdentityResult{AvatarID: avatarID}
	s.cache.Set(token, result, cache.DefaultExpiration)
	return result, nil
}
