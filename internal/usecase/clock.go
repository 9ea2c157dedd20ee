package usecase

import (
	"time"

	"github.com/google/uuid"
)

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) New() string {
	return uuid.New().String()
}
