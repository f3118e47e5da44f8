// Package rooms records escape-room sessions on behalf of their owner.
package rooms

import (
	"context"
	"time"

	"github.com/wye/wye-server/internal/model"
	"github.com/wye/wye-server/internal/storage"
	"github.com/wye/wye-server/internal/validation"
)

// CreateInput is what a caller may supply for a new room session.
// The owner is never part of the input; Create takes it from the caller.
type CreateInput struct {
	Name          string        `field:"name" validate:"required,max=255"`
	PlayedAt      time.Time     `field:"playedDatetime" validate:"required"`
	Duration      time.Duration `field:"durationTime" validate:"gte=0"`
	NumberOfHints int           `field:"numberOfHints" validate:"gte=0"`
}

// Service scopes every room session operation to an owner
type Service struct {
	storage   storage.Storage
	validator *validation.Validator
}

// New creates a new rooms Service
func New(storage storage.Storage) *Service {
	return &Service{
		storage:   storage,
		validator: validation.New(),
	}
}

// Create validates in and stores it as a room session owned by owner
func (s *Service) Create(ctx context.Context, owner *model.User, in CreateInput) (*model.RoomSession, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	rs := &model.RoomSession{
		ID:            model.NewRoomSessionID(),
		OwnerID:       owner.ID,
		Name:          in.Name,
		PlayedAt:      in.PlayedAt,
		Duration:      in.Duration,
		NumberOfHints: in.NumberOfHints,
	}

	if err := s.storage.SaveRoomSession(ctx, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// ListForOwner returns owner's room sessions in insertion order; never nil
func (s *Service) ListForOwner(ctx context.Context, owner *model.User) ([]*model.RoomSession, error) {
	list, err := s.storage.ListRoomSessionsByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.RoomSession{}
	}
	return list, nil
}
