package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vbonduro/interop/internal/domain"
	"github.com/vbonduro/interop/internal/logging"
	"github.com/vbonduro/interop/internal/photostore"
	"github.com/vbonduro/interop/internal/vision"
)

// MaxListTargets caps the number of targets returned by ListTargets.
const MaxListTargets = 100

// targetRepository is the subset of store.TargetStore that TargetService requires.
type targetRepository interface {
	Create(ctx context.Context, t *domain.Target) (*domain.Target, error)
	GetByID(ctx context.Context, id int64) (*domain.Target, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.Target, error)
	Update(ctx context.Context, t *domain.Target) error
	SetThumbnail(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

type TargetService struct {
	targets   targetRepository
	photoStg  photostore.PhotoStore
	visionAPI vision.VisionAnalyzer
	logger    *slog.Logger
}

// NewTargetService wires the service. visionAPI may be nil, in which case
// ClassifyTargetImage reports domain.ErrVisionUnavailable.
func NewTargetService(
	targets targetRepository,
	photoStg photostore.PhotoStore,
	visionAPI vision.VisionAnalyzer,
	logger *slog.Logger,
) *TargetService {
	return &TargetService{
		targets:   targets,
		photoStg:  photoStg,
		visionAPI: visionAPI,
		logger:    logger,
	}
}

func (s *TargetService) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *TargetService) ListTargets(ctx context.Context, userID int64) ([]*domain.Target, error) {
	targets, err := s.targets.ListByUser(ctx, userID, MaxListTargets)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, nil
}

// CreateTarget validates raw and stores a new target owned by userID. The
// type is required; latitude and longitude must both be given or both be
// absent, with null counting as absent.
func (s *TargetService) CreateTarget(ctx context.Context, userID int64, raw map[string]json.RawMessage) (*domain.Target, error) {
	if _, ok := raw[domain.FieldType]; !ok {
		return nil, domain.Invalid(domain.FieldType, "Target type required.")
	}
	if domain.Given(raw, domain.FieldLatitude) != domain.Given(raw, domain.FieldLongitude) {
		return nil, domain.Invalid(domain.FieldLatitude, msgIncomplete)
	}

	f, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}

	t := &domain.Target{UserID: userID, Type: f.Type.Value}
	if f.Latitude.Valid && f.Longitude.Valid {
		t.Location = &domain.Location{Latitude: f.Latitude.Value, Longitude: f.Longitude.Value}
	}
	applyAttributes(t, f)

	created, err := s.targets.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	s.log(ctx).Info("target created", "target_id", created.ID, "user_id", userID, "type", created.Type.String())
	return created, nil
}

func (s *TargetService) GetTarget(ctx context.Context, userID, id int64) (*domain.Target, error) {
	return s.find(ctx, userID, id)
}

// UpdateTarget applies the fields present in raw to the target. Present
// fields overwrite, null clears, absent fields are left alone. Nothing is
// written unless the whole request is valid.
func (s *TargetService) UpdateTarget(ctx context.Context, userID, id int64, raw map[string]json.RawMessage) (*domain.Target, error) {
	t, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	f, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}
	transition, err := planLocation(f.Latitude, f.Longitude, t.Location)
	if err != nil {
		return nil, err
	}

	if f.Type.Valid {
		t.Type = f.Type.Value
	}
	applyLocation(t, transition, f.Latitude, f.Longitude)
	applyAttributes(t, f)

	if err := s.targets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update target: %w", err)
	}
	s.log(ctx).Info("target updated", "target_id", id, "location", transition.String())

	updated, err := s.targets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload target: %w", err)
	}
	if updated == nil {
		return nil, domain.NotFound("Target %d not found", id)
	}
	return updated, nil
}

// DeleteTarget removes the target and its location. The image blob is
// removed afterwards on a best-effort basis.
func (s *TargetService) DeleteTarget(ctx context.Context, userID, id int64) error {
	t, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}
	thumbnail := t.Thumbnail

	if err := s.targets.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	s.log(ctx).Info("target deleted", "target_id", id)

	if thumbnail != "" {
		s.removeBlob(ctx, thumbnail, "delete_target")
	}
	return nil
}

// find loads a target and checks that userID owns it.
func (s *TargetService) find(ctx context.Context, userID, id int64) (*domain.Target, error) {
	t, err := s.targets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	if t == nil {
		return nil, domain.NotFound("Target %d not found", id)
	}
	if !t.OwnedBy(userID) {
		s.log(ctx).Warn("target access denied", "target_id", id, "user_id", userID)
		return nil, domain.Forbidden("Accessing target %d not allowed", id)
	}
	return t, nil
}

// applyAttributes copies the optional attributes present in f onto t.
func applyAttributes(t *domain.Target, f *domain.TargetFields) {
	if f.Orientation.Set {
		t.Orientation = f.Orientation.Ptr()
	}
	if f.Shape.Set {
		t.Shape = f.Shape.Ptr()
	}
	if f.BackgroundColor.Set {
		t.BackgroundColor = f.BackgroundColor.Ptr()
	}
	if f.AlphanumericColor.Set {
		t.AlphanumericColor = f.AlphanumericColor.Ptr()
	}
	if f.Alphanumeric.Set {
		t.Alphanumeric = f.Alphanumeric.Value
	}
	if f.Description.Set {
		t.Description = f.Description.Value
	}
}
