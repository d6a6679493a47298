package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vbonduro/interop/internal/domain"
	"github.com/vbonduro/interop/internal/imagecheck"
	"github.com/vbonduro/interop/internal/metrics"
	"github.com/vbonduro/interop/internal/photostore"
)

// GetTargetImage opens the target's image. The caller must close the reader.
func (s *TargetService) GetTargetImage(ctx context.Context, userID, id int64) (io.ReadCloser, string, error) {
	t, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if t.Thumbnail == "" {
		return nil, "", domain.NotFound("Target %d has no image", id)
	}

	r, mimeType, err := s.photoStg.Get(ctx, t.Thumbnail)
	if errors.Is(err, photostore.ErrNotFound) {
		s.log(ctx).Warn("target image missing from storage", "target_id", id, "storage_key", t.Thumbnail)
		return nil, "", domain.NotFound("Target %d has no image", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	return r, mimeType, nil
}

// PutTargetImage validates data as a JPEG or PNG image and makes it the
// target's image, replacing any previous one. An invalid image leaves the
// target untouched.
func (s *TargetService) PutTargetImage(ctx context.Context, userID, id int64, data []byte) error {
	s.log(ctx).Info("upload image started", "target_id", id, "bytes", len(data))

	t, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}

	format, err := imagecheck.Detect(data)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("targets/%d.%s", id, format.Ext())
	key, err := s.photoStg.Save(ctx, name, format.MIME(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	s.log(ctx).Debug("image saved", "target_id", id, "storage_key", key)

	if err := s.targets.SetThumbnail(ctx, id, key); err != nil {
		if derr := s.photoStg.Delete(ctx, key); derr != nil {
			s.log(ctx).Error("failed to roll back image after thumbnail error", "storage_key", key, "error", derr)
		}
		return fmt.Errorf("failed to record image: %w", err)
	}

	if old := t.Thumbnail; old != "" && old != key {
		s.removeBlob(ctx, old, "replace_image")
	}
	s.log(ctx).Info("upload image complete", "target_id", id, "format", string(format))
	return nil
}

// DeleteTargetImage clears the target's image reference, then removes the
// blob on a best-effort basis.
func (s *TargetService) DeleteTargetImage(ctx context.Context, userID, id int64) error {
	t, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}
	if t.Thumbnail == "" {
		return domain.NotFound("Target %d has no image", id)
	}

	if err := s.targets.SetThumbnail(ctx, id, ""); err != nil {
		return fmt.Errorf("failed to clear image: %w", err)
	}
	s.removeBlob(ctx, t.Thumbnail, "delete_image")
	return nil
}

// classifiable lists the analysis fields that may be suggested to a client.
var classifiable = []string{
	domain.FieldShape,
	domain.FieldBackgroundColor,
	domain.FieldAlphanumeric,
	domain.FieldAlphanumericColor,
	domain.FieldOrientation,
}

// ClassifyTargetImage asks the vision backend to describe the target's
// image. Each reported field is validated on its own and only valid values
// are returned. Nothing is persisted.
func (s *TargetService) ClassifyTargetImage(ctx context.Context, userID, id int64) (*domain.TargetFields, error) {
	if s.visionAPI == nil {
		return nil, domain.ErrVisionUnavailable
	}

	r, mimeType, err := s.GetTargetImage(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(s.log(ctx), r)

	s.log(ctx).Info("vision analysis started", "target_id", id)
	result, err := s.visionAPI.Analyze(ctx, r, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}

	suggested := &domain.TargetFields{}
	for _, field := range classifiable {
		value, ok := result.Fields[field]
		if !ok || value == "" {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		f, err := domain.Normalize(map[string]json.RawMessage{field: encoded})
		if err != nil {
			s.log(ctx).Debug("discarding suggestion", "field", field, "value", value, "error", err)
			continue
		}
		mergeFields(suggested, f)
	}
	s.log(ctx).Info("vision analysis complete", "target_id", id, "fields", len(result.Fields))
	return suggested, nil
}

// mergeFields copies the attributes set in src onto dst.
func mergeFields(dst, src *domain.TargetFields) {
	if src.Shape.Set {
		dst.Shape = src.Shape
	}
	if src.BackgroundColor.Set {
		dst.BackgroundColor = src.BackgroundColor
	}
	if src.Alphanumeric.Set {
		dst.Alphanumeric = src.Alphanumeric
	}
	if src.AlphanumericColor.Set {
		dst.AlphanumericColor = src.AlphanumericColor
	}
	if src.Orientation.Set {
		dst.Orientation = src.Orientation
	}
}

// removeBlob deletes a stored image whose reference is already gone. A
// failure leaves an orphaned blob and is logged and counted, never returned.
func (s *TargetService) removeBlob(ctx context.Context, key, op string) {
	if err := s.photoStg.Delete(ctx, key); err != nil {
		s.log(ctx).Warn("unable to delete image blob", "storage_key", key, "operation", op, "error", err)
		metrics.BlobCleanupFailed(op)
	}
}

func closeWithLog(logger *slog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close image", "error", err)
	}
}
