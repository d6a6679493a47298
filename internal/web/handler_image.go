package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vbonduro/interop/internal/auth"
	"github.com/vbonduro/interop/internal/domain"
	"github.com/vbonduro/interop/internal/logging"
)

const maxImageSize = 50 * 1024 * 1024 // 50 MB

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	reader, mimeType, err := s.service.GetTargetImage(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logger := logging.FromContext(r.Context(), s.logger)
	defer closeWithLog(reader, "image reader", logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, reader); err != nil {
		logger.Error("write image failed", "target_id", id, "error", err)
	}
}

// handlePutImage takes the raw request body as the image. POST and PUT
// behave the same.
func (s *Server) handlePutImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Image too large.", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read image.", http.StatusBadRequest)
		return
	}

	if err := s.service.PutTargetImage(r.Context(), userID, id, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeText(w, "Image uploaded.")
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteTargetImage(r.Context(), userID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeText(w, "Image deleted.")
}

// handleClassifyImage returns the attributes the vision backend suggests
// for the target's image. Only recognised values are included.
func (s *Server) handleClassifyImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	f, err := s.service.ClassifyTargetImage(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := map[string]any{}
	if f.Shape.Valid {
		out[domain.FieldShape] = f.Shape.Value
	}
	if f.BackgroundColor.Valid {
		out[domain.FieldBackgroundColor] = f.BackgroundColor.Value
	}
	if f.Alphanumeric.Valid {
		out[domain.FieldAlphanumeric] = f.Alphanumeric.Value
	}
	if f.AlphanumericColor.Valid {
		out[domain.FieldAlphanumericColor] = f.AlphanumericColor.Value
	}
	if f.Orientation.Valid {
		out[domain.FieldOrientation] = f.Orientation.Value
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
