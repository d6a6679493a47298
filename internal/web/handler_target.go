package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vbonduro/interop/internal/auth"
	"github.com/vbonduro/interop/internal/domain"
	"github.com/vbonduro/interop/internal/logging"
)

const maxJSONSize = 1 << 20 // 1 MB

// targetJSON is the wire form of a target. Unset optional fields are null.
type targetJSON struct {
	ID                int64               `json:"id"`
	User              int64               `json:"user"`
	Type              domain.TargetType   `json:"type"`
	Latitude          *float64            `json:"latitude"`
	Longitude         *float64            `json:"longitude"`
	Orientation       *domain.Orientation `json:"orientation"`
	Shape             *domain.Shape       `json:"shape"`
	BackgroundColor   *domain.Color       `json:"background_color"`
	Alphanumeric      string              `json:"alphanumeric"`
	AlphanumericColor *domain.Color       `json:"alphanumeric_color"`
	Description       string              `json:"description"`
}

func toJSON(t *domain.Target) targetJSON {
	out := targetJSON{
		ID:                t.ID,
		User:              t.UserID,
		Type:              t.Type,
		Orientation:       t.Orientation,
		Shape:             t.Shape,
		BackgroundColor:   t.BackgroundColor,
		Alphanumeric:      t.Alphanumeric,
		AlphanumericColor: t.AlphanumericColor,
		Description:       t.Description,
	}
	if t.Location != nil {
		lat, lon := t.Location.Latitude, t.Location.Longitude
		out.Latitude, out.Longitude = &lat, &lon
	}
	return out
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	targets, err := s.service.ListTargets(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]targetJSON, 0, len(targets))
	for _, t := range targets {
		out = append(out, toJSON(t))
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())

	raw, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	t, err := s.service.CreateTarget(r.Context(), userID, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, toJSON(t))
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	t, err := s.service.GetTarget(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toJSON(t))
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	raw, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	t, err := s.service.UpdateTarget(r.Context(), userID, id, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, toJSON(t))
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFrom(r.Context())
	id, ok := targetID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteTarget(r.Context(), userID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeText(w, "Target deleted.")
}

// targetID extracts the {id} path variable, writing 400 when it is not an
// integer.
func targetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid target id.", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON object keeping each value raw, so that absent and
// null fields stay distinguishable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONSize)).Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large.", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, "Request body is not valid JSON.", http.StatusBadRequest)
		return nil, false
	}
	return raw, true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("write json failed", "error", err)
	}
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(msg))
}

// writeError maps service errors to a status code. Client-facing errors
// keep their message; anything else is logged and reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVisionUnavailable):
		status = http.StatusServiceUnavailable
	}

	msg := http.StatusText(status)
	var verr *domain.ValidationError
	var derr *domain.Error
	switch {
	case errors.As(err, &verr):
		msg = verr.Msg
	case errors.As(err, &derr):
		msg = derr.Msg
	case status == http.StatusServiceUnavailable:
		msg = "Image classification is not configured."
	}

	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.logger).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	http.Error(w, msg, status)
}
