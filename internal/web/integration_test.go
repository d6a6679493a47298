package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/interop/internal/auth"
	"github.com/vbonduro/interop/internal/db"
	"github.com/vbonduro/interop/internal/photostore"
	"github.com/vbonduro/interop/internal/service"
	"github.com/vbonduro/interop/internal/store"
	"github.com/vbonduro/interop/internal/vision"
	"github.com/vbonduro/interop/internal/web"
)

const testSecret = "integration-secret"

// recordingVision captures the image bytes passed to it and returns a
// pre-configured result.
type recordingVision struct {
	mu        sync.Mutex
	lastBytes []byte
	result    *vision.AnalysisResult
}

func (r *recordingVision) Analyze(_ context.Context, rd io.Reader, _ string) (*vision.AnalysisResult, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("recordingVision: read image: %w", err)
	}
	r.mu.Lock()
	r.lastBytes = data
	r.mu.Unlock()
	return r.result, nil
}

func (r *recordingVision) LastBytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastBytes
}

// memPhotoStore is a simple in-memory implementation of photostore.PhotoStore.
type memPhotoStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	mimes   map[string]string
	counter int
}

func newMemPhotoStore() *memPhotoStore {
	return &memPhotoStore{
		data:  make(map[string][]byte),
		mimes: make(map[string]string),
	}
}

func (m *memPhotoStore) Save(_ context.Context, name, mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	key := fmt.Sprintf("%s_%d", name, m.counter)
	m.data[key] = data
	m.mimes[key] = mimeType
	return key, nil
}

func (m *memPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, "", photostore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.mimes[key], nil
}

func (m *memPhotoStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return photostore.ErrNotFound
	}
	delete(m.data, key)
	delete(m.mimes, key)
	return nil
}

func (m *memPhotoStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

type testEnv struct {
	srv      *httptest.Server
	photos   *memPhotoStore
	verifier *auth.Verifier
}

// newTestServer sets up a real web.Server backed by in-memory SQLite and the
// provided vision stub, which may be nil.
func newTestServer(t *testing.T, vis vision.VisionAnalyzer) *testEnv {
	t.Helper()
	database, err := db.OpenForTesting()
	if err != nil {
		t.Fatalf("OpenForTesting: %v", err)
	}

	env := &testEnv{photos: newMemPhotoStore(), verifier: auth.NewVerifier(testSecret)}
	svc := service.NewTargetService(store.NewTargetStore(database), env.photos, vis, slog.Default())
	env.srv = httptest.NewServer(web.NewServer(svc, env.verifier, slog.Default()))
	t.Cleanup(func() {
		env.srv.Close()
		_ = database.Close()
	})
	return env
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.verifier.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

// do sends a request and returns the status code and body.
func (e *testEnv) do(t *testing.T, method, path, token string, body []byte) (int, string, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(data), resp.Header
}

// createTarget posts body to /api/targets and returns the new target id.
func (e *testEnv) createTarget(t *testing.T, token, body string) int64 {
	t.Helper()
	status, resp, _ := e.do(t, http.MethodPost, "/api/targets", token, []byte(body))
	if status != http.StatusCreated {
		t.Fatalf("POST /api/targets status %d: %s", status, resp)
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		t.Fatalf("decode target: %v", err)
	}
	return out.ID
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

func TestIntegration_RequiresToken(t *testing.T) {
	env := newTestServer(t, nil)

	status, _, header := env.do(t, http.MethodGet, "/api/targets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, header.Get("WWW-Authenticate"), "Bearer")

	status, _, _ = env.do(t, http.MethodGet, "/api/targets", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body, header := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
	assert.NotEmpty(t, header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", header.Get("X-Content-Type-Options"))
}

func TestIntegration_CreateGetRoundTrip(t *testing.T) {
	env := newTestServer(t, nil)
	tok := env.token(t, 1)

	id := env.createTarget(t, tok, `{"type": "Standard", "latitude": 38, "longitude": -76, "shape": "STAR", "alphanumeric": "B"}`)

	status, body, header := env.do(t, http.MethodGet, fmt.Sprintf("/api/targets/%d", id), tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.JSONEq(t, fmt.Sprintf(`{
		"id": %d, "user": 1, "type": "standard", "latitude": 38, "longitude": -76,
		"orientation": null, "shape": "star", "background_color": null,
		"alphanumeric": "B", "alphanumeric_color": null, "description": ""
	}`, id), body)
}

func TestIntegration_CreateErrors(t *testing.T) {
	env := newTestServer(t, nil)
	tok := env.token(t, 1)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"malformed json", `{"type": `, http.StatusBadRequest, "Request body is not valid JSON.\n"},
		{"not an object", `[1, 2]`, http.StatusBadRequest, "Request body is not valid JSON.\n"},
		{"missing type", `{}`, http.StatusBadRequest, "Target type required.\n"},
		{"latitude only", `{"type": "standard", "latitude": 3}`, http.StatusBadRequest, "Either none or both of latitude and longitude required.\n"},
		{"bad color", `{"type": "standard", "background_color": "plaid"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := env.do(t, http.MethodPost, "/api/targets", tok, []byte(tt.body))
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, body)
			}
		})
	}

	status, body, _ := env.do(t, http.MethodGet, "/api/targets", tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}

func TestIntegration_OwnershipAndListing(t *testing.T) {
	env := newTestServer(t, nil)
	alice, bob := env.token(t, 1), env.token(t, 2)

	id := env.createTarget(t, alice, `{"type": "qrc"}`)
	env.createTarget(t, bob, `{"type": "emergent"}`)

	status, body, _ := env.do(t, http.MethodGet, fmt.Sprintf("/api/targets/%d", id), bob, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, fmt.Sprintf("Accessing target %d not allowed\n", id), body)

	status, _, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/targets/%d", id), bob, []byte(`{"type": "standard"}`))
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = env.do(t, http.MethodGet, "/api/targets/999", alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Target 999 not found\n", body)

	status, _, _ = env.do(t, http.MethodGet, "/api/targets/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body, _ = env.do(t, http.MethodGet, "/api/targets", alice, nil)
	assert.Equal(t, http.StatusOK, status)
	var listed []map[string]any
	if err := json.Unmarshal([]byte(body), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if assert.Len(t, listed, 1) {
		assert.Equal(t, "qrc", listed[0]["type"])
		assert.EqualValues(t, 1, listed[0]["user"])
	}
}

func TestIntegration_UpdateLocation(t *testing.T) {
	env := newTestServer(t, nil)
	tok := env.token(t, 1)
	id := env.createTarget(t, tok, `{"type": "standard", "latitude": 10, "longitude": 20}`)
	path := fmt.Sprintf("/api/targets/%d", id)

	status, body, _ := env.do(t, http.MethodPut, path, tok, []byte(`{"latitude": null}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Only none or both of latitude and longitude can be cleared.\n", body)

	status, body, _ = env.do(t, http.MethodPut, path, tok, []byte(`{"latitude": 11}`))
	assert.Equal(t, http.StatusOK, status)
	var got map[string]any
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode target: %v", err)
	}
	assert.EqualValues(t, 11, got["latitude"])
	assert.EqualValues(t, 20, got["longitude"])

	status, body, _ = env.do(t, http.MethodPut, path, tok, []byte(`{"latitude": null, "longitude": null, "description": "gone"}`))
	assert.Equal(t, http.StatusOK, status)
	got = nil
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode target: %v", err)
	}
	assert.Nil(t, got["latitude"])
	assert.Nil(t, got["longitude"])
	assert.Equal(t, "gone", got["description"])
}

func TestIntegration_DeleteTarget(t *testing.T) {
	env := newTestServer(t, nil)
	tok := env.token(t, 1)
	id := env.createTarget(t, tok, `{"type": "standard"}`)
	path := fmt.Sprintf("/api/targets/%d", id)

	status, _, _ := env.do(t, http.MethodPost, path+"/image", tok, encodeJPEG(t))
	assert.Equal(t, http.StatusOK, status)

	status, body, _ := env.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Target deleted.", body)
	assert.Equal(t, 0, env.photos.Len())

	status, _, _ = env.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIntegration_ImageLifecycle(t *testing.T) {
	env := newTestServer(t, nil)
	tok := env.token(t, 1)
	id := env.createTarget(t, tok, `{"type": "standard"}`)
	path := fmt.Sprintf("/api/targets/%d/image", id)
	jpg := encodeJPEG(t)

	status, body, _ := env.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, fmt.Sprintf("Target %d has no image\n", id), body)

	status, body, _ = env.do(t, http.MethodPost, path, tok, jpg)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Image uploaded.", body)

	status, body, header := env.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "image/jpeg", header.Get("Content-Type"))
	assert.Equal(t, string(jpg), body)

	// PUT replaces the image and the old blob goes away.
	status, _, _ = env.do(t, http.MethodPut, path, tok, jpg)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, env.photos.Len())

	status, body, _ = env.do(t, http.MethodPost, path, tok, encodeGIF(t))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid image format GIF, only JPEG and PNG allowed\n", body)

	status, _, _ = env.do(t, http.MethodPost, path, tok, []byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = env.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = env.do(t, http.MethodGet, path, env.token(t, 2), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = env.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Image deleted.", body)
	assert.Equal(t, 0, env.photos.Len())

	status, _, _ = env.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIntegration_ClassifyImage(t *testing.T) {
	vis := &recordingVision{result: &vision.AnalysisResult{Fields: map[string]string{
		"shape":            "circle",
		"background_color": "RED",
		"orientation":      "sideways",
	}}}
	env := newTestServer(t, vis)
	tok := env.token(t, 1)
	id := env.createTarget(t, tok, `{"type": "standard"}`)
	path := fmt.Sprintf("/api/targets/%d/image", id)
	jpg := encodeJPEG(t)

	status, _, _ := env.do(t, http.MethodPost, path+"/classify", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = env.do(t, http.MethodPost, path, tok, jpg)
	assert.Equal(t, http.StatusOK, status)

	status, body, _ := env.do(t, http.MethodPost, path+"/classify", tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"shape": "circle", "background_color": "red"}`, body)
	assert.Equal(t, jpg, vis.LastBytes())
}

func TestIntegration_ClassifyWithoutBackend(t *testing.T) {
	env := newTestServer(t, nil)
	tok := env.token(t, 1)
	id := env.createTarget(t, tok, `{"type": "standard"}`)

	status, body, _ := env.do(t, http.MethodPost, fmt.Sprintf("/api/targets/%d/image/classify", id), tok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, strings.HasPrefix(body, "Image classification"))
}

func TestIntegration_Metrics(t *testing.T) {
	env := newTestServer(t, nil)
	env.do(t, http.MethodGet, "/healthz", "", nil)

	status, body, _ := env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `route="GET /healthz"`)
}
