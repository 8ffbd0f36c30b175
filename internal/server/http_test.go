package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inxilpro/chronicle/internal/audio"
	"github.com/inxilpro/chronicle/internal/capture"
	"github.com/inxilpro/chronicle/internal/config"
	"github.com/inxilpro/chronicle/internal/model"
	"github.com/inxilpro/chronicle/internal/session"
	"github.com/inxilpro/chronicle/internal/speech"
	"github.com/inxilpro/chronicle/internal/transcribe"
)

type staticOpener struct {
	devices []capture.Device
}

func (o *staticOpener) Open(device string, sampleRate, blockFrames int) (capture.Line, error) {
	return nil, nil
}

func (o *staticOpener) Devices() ([]capture.Device, error) {
	return o.devices, nil
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	queue := audio.NewChunkQueue()

	opener := &staticOpener{devices: []capture.Device{
		{ID: 0, Name: "Built-in Microphone", Channels: 1, DefaultSampleRate: 44100},
	}}
	capturer := capture.NewEngine(capture.Config{
		BlockDuration: cfg.Capture.GetBlockDuration(),
		Policy:        audio.DefaultChunkPolicy(),
	}, opener, queue, logger, nil)

	factory := func(sc speech.Config) (speech.Engine, error) { return nil, nil }
	transcriber := transcribe.NewEngine(transcribe.Config{
		Language:     cfg.Transcription.Language,
		PollInterval: cfg.Transcription.GetPollInterval(),
	}, factory, queue, nil, logger, nil)

	models := model.NewManager(model.ManagerConfig{
		Dir:     t.TempDir(),
		Timeout: time.Minute,
	}, logger)

	controller := session.NewController(cfg.Model.Variant, models, capturer, transcriber, logger, nil)

	return NewHTTPServer(cfg.HTTP, logger, cfg, controller, capturer, transcriber, models, queue, nil)
}

func get(t *testing.T, h http.HandlerFunc, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	var body map[string]interface{}
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON from %s: %v", path, err)
		}
	}
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv.handleHealth, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}

	sess, ok := body["session"].(map[string]interface{})
	if !ok {
		t.Fatal("health payload missing session block")
	}
	if sess["state"] != "stopped" {
		t.Errorf("session state = %v, want stopped", sess["state"])
	}
}

func TestHandleStatusSections(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv.handleStatus, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status = %d, want 200", rec.Code)
	}

	for _, key := range []string{"session", "capture", "queue", "transcription", "model"} {
		if _, ok := body[key]; !ok {
			t.Errorf("status payload missing %q section", key)
		}
	}
}

func TestHandleConfigSanitized(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv.handleConfig, "/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /config = %d, want 200", rec.Code)
	}

	chunking, ok := body["chunking"].(map[string]interface{})
	if !ok {
		t.Fatal("config payload missing chunking block")
	}
	if chunking["silence_threshold"] != 0.015 {
		t.Errorf("silence_threshold = %v, want 0.015", chunking["silence_threshold"])
	}
}

func TestHandleDevices(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv.handleDevices, "/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /devices = %d, want 200", rec.Code)
	}
	if body["total_devices"] != float64(1) {
		t.Errorf("total_devices = %v, want 1", body["total_devices"])
	}
}

func TestHandleModelsCatalogue(t *testing.T) {
	srv := newTestServer(t)

	rec, body := get(t, srv.handleModels, "/models")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /models = %d, want 200", rec.Code)
	}

	models, ok := body["models"].([]interface{})
	if !ok || len(models) == 0 {
		t.Fatal("models payload missing catalogue entries")
	}
	first := models[0].(map[string]interface{})
	if first["ready"] != false {
		t.Errorf("empty model dir reports ready = %v", first["ready"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", rec.Code)
	}
}

func TestRootUnknownPath(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.handleRoot(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", rec.Code)
	}
}
