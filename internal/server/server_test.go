package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/lingolens/internal/annotation"
	"github.com/ayusman/lingolens/internal/app"
	"github.com/ayusman/lingolens/internal/geometry"
	"github.com/ayusman/lingolens/internal/mode"
	"github.com/ayusman/lingolens/internal/store"
)

// fakePipeline is an in-memory Pipeline.
type fakePipeline struct {
	mu          sync.Mutex
	modes       *mode.Machine
	target      string
	enabled     bool
	annotations *annotation.Manager
	frames      [][]byte
	watchers    int
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		modes:       mode.NewMachine(mode.Object),
		target:      "es",
		enabled:     true,
		annotations: annotation.NewManager(nil),
	}
}

func (p *fakePipeline) Status() app.Status {
	tag := p.modes.Tag()
	return app.Status{
		Running:        true,
		Enabled:        p.IsEnabled(),
		Mode:           tag.Mode.String(),
		Epoch:          tag.Epoch,
		TargetLanguage: p.TargetLanguage(),
		Annotations:    p.annotations.Count(),
	}
}

func (p *fakePipeline) Mode() mode.Mode                     { return p.modes.Mode() }
func (p *fakePipeline) SetMode(m mode.Mode) mode.Transition { return p.modes.Set(m) }
func (p *fakePipeline) ToggleMode() mode.Transition         { return p.modes.Toggle() }
func (p *fakePipeline) Annotations() *annotation.Manager    { return p.annotations }

func (p *fakePipeline) TargetLanguage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

func (p *fakePipeline) SetTargetLanguage(lang string) error {
	if lang == "" || strings.Contains(lang, " ") {
		return fmt.Errorf("%w: %q", app.ErrInvalidLanguage, lang)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = lang
	return nil
}

func (p *fakePipeline) IsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *fakePipeline) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

func (p *fakePipeline) WatchPreview() func() {
	p.mu.Lock()
	p.watchers++
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.watchers--
		p.mu.Unlock()
	}
}

// NextPreview returns the queued frames in order, then waits for done.
func (p *fakePipeline) NextPreview(after uint64, done <-chan struct{}) ([]byte, uint64, bool) {
	p.mu.Lock()
	if int(after) < len(p.frames) {
		frame := p.frames[after]
		p.mu.Unlock()
		return frame, after + 1, true
	}
	p.mu.Unlock()
	<-done
	return nil, 0, false
}

func (p *fakePipeline) Watchers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchers
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Pipeline: newFakePipeline()})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/health", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		decode(t, rec, &response)

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		pipeline, ok := response["pipeline"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected 'pipeline' object, got %v", response["pipeline"])
		}
		if pipeline["mode"] != "object" {
			t.Errorf("expected mode object, got %v", pipeline["mode"])
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			rec := doJSON(t, s, method, "/api/health", "")
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	rec := doJSON(t, s, http.MethodGet, "/api/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_Mode(t *testing.T) {
	p := newFakePipeline()
	p.annotations.SetAnnotations([]annotation.Annotation{{SourceText: "cup"}})
	cleared := 0
	p.modes.OnTransition(func(mode.Transition) {
		p.annotations.ClearAll()
		cleared++
	})
	s := New(Config{Pipeline: p})

	t.Run("get", func(t *testing.T) {
		var resp modeResponse
		decode(t, doJSON(t, s, http.MethodGet, "/api/mode", ""), &resp)
		if resp.Mode != "object" {
			t.Errorf("expected mode object, got %q", resp.Mode)
		}
	})

	t.Run("put", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/api/mode", `{"mode":"text"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var resp modeResponse
		decode(t, rec, &resp)
		if resp.Mode != "text" || resp.Epoch != 1 {
			t.Errorf("unexpected response %+v", resp)
		}
		if p.annotations.Count() != 0 || cleared != 1 {
			t.Error("mode change should clear annotations")
		}
	})

	t.Run("toggle", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/mode/toggle", "")
		var resp modeResponse
		decode(t, rec, &resp)
		if resp.Mode != "object" {
			t.Errorf("expected toggle back to object, got %q", resp.Mode)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		for _, body := range []string{`{"mode":"audio"}`, `not json`} {
			rec := doJSON(t, s, http.MethodPut, "/api/mode", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: expected status %d, got %d", body, http.StatusBadRequest, rec.Code)
			}
		}
	})
}

func TestServer_Language(t *testing.T) {
	p := newFakePipeline()
	s := New(Config{Pipeline: p})

	rec := doJSON(t, s, http.MethodPut, "/api/language", `{"target":"fr"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp languageResponse
	decode(t, doJSON(t, s, http.MethodGet, "/api/language", ""), &resp)
	if resp.Target != "fr" {
		t.Errorf("expected target fr, got %q", resp.Target)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/language", `{"target":"not valid"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestServer_Enabled(t *testing.T) {
	p := newFakePipeline()
	s := New(Config{Pipeline: p})

	rec := doJSON(t, s, http.MethodPut, "/api/enabled", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if p.IsEnabled() {
		t.Error("pipeline should be disabled")
	}

	rec = doJSON(t, s, http.MethodPut, "/api/enabled", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for missing field, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestServer_Annotations(t *testing.T) {
	p := newFakePipeline()
	p.annotations.SetAnnotations([]annotation.Annotation{
		{SourceText: "hello", TranslatedText: "hola", Bounds: geometry.NewRect(10, 10, 50, 20)},
	})
	s := New(Config{Pipeline: p})

	var resp annotationsResponse
	decode(t, doJSON(t, s, http.MethodGet, "/api/annotations", ""), &resp)

	if resp.Version != p.annotations.Version() {
		t.Errorf("expected version %d, got %d", p.annotations.Version(), resp.Version)
	}
	if len(resp.Annotations) != 1 || resp.Annotations[0].TranslatedText != "hola" {
		t.Errorf("unexpected annotations %+v", resp.Annotations)
	}
}

func TestServer_AnnotationsWebSocket(t *testing.T) {
	p := newFakePipeline()
	s := New(Config{Pipeline: p})
	defer s.Close()

	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/annotations/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() annotationsMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg annotationsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return msg
	}

	if initial := read(); len(initial.Annotations) != 0 {
		t.Errorf("expected empty initial state, got %+v", initial.Annotations)
	}

	// Wait for the handler to register the client before changing state.
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	p.annotations.SetAnnotations([]annotation.Annotation{{SourceText: "dog", TranslatedText: "perro"}})
	msg := read()
	if len(msg.Annotations) != 1 || msg.Annotations[0].TranslatedText != "perro" {
		t.Errorf("unexpected broadcast %+v", msg.Annotations)
	}

	p.annotations.ClearAll()
	if msg := read(); len(msg.Annotations) != 0 {
		t.Errorf("expected cleared broadcast, got %+v", msg.Annotations)
	}
}

func TestServer_Stream(t *testing.T) {
	p := newFakePipeline()
	p.frames = [][]byte{[]byte("jpeg-1"), []byte("jpeg-2")}
	s := New(Config{Pipeline: p})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	body := rec.Body.Bytes()
	if bytes.Count(body, []byte("--frame")) != 2 {
		t.Errorf("expected 2 frames, got body %q", body)
	}
	if !bytes.Contains(body, []byte("Content-Length: 6")) {
		t.Error("expected Content-Length header for each part")
	}
	if p.Watchers() != 0 {
		t.Error("stream should release its preview watch")
	}
}

func TestServer_History(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	for _, text := range []string{"hello", "dog", "exit"} {
		if err := st.History().Add(&store.HistoryEntry{
			Mode: "object", AnchorKind: "screen", SourceText: text, SourceLang: "en",
			TranslatedText: text + "!", TargetLang: "es",
		}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	s := New(Config{Store: st})

	t.Run("list with limit", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/history?limit=2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var resp struct {
			Entries []*store.HistoryEntry `json:"entries"`
			Total   int                   `json:"total"`
		}
		decode(t, rec, &resp)
		if len(resp.Entries) != 2 || resp.Total != 3 {
			t.Errorf("got %d entries of %d, want 2 of 3", len(resp.Entries), resp.Total)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/history?limit=abc", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("clear", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete, "/api/history", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
		}
		if n, _ := st.History().Count(); n != 0 {
			t.Errorf("Count() = %d after clear, want 0", n)
		}
	})
}

func TestServer_Translations(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	if err := st.Translations().PutTranslation("en", "es", "hello", "hola"); err != nil {
		t.Fatalf("PutTranslation() error = %v", err)
	}
	s := New(Config{Store: st})

	var stats struct {
		Entries int `json:"entries"`
	}
	decode(t, doJSON(t, s, http.MethodGet, "/api/translations", ""), &stats)
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/translations/prune", `{"older_than":"forever"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/translations/prune", `{"older_than":"1h"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/style.css", "")
		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/nonexistent.html", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_NoPipeline(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/", "/api/mode", "/api/annotations", "/api/history"} {
		rec := doJSON(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}
