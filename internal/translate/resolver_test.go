package translate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// memCache is an in-memory Cache for tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) GetTranslation(source, target, text string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.entries[source+">"+target+":"+text]
	return v, ok, nil
}

func (c *memCache) PutTranslation(source, target, text, translated string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[source+">"+target+":"+text] = translated
	return nil
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	backend.AddTranslation("en", "es", "hello", "hola")

	r := NewResolver(NewMockIdentifier("en"), backend, Config{})
	defer r.Close()

	res := r.Resolve(ctx, "hello", "es")
	if res.Text != "hola" || res.SourceLang != "en" || res.Degraded {
		t.Errorf("Resolve() = %+v, want hola from en", res)
	}

	info, ok := r.Session()
	if !ok {
		t.Fatal("expected an open session")
	}
	if info.Source != "en" || info.Target != "es" || !info.ModelReady {
		t.Errorf("Session() = %+v", info)
	}
}

func TestResolver_IdentifyFallback(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		identify func(*MockIdentifier)
	}{
		{"identifier error", func(m *MockIdentifier) { m.SetError(errors.New("model missing")) }},
		{"undetermined", func(m *MockIdentifier) { m.SetLanguage("hello", Undetermined) }},
		{"empty code", func(m *MockIdentifier) { m.SetLanguage("hello", "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMockBackend()
			backend.AddTranslation("fr", "es", "hello", "hola")

			ident := NewMockIdentifier("de")
			tt.identify(ident)

			r := NewResolver(ident, backend, Config{DefaultSource: "fr"})
			defer r.Close()

			res := r.Resolve(ctx, "hello", "es")
			if res.SourceLang != "fr" {
				t.Errorf("SourceLang = %q, want default fr", res.SourceLang)
			}
			if res.Text != "hola" || res.Degraded {
				t.Errorf("Resolve() = %+v, want hola", res)
			}
		})
	}
}

func TestResolver_NilIdentifierUsesDefault(t *testing.T) {
	r := NewResolver(nil, NewMockBackend(), Config{})
	res := r.Resolve(context.Background(), "hello", "es")
	if res.SourceLang != DefaultSourceLanguage {
		t.Errorf("SourceLang = %q, want %q", res.SourceLang, DefaultSourceLanguage)
	}
}

func TestResolver_Degradation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(*MockBackend)
	}{
		{"open fails", func(b *MockBackend) { b.SetOpenError(errors.New("unsupported pair")) }},
		{"model download fails", func(b *MockBackend) { b.SetEnsureError(errors.New("offline")) }},
		{"translate fails", func(b *MockBackend) { b.SetTranslateError(errors.New("timeout")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMockBackend()
			backend.AddTranslation("en", "es", "hello", "hola")
			tt.setup(backend)

			r := NewResolver(NewMockIdentifier("en"), backend, Config{})
			defer r.Close()

			res := r.Resolve(ctx, "hello", "es")
			if res.Text != "hello" {
				t.Errorf("Text = %q, want original text", res.Text)
			}
			if !res.Degraded {
				t.Error("expected Degraded result")
			}
		})
	}
}

func TestResolver_ModelDownloadedOncePerSession(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	r := NewResolver(NewMockIdentifier("en"), backend, Config{})
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.Resolve(ctx, "hello", "es")
	}

	sessions := backend.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("opened %d sessions, want 1", len(sessions))
	}
	if sessions[0].EnsureCalls() != 1 {
		t.Errorf("EnsureModel called %d times, want 1", sessions[0].EnsureCalls())
	}
}

func TestResolver_SwitchingPairReleasesPreviousSession(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	ident := NewMockIdentifier("en")
	ident.SetLanguage("bonjour", "fr")

	r := NewResolver(ident, backend, Config{})

	r.Resolve(ctx, "hello", "es")
	r.Resolve(ctx, "hello", "de")
	r.Resolve(ctx, "bonjour", "de")
	r.Resolve(ctx, "bonjour", "de")

	sessions := backend.Sessions()
	if len(sessions) != 3 {
		t.Fatalf("opened %d sessions, want 3", len(sessions))
	}
	if r.SessionsOpened() != 3 {
		t.Errorf("SessionsOpened() = %d, want 3", r.SessionsOpened())
	}
	if backend.OpenSessions() != 1 {
		t.Errorf("%d sessions alive, want exactly 1", backend.OpenSessions())
	}
	for i, s := range sessions[:2] {
		if s.CloseCalls() != 1 {
			t.Errorf("session %d closed %d times, want 1", i, s.CloseCalls())
		}
	}

	r.Close()
	r.Close()
	if backend.OpenSessions() != 0 {
		t.Error("Close should release the last session")
	}
	if sessions[2].CloseCalls() != 1 {
		t.Errorf("last session closed %d times, want 1", sessions[2].CloseCalls())
	}
	if _, ok := r.Session(); ok {
		t.Error("no session should be reported after Close")
	}
}

func TestResolver_SameLanguageSkipsTranslation(t *testing.T) {
	backend := NewMockBackend()
	r := NewResolver(NewMockIdentifier("es"), backend, Config{})

	res := r.Resolve(context.Background(), "hola", "ES")
	if res.Text != "hola" || res.Degraded {
		t.Errorf("Resolve() = %+v", res)
	}
	if len(backend.Sessions()) != 0 {
		t.Error("no session should be opened when source equals target")
	}
}

func TestResolver_Cache(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	backend.AddTranslation("en", "es", "dog", "perro")
	cache := newMemCache()

	r := NewResolver(NewMockIdentifier("en"), backend, Config{Cache: cache})
	defer r.Close()

	first := r.Resolve(ctx, "dog", "es")
	if first.Cached || first.Text != "perro" {
		t.Fatalf("first Resolve() = %+v", first)
	}

	second := r.Resolve(ctx, "dog", "es")
	if !second.Cached || second.Text != "perro" {
		t.Errorf("second Resolve() = %+v, want cached perro", second)
	}

	t.Run("degraded results are not cached", func(t *testing.T) {
		b := NewMockBackend()
		b.SetTranslateError(errors.New("boom"))
		c := newMemCache()
		rr := NewResolver(NewMockIdentifier("en"), b, Config{Cache: c})
		rr.Resolve(ctx, "cat", "es")
		if len(c.entries) != 0 {
			t.Errorf("cache has %d entries, want 0", len(c.entries))
		}
	})

	t.Run("cache errors fall through to the backend", func(t *testing.T) {
		c := newMemCache()
		c.getErr = errors.New("disk full")
		rr := NewResolver(NewMockIdentifier("en"), backend, Config{Cache: c})
		defer rr.Close()
		if res := rr.Resolve(ctx, "dog", "es"); res.Text != "perro" {
			t.Errorf("Resolve() = %+v, want perro", res)
		}
	})
}

func TestResolver_ClosedSessionDegrades(t *testing.T) {
	ctx := context.Background()
	backend := NewMockBackend()
	backend.AddTranslation("en", "es", "hello", "hola")
	r := NewResolver(NewMockIdentifier("en"), backend, Config{})

	r.Resolve(ctx, "hello", "es")
	// A session closed underneath an in-flight call must not be reused.
	backend.Sessions()[0].Close()

	res := r.Resolve(ctx, "hello", "es")
	if !res.Degraded || res.Text != "hello" {
		t.Errorf("Resolve() = %+v, want degraded original text", res)
	}
}

func TestResolver_ResolveAsync(t *testing.T) {
	backend := NewMockBackend()
	backend.AddTranslation("en", "es", "hello", "hola")
	r := NewResolver(NewMockIdentifier("en"), backend, Config{})
	defer r.Close()

	res := <-r.ResolveAsync(context.Background(), "hello", "es")
	if res.Text != "hola" {
		t.Errorf("ResolveAsync() = %+v, want hola", res)
	}
}

func TestResolver_UnavailableBackend(t *testing.T) {
	r := NewResolver(NewMockIdentifier("en"), Unavailable{}, Config{})
	defer r.Close()

	res := r.Resolve(context.Background(), "hello", "es")
	if !res.Degraded || res.Text != "hello" {
		t.Errorf("Resolve() = %+v, want degraded original text", res)
	}
}
