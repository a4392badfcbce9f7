package translate

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Config holds resolver options.
type Config struct {
	// DefaultSource is used when the identifier fails or returns Undetermined.
	DefaultSource string
	// Cache is optional.
	Cache Cache
}

// openSession is the single translator session shared across calls.
type openSession struct {
	source  string
	target  string
	session Session

	mu         sync.Mutex
	modelReady bool
	closed     bool
}

func (s *openSession) ensureModel(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.modelReady {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// The download may be slow; it runs without holding any lock.
	if err := s.session.EnsureModel(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.modelReady = true
	s.mu.Unlock()
	return nil
}

func (s *openSession) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.session.Close(); err != nil {
		log.Printf("Error closing translator %s->%s: %v", s.source, s.target, err)
	}
}

// Resolver identifies, translates and caches text. Exactly one translator
// session is open at a time; switching language pairs closes the previous
// session before the new one is opened.
//
// Resolve never fails: every error degrades to the original text.
type Resolver struct {
	identifier    Identifier
	backend       Backend
	cache         Cache
	defaultSource string

	mu      sync.Mutex
	current *openSession
	opened  int
}

// NewResolver creates a Resolver.
func NewResolver(identifier Identifier, backend Backend, config Config) *Resolver {
	src := strings.TrimSpace(config.DefaultSource)
	if src == "" {
		src = DefaultSourceLanguage
	}
	return &Resolver{
		identifier:    identifier,
		backend:       backend,
		cache:         config.Cache,
		defaultSource: src,
	}
}

// Resolve translates text into target.
//
// Steps: identify the source language (falling back to the default source),
// check the cache, acquire the session for the pair, ensure its model, then
// translate. A failure in any step returns the original text with Degraded set.
func (r *Resolver) Resolve(ctx context.Context, text, target string) Result {
	source := r.identify(ctx, text)
	degraded := Result{SourceLang: source, Text: text, Degraded: true}

	if strings.EqualFold(source, target) {
		return Result{SourceLang: source, Text: text}
	}

	if r.cache != nil {
		translated, ok, err := r.cache.GetTranslation(source, target, text)
		if err != nil {
			log.Printf("Translation cache lookup failed: %v", err)
		} else if ok {
			return Result{SourceLang: source, Text: translated, Cached: true}
		}
	}

	sess, err := r.acquire(source, target)
	if err != nil {
		log.Printf("Error opening translator %s->%s: %v", source, target, err)
		return degraded
	}

	if err := sess.ensureModel(ctx); err != nil {
		log.Printf("Error downloading translation model %s->%s: %v", source, target, err)
		return degraded
	}

	translated, err := sess.session.Translate(ctx, text)
	if err != nil {
		log.Printf("Error translating %q: %v", text, err)
		return degraded
	}

	if r.cache != nil {
		if err := r.cache.PutTranslation(source, target, text, translated); err != nil {
			log.Printf("Translation cache store failed: %v", err)
		}
	}

	return Result{SourceLang: source, Text: translated}
}

// ResolveAsync runs Resolve on its own goroutine. The returned channel
// receives exactly one Result.
func (r *Resolver) ResolveAsync(ctx context.Context, text, target string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- r.Resolve(ctx, text, target)
	}()
	return ch
}

// Session returns information about the open session, if any.
func (r *Resolver) Session() (SessionInfo, bool) {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()

	if cur == nil {
		return SessionInfo{}, false
	}

	cur.mu.Lock()
	defer cur.mu.Unlock()
	return SessionInfo{Source: cur.source, Target: cur.target, ModelReady: cur.modelReady}, true
}

// SessionsOpened returns how many sessions were opened over the resolver lifetime.
func (r *Resolver) SessionsOpened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened
}

// Close releases the open session.
func (r *Resolver) Close() error {
	r.mu.Lock()
	cur := r.current
	r.current = nil
	r.mu.Unlock()

	if cur != nil {
		cur.close()
	}
	return nil
}

func (r *Resolver) identify(ctx context.Context, text string) string {
	if r.identifier == nil {
		return r.defaultSource
	}

	lang, err := r.identifier.Identify(ctx, text)
	if err != nil {
		log.Printf("Language identification failed, using %s: %v", r.defaultSource, err)
		return r.defaultSource
	}

	lang = strings.TrimSpace(lang)
	if lang == "" || lang == Undetermined {
		return r.defaultSource
	}
	return lang
}

// acquire returns the session for the pair, replacing the current one when
// the pair differs. The old session is closed before the new one is opened.
func (r *Resolver) acquire(source, target string) (*openSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.current; cur != nil {
		if cur.source == source && cur.target == target {
			return cur, nil
		}
		cur.close()
		r.current = nil
	}

	s, err := r.backend.Open(source, target)
	if err != nil {
		return nil, err
	}

	r.current = &openSession{source: source, target: target, session: s}
	r.opened++
	return r.current, nil
}
