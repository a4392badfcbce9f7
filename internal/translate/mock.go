package translate

import (
	"context"
	"sync"
)

// MockIdentifier returns a configured language or error.
type MockIdentifier struct {
	mu    sync.Mutex
	langs map[string]string
	lang  string
	err   error
	hook  func(text string)
}

// NewMockIdentifier creates a MockIdentifier answering lang for every text.
func NewMockIdentifier(lang string) *MockIdentifier {
	return &MockIdentifier{lang: lang, langs: make(map[string]string)}
}

// SetLanguage overrides the answer for a specific text.
func (m *MockIdentifier) SetLanguage(text, lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.langs[text] = lang
}

// SetError makes Identify fail.
func (m *MockIdentifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetHook installs a function that Identify runs before answering. Tests use
// it to change pipeline state while a translation is in progress.
func (m *MockIdentifier) SetHook(fn func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Identify returns the configured language.
func (m *MockIdentifier) Identify(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(text)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if lang, ok := m.langs[text]; ok {
		return lang, nil
	}
	return m.lang, nil
}

// MockBackend translates from an in-memory dictionary keyed by "source>target".
// Text missing from the dictionary is returned unchanged.
type MockBackend struct {
	mu           sync.Mutex
	dict         map[string]map[string]string
	openErr      error
	ensureErr    error
	translateErr error
	sessions     []*MockSession
}

// NewMockBackend creates an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{dict: make(map[string]map[string]string)}
}

// AddTranslation registers a translation for the pair.
func (b *MockBackend) AddTranslation(source, target, text, translated string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := source + ">" + target
	if b.dict[key] == nil {
		b.dict[key] = make(map[string]string)
	}
	b.dict[key][text] = translated
}

// SetOpenError makes Open fail.
func (b *MockBackend) SetOpenError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// SetEnsureError makes EnsureModel fail on sessions opened afterwards.
func (b *MockBackend) SetEnsureError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureErr = err
}

// SetTranslateError makes Translate fail on sessions opened afterwards.
func (b *MockBackend) SetTranslateError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.translateErr = err
}

// Open creates a MockSession.
func (b *MockBackend) Open(source, target string) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}

	dict := make(map[string]string)
	for k, v := range b.dict[source+">"+target] {
		dict[k] = v
	}

	s := &MockSession{
		Source:       source,
		Target:       target,
		dict:         dict,
		ensureErr:    b.ensureErr,
		translateErr: b.translateErr,
	}
	b.sessions = append(b.sessions, s)
	return s, nil
}

// Sessions returns every session opened so far.
func (b *MockBackend) Sessions() []*MockSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockSession(nil), b.sessions...)
}

// OpenSessions returns how many sessions have not been closed.
func (b *MockBackend) OpenSessions() int {
	n := 0
	for _, s := range b.Sessions() {
		if !s.IsClosed() {
			n++
		}
	}
	return n
}

// MockSession is the session returned by MockBackend.
type MockSession struct {
	Source string
	Target string

	mu           sync.Mutex
	dict         map[string]string
	ensureErr    error
	translateErr error
	ensureCalls  int
	closeCalls   int
}

// EnsureModel counts calls and returns the configured error.
func (s *MockSession) EnsureModel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeCalls > 0 {
		return ErrSessionClosed
	}
	s.ensureCalls++
	return s.ensureErr
}

// Translate looks the text up in the dictionary.
func (s *MockSession) Translate(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeCalls > 0 {
		return "", ErrSessionClosed
	}
	if s.translateErr != nil {
		return "", s.translateErr
	}
	if out, ok := s.dict[text]; ok {
		return out, nil
	}
	return text, nil
}

// Close marks the session closed.
func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

// IsClosed reports whether Close was called.
func (s *MockSession) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls > 0
}

// CloseCalls returns how many times Close was called.
func (s *MockSession) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// EnsureCalls returns how many times EnsureModel was called.
func (s *MockSession) EnsureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureCalls
}
