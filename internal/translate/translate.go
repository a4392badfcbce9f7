// Package translate resolves detected text into a target language through a
// single shared translator session.
package translate

import (
	"context"
	"errors"
)

// Undetermined is the language code returned when identification is inconclusive.
const Undetermined = "und"

// DefaultSourceLanguage is used when identification fails or is inconclusive.
const DefaultSourceLanguage = "en"

// ErrSessionClosed is returned by sessions used after Close.
var ErrSessionClosed = errors.New("translate: session closed")

// Identifier detects the language of a piece of text.
type Identifier interface {
	// Identify returns a BCP-47 language code or Undetermined.
	Identify(ctx context.Context, text string) (string, error)
}

// Session is a translator bound to one source/target language pair.
type Session interface {
	// EnsureModel makes the translation model available, downloading it if needed.
	EnsureModel(ctx context.Context) error
	// Translate translates text from the session source to the session target.
	Translate(ctx context.Context, text string) (string, error)
	// Close releases the session resources.
	Close() error
}

// Backend opens translator sessions.
type Backend interface {
	Open(source, target string) (Session, error)
}

// Cache stores finished translations keyed by language pair and text.
type Cache interface {
	GetTranslation(source, target, text string) (string, bool, error)
	PutTranslation(source, target, text, translated string) error
}

// Result is the outcome of a resolve call.
type Result struct {
	SourceLang string `json:"source_lang"`
	Text       string `json:"text"`
	// Degraded is true when Text is the original input because a step failed.
	Degraded bool `json:"degraded"`
	// Cached is true when the translation came from the cache.
	Cached bool `json:"cached"`
}

// SessionInfo describes the open translator session.
type SessionInfo struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	ModelReady bool   `json:"model_ready"`
}

// ErrNoBackend is returned by Unavailable.
var ErrNoBackend = errors.New("translate: no translation backend configured")

// Unavailable is a Backend that cannot open sessions. Every resolve degrades
// to the original text.
type Unavailable struct{}

// Open always fails with ErrNoBackend.
func (Unavailable) Open(source, target string) (Session, error) {
	return nil, ErrNoBackend
}
