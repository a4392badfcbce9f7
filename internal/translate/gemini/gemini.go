// Package gemini implements language identification and translation on top
// of the Gemini generative API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ayusman/lingolens/internal/translate"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

const maxAttempts = 3

// ErrNoAPIKey is returned when the engine is created without an API key.
var ErrNoAPIKey = errors.New("gemini: GEMINI_API_KEY is empty")

// Engine is a translate.Identifier and translate.Backend backed by one
// shared Gemini client.
type Engine struct {
	model string

	mu     sync.Mutex
	client *genai.Client
}

// New creates an Engine. The client is created once and shared by every
// session opened from the engine.
func New(ctx context.Context, apiKey, model string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Engine{model: model, client: cl}, nil
}

// Model returns the configured model name.
func (e *Engine) Model() string { return e.model }

// Identify returns the BCP-47 code of text, or translate.Undetermined.
func (e *Engine) Identify(ctx context.Context, text string) (string, error) {
	m, err := e.generativeModel(`You identify the language of short text seen through a phone camera.
Reply with the BCP-47 language code only, for example "en" or "es".
Reply "und" if the language cannot be determined.`)
	if err != nil {
		return "", err
	}

	out, err := generate(ctx, m, text)
	if err != nil {
		return "", fmt.Errorf("gemini identify: %w", err)
	}
	return normalizeCode(out), nil
}

// Open returns a session for the language pair.
func (e *Engine) Open(source, target string) (translate.Session, error) {
	source = strings.TrimSpace(source)
	target = strings.TrimSpace(target)
	if source == "" || target == "" {
		return nil, fmt.Errorf("gemini: invalid language pair %q->%q", source, target)
	}

	m, err := e.generativeModel(fmt.Sprintf(`You translate short labels and signs from %s to %s.
Reply with the translation only, without quotes, notes or alternatives.`, source, target))
	if err != nil {
		return nil, err
	}
	return &session{source: source, target: target, model: m}, nil
}

// Close releases the client. Sessions opened earlier stop working.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *Engine) generativeModel(instruction string) (*genai.GenerativeModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, translate.ErrSessionClosed
	}

	m := e.client.GenerativeModel(e.model)
	if m == nil {
		return nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}
	return m, nil
}

type session struct {
	source string
	target string
	model  *genai.GenerativeModel

	mu     sync.Mutex
	closed bool
}

// EnsureModel checks that the remote model is reachable.
func (s *session) EnsureModel(ctx context.Context) error {
	if s.isClosed() {
		return translate.ErrSessionClosed
	}
	if _, err := s.model.Info(ctx); err != nil {
		return fmt.Errorf("gemini: model info: %w", err)
	}
	return nil
}

func (s *session) Translate(ctx context.Context, text string) (string, error) {
	if s.isClosed() {
		return "", translate.ErrSessionClosed
	}
	out, err := generate(ctx, s.model, text)
	if err != nil {
		return "", fmt.Errorf("gemini translate %s->%s: %w", s.source, s.target, err)
	}
	return out, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// generate sends text and returns the first text part, retrying transient failures.
func generate(ctx context.Context, m *genai.GenerativeModel, text string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := m.GenerateContent(ctx, genai.Text(text))
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}

		out := stripCodeFences(strings.TrimSpace(firstText(resp)))
		if out == "" {
			return "", errors.New("empty response")
		}
		return out, nil
	}
	return "", lastErr
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// normalizeCode reduces a model reply to a lower-case language code.
func normalizeCode(s string) string {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'.`))
	if i := strings.IndexAny(s, " \n\t"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return translate.Undetermined
	}
	return s
}

func ptrFloat32(v float32) *float32 { return &v }
