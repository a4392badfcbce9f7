// Package tray provides a system tray interface for the LingoLens translator.
package tray

import (
	"sync"
	"unicode/utf8"

	"github.com/getlantern/systray"
)

// maxLabelRunes bounds the last-translation menu title.
const maxLabelRunes = 40

// Tray represents the system tray application.
type Tray struct {
	onToggle     func(enabled bool)
	onToggleMode func() string
	onPreview    func()
	onQuit       func()
	enabled      bool
	mode         string
	mu           sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuMode   *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray instance showing the given detection mode.
func New(mode string) *Tray {
	return &Tray{
		enabled: true,
		mode:    mode,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnToggleMode sets the callback for the mode menu item. It returns the new mode name.
func (t *Tray) OnToggleMode(fn func() string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggleMode = fn
}

// OnPreview sets the callback function to be called when the preview menu item is clicked.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("LingoLens")
	systray.SetTooltip("LingoLens Live Translation")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(enabledTitle(t.enabled), "Toggle live translation")
	t.menuMode = systray.AddMenuItem(modeTitle(t.mode), "Switch between objects and text")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(""), "Last translation")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuPreview := systray.AddMenuItem("Open Preview...", "Open the live preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit LingoLens")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuMode.ClickedCh:
				t.handleToggleMode()
			case <-menuPreview.ClickedCh:
				t.handlePreview()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(enabledTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleToggleMode switches the detection mode and relabels the menu item.
func (t *Tray) handleToggleMode() {
	t.mu.RLock()
	callback := t.onToggleMode
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	t.SetMode(callback())
}

func (t *Tray) handlePreview() {
	t.mu.RLock()
	callback := t.onPreview
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetMode updates the mode menu item.
func (t *Tray) SetMode(mode string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = mode
	if t.menuMode != nil {
		t.menuMode.SetTitle(modeTitle(mode))
	}
}

// SetLastTranslation updates the last translation display in the menu.
func (t *Tray) SetLastTranslation(source, translated string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(pair(source, translated)))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Mode returns the mode shown in the menu.
func (t *Tray) Mode() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

func enabledTitle(enabled bool) string {
	if enabled {
		return "● Translating"
	}
	return "○ Paused"
}

func modeTitle(mode string) string {
	if mode == "" {
		return "Mode: object"
	}
	return "Mode: " + mode
}

func lastTitle(text string) string {
	if text == "" {
		return "Last: none"
	}
	return "Last: " + truncate(text, maxLabelRunes)
}

func pair(source, translated string) string {
	switch {
	case source == "":
		return translated
	case translated == "" || translated == source:
		return source
	default:
		return source + " → " + translated
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Quit stops the tray loop, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
