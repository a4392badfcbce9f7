package tray

import (
	"testing"
	"unicode/utf8"
)

func TestTray_Toggle(t *testing.T) {
	tr := New("object")

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("expected enabled after two toggles")
	}
}

func TestTray_ToggleMode(t *testing.T) {
	tr := New("object")
	tr.handleToggleMode() // no callback is a no-op

	tr.OnToggleMode(func() string { return "text" })
	tr.handleToggleMode()

	if tr.Mode() != "text" {
		t.Errorf("Mode() = %q, want text", tr.Mode())
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"enabled", enabledTitle(true), "● Translating"},
		{"disabled", enabledTitle(false), "○ Paused"},
		{"mode", modeTitle("text"), "Mode: text"},
		{"empty mode", modeTitle(""), "Mode: object"},
		{"no translation", lastTitle(""), "Last: none"},
		{"pair", lastTitle(pair("dog", "perro")), "Last: dog → perro"},
		{"untranslated", lastTitle(pair("hola", "hola")), "Last: hola"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := "Salida de emergencia en el segundo piso del edificio"
	got := truncate(long, 10)
	if utf8.RuneCountInString(got) != 10 {
		t.Errorf("truncate() = %q, want 10 runes", got)
	}
	if truncate("short", 10) != "short" {
		t.Error("short strings should be unchanged")
	}
}
