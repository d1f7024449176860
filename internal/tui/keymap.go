package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	moveTaskUp    key.Binding
	moveTaskDown  key.Binding
	copyID        key.Binding
	toggleDetails key.Binding
	cancelDrag    key.Binding
}

// KeyConfig holds user overrides for rebindable keys. Blank values keep defaults.
type KeyConfig struct {
	Reload        string
	CopyID        string
	ToggleDetails string
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		moveTaskUp:    key.NewBinding(key.WithKeys("K", "shift+k"), key.WithHelp("K", "move task up")),
		moveTaskDown:  key.NewBinding(key.WithKeys("J", "shift+j"), key.WithHelp("J", "move task down")),
		copyID:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
		toggleDetails: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "toggle details")),
		cancelDrag:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
	}
}

// applyConfig applies configured key overrides.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.reload, cfg.Reload, "r", "reload")
	configureBinding(&k.copyID, cfg.CopyID, "y", "copy task id")
	configureBinding(&k.toggleDetails, cfg.ToggleDetails, "d", "toggle details")
}

// configureBinding rebinds b to raw, falling back when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys converts one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = fallback
	}
	if value == " " || strings.EqualFold(value, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(value) == 1 {
		r, _ := utf8.DecodeRuneInString(value)
		if unicode.IsUpper(r) {
			return []string{value, "shift+" + string(unicode.ToLower(r))}, value
		}
		return []string{value}, value
	}
	return []string{strings.ToLower(value)}, value
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.moveTaskLeft, k.moveTaskRight, k.copyID, k.toggleDetails, k.reload, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.moveTaskLeft, k.moveTaskRight, k.moveTaskUp, k.moveTaskDown, k.cancelDrag},
		{k.copyID, k.toggleDetails, k.reload, k.toggleHelp, k.quit},
	}
}
