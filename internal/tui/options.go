package tui

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/initboard/internal/domain"
)

// Option configures a Model at construction.
type Option func(*Model)

// WithUserID sets the user whose access gates dragging.
func WithUserID(userID string) Option {
	return func(m *Model) {
		m.userID = strings.TrimSpace(userID)
	}
}

// WithInitiative names the board shown in the header.
func WithInitiative(initiative domain.Initiative) Option {
	return func(m *Model) {
		m.initiative = initiative
	}
}

// WithColumnLabels overrides column header labels; blank entries keep defaults.
func WithColumnLabels(labels map[domain.Status]string) Option {
	return func(m *Model) {
		for status, label := range labels {
			if label = strings.TrimSpace(label); label != "" && status.Valid() {
				m.labels[status] = label
			}
		}
	}
}

// WithShowDescription toggles the detail line under the selected card.
func WithShowDescription(show bool) Option {
	return func(m *Model) {
		m.showDetails = show
	}
}

// WithKeyConfig rebinds keys from config; unset fields keep the defaults.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithChangeFeed makes the board reload whenever feed signals.
func WithChangeFeed(feed <-chan struct{}) Option {
	return func(m *Model) {
		m.feed = feed
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copy = write
		}
	}
}

// WithLogger routes board and drag diagnostics to logger. Nil is ignored.
func WithLogger(logger *log.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}
