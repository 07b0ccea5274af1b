package services

import (
	"strings"

	"atende-relay/internal/evolution"
	"atende-relay/internal/models"
)

// OptionMatcher resolves an inbound reply to one of a node's options.
// Implementations return nil when nothing matches.
type OptionMatcher interface {
	Match(ev *evolution.InboundEvent, opts []models.ChatbotOption) *models.ChatbotOption
}

// ExactIDMatcher matches button/list reply ids, and typed text that equals an
// option id (users answering "1" to a numbered menu).
type ExactIDMatcher struct{}

func (ExactIDMatcher) Match(ev *evolution.InboundEvent, opts []models.ChatbotOption) *models.ChatbotOption {
	selected := ev.SelectedID
	if selected == "" {
		selected = strings.TrimSpace(ev.Conteudo)
	}
	if selected == "" {
		return nil
	}
	for i := range opts {
		if opts[i].OptionID == selected {
			return &opts[i]
		}
	}
	return nil
}

// TextMatcher is the best-effort fallback: case-insensitive equality against
// the option label, then substring containment in either direction.
type TextMatcher struct{}

func (TextMatcher) Match(ev *evolution.InboundEvent, opts []models.ChatbotOption) *models.ChatbotOption {
	text := strings.ToLower(strings.TrimSpace(ev.Conteudo))
	if text == "" {
		return nil
	}
	for i := range opts {
		if strings.ToLower(opts[i].Texto) == text {
			return &opts[i]
		}
	}
	for i := range opts {
		label := strings.ToLower(opts[i].Texto)
		if label != "" && (strings.Contains(text, label) || strings.Contains(label, text)) {
			return &opts[i]
		}
	}
	return nil
}

// ChainMatcher tries each matcher in order.
type ChainMatcher []OptionMatcher

func (c ChainMatcher) Match(ev *evolution.InboundEvent, opts []models.ChatbotOption) *models.ChatbotOption {
	for _, m := range c {
		if opt := m.Match(ev, opts); opt != nil {
			return opt
		}
	}
	return nil
}

// DefaultMatcher is exact id first, fuzzy text second.
func DefaultMatcher() OptionMatcher {
	return ChainMatcher{ExactIDMatcher{}, TextMatcher{}}
}
