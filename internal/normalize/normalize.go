// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns raw protocol text into a types.Document.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const (
	// MaxTitleLength caps a derived title, in runes.
	MaxTitleLength = 120

	// PlaceholderTitle is used when no non-blank line exists.
	PlaceholderTitle = "Untitled protocol"
)

type options struct {
	id    string
	title string
}

// Option overrides a derived Document field.
type Option func(*options)

// WithID sets the document ID instead of generating one. An empty id is ignored.
func WithID(id string) Option {
	return func(o *options) {
		if id = strings.TrimSpace(id); id != "" {
			o.id = id
		}
	}
}

// WithTitle sets the document title instead of deriving one. An empty title is ignored.
func WithTitle(title string) Option {
	return func(o *options) {
		if title = strings.TrimSpace(title); title != "" {
			o.title = title
		}
	}
}

// Normalize builds a Document from raw text. It returns an error wrapping
// types.ErrEmptyInput when the trimmed text is empty.
func Normalize(raw string, opts ...Option) (types.Document, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return types.Document{}, fmt.Errorf("normalizing document: %w", types.ErrEmptyInput)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	id := o.id
	if id == "" {
		id = uuid.NewString()
	}
	title := o.title
	if title == "" {
		title = deriveTitle(text)
	}

	return types.Document{
		ID:           id,
		Title:        title,
		Text:         text,
		PageEstimate: PageEstimate(text),
	}, nil
}

// PageEstimate returns max(1, ceil(runes(text) / types.CharsPerPage)).
func PageEstimate(text string) int {
	n := utf8.RuneCountInString(text)
	pages := (n + types.CharsPerPage - 1) / types.CharsPerPage
	if pages < 1 {
		return 1
	}
	return pages
}

// deriveTitle returns the first non-blank line, capped at MaxTitleLength runes.
func deriveTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return truncate(line, MaxTitleLength)
	}
	return PlaceholderTitle
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
