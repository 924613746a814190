// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		opts      []Option
		wantTitle string
		wantText  string
		wantPages int
	}{
		{
			name:      "title from first non-blank line",
			raw:       "\n\n  Phase II Study of Drug X  \nInclusion Criteria\n",
			wantTitle: "Phase II Study of Drug X",
			wantText:  "Phase II Study of Drug X  \nInclusion Criteria",
			wantPages: 1,
		},
		{
			name:      "explicit title wins",
			raw:       "first line\nsecond line",
			opts:      []Option{WithTitle("Protocol ABC-123")},
			wantTitle: "Protocol ABC-123",
			wantText:  "first line\nsecond line",
			wantPages: 1,
		},
		{
			name:      "blank explicit title falls back to derived",
			raw:       "derived title",
			opts:      []Option{WithTitle("   ")},
			wantTitle: "derived title",
			wantText:  "derived title",
			wantPages: 1,
		},
		{
			name:      "exactly one page",
			raw:       strings.Repeat("a", 3000),
			wantTitle: strings.Repeat("a", MaxTitleLength),
			wantText:  strings.Repeat("a", 3000),
			wantPages: 1,
		},
		{
			name:      "one character over a page",
			raw:       strings.Repeat("a", 3001),
			wantTitle: strings.Repeat("a", MaxTitleLength),
			wantText:  strings.Repeat("a", 3001),
			wantPages: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Normalize(tt.raw, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, doc.Title)
			assert.Equal(t, tt.wantText, doc.Text)
			assert.Equal(t, tt.wantPages, doc.PageEstimate)
		})
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t \n"} {
		_, err := Normalize(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrEmptyInput), "input %q", raw)
	}
}

func TestNormalizeID(t *testing.T) {
	doc, err := Normalize("text")
	require.NoError(t, err)
	parsed, err := uuid.Parse(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	other, err := Normalize("text")
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, other.ID)

	fixed, err := Normalize("text", WithID("NCT01234567"))
	require.NoError(t, err)
	assert.Equal(t, "NCT01234567", fixed.ID)
}

func TestNormalizeTextIsTrimmedInput(t *testing.T) {
	inputs := []string{
		"x",
		"  padded  ",
		"line one\n\nline two\n",
		"\t" + strings.Repeat("é", 4500) + "\n",
	}
	for _, raw := range inputs {
		doc, err := Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, strings.TrimSpace(raw), doc.Text)
		assert.GreaterOrEqual(t, doc.PageEstimate, 1)
	}
}

func TestDeriveTitleCapsRunes(t *testing.T) {
	long := strings.Repeat("β", 200)
	title := deriveTitle(long)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(title))
}

func TestDeriveTitlePlaceholder(t *testing.T) {
	assert.Equal(t, PlaceholderTitle, deriveTitle("   \n\t\n"))
}

func TestPageEstimate(t *testing.T) {
	assert.Equal(t, 1, PageEstimate(""))
	assert.Equal(t, 1, PageEstimate("short"))
	assert.Equal(t, 2, PageEstimate(strings.Repeat("x", 6000)))
	assert.Equal(t, 3, PageEstimate(strings.Repeat("x", 6001)))
	// Multi-byte characters count once each.
	assert.Equal(t, 1, PageEstimate(strings.Repeat("é", 3000)))
}
