// internal/browser/actions_test.go
package browser

import (
	"testing"

	"github.com/chromedp/chromedp/kb"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shihanfu/rl-web-env/internal/dom"
)

func TestSemanticIDSelector(t *testing.T) {
	assert.Equal(t, `[data-semantic-id="search.go"]`, SemanticIDSelector("search.go"))

	// Identifiers are slugs in practice, but the selector must stay well
	// formed for any input.
	assert.Equal(t, `[data-semantic-id="a\"b"]`, SemanticIDSelector(`a"b`))
	assert.Equal(t, `[data-semantic-id="a\\b"]`, SemanticIDSelector(`a\b`))
}

func TestKeyChord(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Enter", kb.Enter},
		{"enter", kb.Enter},
		{"Return", kb.Enter},
		{"Tab", kb.Tab},
		{"Escape", kb.Escape},
		{"esc", kb.Escape},
		{"ArrowDown", kb.ArrowDown},
		{"down", kb.ArrowDown},
		{"PageUp", kb.PageUp},
		{"a", "a"},
		{"Z", "Z"},
	}
	for _, tc := range cases {
		got, err := KeyChord(tc.in)
		require.NoError(t, err, "key %q", tc.in)
		assert.Equal(t, tc.want, got, "key %q", tc.in)
	}

	_, err := KeyChord("NotAKey")
	assert.Error(t, err)
	_, err = KeyChord("")
	assert.Error(t, err)
}

func TestHoverOnlyStampPayloadOmitsID(t *testing.T) {
	// Hover markers can be stamped without an identifier; the payload must
	// not carry an id field for the write-back script to coerce into text.
	payload, err := json.Marshal([]dom.Stamp{{Ordinal: 5, Hoverable: true}})
	require.NoError(t, err)
	assert.Equal(t, `[{"ord":5,"hoverable":true}]`, string(payload))
}
