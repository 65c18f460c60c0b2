// internal/browser/scripts/embed_test.go
package scripts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedScriptsPresent(t *testing.T) {
	inst, err := Instrument()
	require.NoError(t, err)
	assert.Contains(t, inst, "__networkActivity")
	assert.Contains(t, inst, "data-maybe-hoverable")

	snap, err := Snapshot()
	require.NoError(t, err)
	assert.Contains(t, snap, "data-wa-ord")
	assert.Contains(t, snap, "textPos")
	assert.Contains(t, snap, "JSON.stringify")
}

func TestStampWrapsPayload(t *testing.T) {
	expr, err := Stamp(`[{"ord":1,"id":"go"}]`)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(expr, "("), "stamp expression must be immediately invoked")
	assert.True(t, strings.HasSuffix(expr, `([{"ord":1,"id":"go"}])`))
	assert.Contains(t, expr, "data-semantic-id")
}

func TestStampScriptClearsPreviousRound(t *testing.T) {
	expr, err := Stamp(`[]`)
	require.NoError(t, err)

	// Old identifiers come off before the new ones go on, and a record
	// without an id never writes one.
	assert.Contains(t, expr, `removeAttribute("data-semantic-id")`)
	assert.Contains(t, expr, `removeAttribute("data-clickable")`)
	assert.Contains(t, expr, "if (s.id) el.setAttribute")
	assert.NotContains(t, expr, `removeAttribute("data-maybe-hoverable")`)
}
