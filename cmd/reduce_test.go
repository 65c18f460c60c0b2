// -- cmd/reduce_test.go --
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shihanfu/rl-web-env/internal/dom"
)

const reduceFixture = `<html><head><title>Shop</title></head><body>
<div><button>Add to cart</button></div>
<input name="qty" placeholder="Quantity" value="1"/>
</body></html>`

func writeFixture(t *testing.T, markup string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(markup), 0o644))
	return path
}

func runReduce(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newReduceCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestReduceCommand(t *testing.T) {
	path := writeFixture(t, reduceFixture)
	output := runReduce(t, path)

	var obs dom.Observation
	require.NoError(t, json.Unmarshal([]byte(output), &obs))
	assert.Contains(t, obs.Clickable, "add_to_cart")
	assert.Contains(t, obs.HTML, `data-semantic-id="add_to_cart"`)
	require.Len(t, obs.Inputs, 1)
	assert.Equal(t, "quantity", obs.Inputs[0].ID)
}

func TestReduceCommandWithStamps(t *testing.T) {
	path := writeFixture(t, reduceFixture)
	output := runReduce(t, path, "--stamps")

	var payload struct {
		dom.Observation
		Stamps []dom.Stamp `json:"stamps"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &payload))
	assert.NotEmpty(t, payload.Stamps)
	ids := make([]string, 0, len(payload.Stamps))
	for _, s := range payload.Stamps {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "add_to_cart")
}

func TestReduceCommandMissingFile(t *testing.T) {
	cmd := newReduceCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.html")})
	assert.Error(t, cmd.Execute())
}
