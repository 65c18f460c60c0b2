package dom

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// reduceMarkup is a test helper running the full pipeline over static HTML.
func reduceMarkup(t *testing.T, markup string) (*Observation, []Stamp) {
	t.Helper()
	root, err := FromHTMLString(markup)
	require.NoError(t, err)
	obs, stamps := Reduce(root)
	require.NotNil(t, obs)
	return obs, stamps
}

// semanticIDs parses reduced markup and returns every data-semantic-id in
// document order.
func semanticIDs(t *testing.T, markup string) []string {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)

	var ids []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == SemanticIDAttr {
					ids = append(ids, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ids
}

func TestIdentifierUniqueness(t *testing.T) {
	markup := `<html><body>
		<button>Save</button><button>Save</button><button>Save</button>
		<div onclick="x()">Save<button>Save</button></div>
		<input name="save"/><input name="save"/>
		<a href="/save">Save</a>
	</body></html>`

	obs, _ := reduceMarkup(t, markup)
	ids := semanticIDs(t, obs.HTML)
	require.NotEmpty(t, ids)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "identifier %q assigned twice", id)
		seen[id] = true
	}
}

func TestIdempotentNamingOnUnchangedDOM(t *testing.T) {
	markup := `<html><body>
		<button>Submit</button><button>Submit</button>
		<input placeholder="Search products"/>
		<select name="sort"><option value="az">A-Z</option><option value="za" selected>Z-A</option></select>
	</body></html>`

	first, _ := reduceMarkup(t, markup)
	second, _ := reduceMarkup(t, markup)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-running the traversal changed the observation (-first +second):\n%s", diff)
	}
}

func TestClickabilityDoesNotNest(t *testing.T) {
	markup := `<html><body>
		<a href="/cart">Cart<button>Checkout</button></a>
		<div onclick="open()">Menu<a href="/a">Inner</a></div>
	</body></html>`

	obs, _ := reduceMarkup(t, markup)

	doc, err := html.Parse(strings.NewReader(obs.HTML))
	require.NoError(t, err)

	var walk func(n *html.Node, underClickable bool)
	walk = func(n *html.Node, underClickable bool) {
		clickable := false
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "data-clickable" && a.Val == "true" {
					clickable = true
				}
			}
			if clickable {
				assert.False(t, underClickable, "clickable element nested under clickable ancestor")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, underClickable || clickable)
		}
	}
	walk(doc, false)
}

func TestBlacklistedTagsExcluded(t *testing.T) {
	markup := `<html><head>
		<script>alert(1)</script><style>body{}</style><meta charset="utf-8"/>
	</head><body>
		<div><svg><circle></circle></svg><iframe src="/x"></iframe><span>ok</span></div>
		<noscript>enable js</noscript>
	</body></html>`

	obs, _ := reduceMarkup(t, markup)
	for _, tag := range []string{"<script", "<style", "<svg", "<iframe", "<noscript", "<meta", "<circle"} {
		assert.NotContains(t, obs.HTML, tag)
	}
	assert.Contains(t, obs.HTML, "ok")
}

func TestVisibilityGates(t *testing.T) {
	cases := []struct {
		name   string
		markup string
	}{
		{"display none", `<div style="display:none"><button>Hidden</button></div>`},
		{"visibility hidden", `<div style="visibility:hidden"><button>Hidden</button></div>`},
		{"zero opacity", `<div style="opacity:0"><button>Hidden</button></div>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs, _ := reduceMarkup(t, "<html><body>"+tc.markup+"<span>visible</span></body></html>")
			assert.NotContains(t, obs.HTML, "Hidden")
			assert.Empty(t, obs.Clickable)
			assert.Contains(t, obs.HTML, "visible")
		})
	}
}

func TestEmptyPreservation(t *testing.T) {
	markup := `<html><body><div><input/></div><div>   </div><p></p></body></html>`
	obs, _ := reduceMarkup(t, markup)

	assert.Contains(t, obs.HTML, "<input")
	assert.NotContains(t, obs.HTML, "<p")
	// The whitespace-only div is pruned entirely.
	assert.Equal(t, 1, strings.Count(obs.HTML, "<input"))
}

func TestSlugTruncation(t *testing.T) {
	markup := `<html><body><button>Proceed To The Final Irreversible Checkout Confirmation</button></body></html>`
	obs, _ := reduceMarkup(t, markup)

	require.Len(t, obs.Clickable, 1)
	assert.LessOrEqual(t, len(obs.Clickable[0]), maxSlugLen)
	assert.Equal(t, "proceed_to_the_final", obs.Clickable[0])
}

func TestCollisionSuffixingInDocumentOrder(t *testing.T) {
	markup := `<html><body><button>Submit</button><button>Submit</button></body></html>`
	obs, _ := reduceMarkup(t, markup)
	assert.Equal(t, []string{"submit", "submit1"}, obs.Clickable)
}

func TestStaleIdentifiersDroppedOnRetraversal(t *testing.T) {
	// A page observed once still carries the previous round's identifier
	// attributes. On the next traversal the disabled button earns no fresh
	// identifier, and its stale one is not echoed into the observation.
	markup := `<html><body>
		<button disabled data-semantic-id="submit" data-clickable="true">Submit</button>
		<button>Submit</button>
	</body></html>`

	obs, _ := reduceMarkup(t, markup)
	assert.Equal(t, []string{"submit"}, obs.Clickable)
	assert.Equal(t, []string{"submit"}, semanticIDs(t, obs.HTML))
	assert.Equal(t, 1, strings.Count(obs.HTML, SemanticIDAttr))
	assert.Equal(t, 1, strings.Count(obs.HTML, `data-clickable="true"`))
}

func TestTextOrderPreservedAroundChildren(t *testing.T) {
	markup := `<html><body><p>before<a href="/x">mid</a>after</p></body></html>`
	obs, _ := reduceMarkup(t, markup)

	assert.Contains(t, obs.HTML, `>before<a`)
	assert.Contains(t, obs.HTML, `>mid</a>after</p>`)
}

func TestFlattenCollapsesWrapperChains(t *testing.T) {
	markup := `<html><body><div><div><span>X</span></div></div></body></html>`
	obs, _ := reduceMarkup(t, markup)

	assert.Contains(t, obs.HTML, "<span>X</span>")
	assert.NotContains(t, obs.HTML, "<div")
}

func TestFlattenPreservesWrapperAttributes(t *testing.T) {
	markup := `<html><body><div data-block="hero"><span data-kind="label">X</span></div></body></html>`
	obs, _ := reduceMarkup(t, markup)

	assert.NotContains(t, obs.HTML, "<div")
	assert.Contains(t, obs.HTML, `data-block="hero"`)
	assert.Contains(t, obs.HTML, `data-kind="label"`)
}

func TestSelectRoundTrip(t *testing.T) {
	markup := `<html><body><select name="size">
		<option value="A">Small</option>
		<option value="B" selected>Large</option>
	</select></body></html>`

	obs, _ := reduceMarkup(t, markup)
	require.Len(t, obs.Selects, 1)

	// The select names itself from its visible option text.
	rec := obs.Selects[0]
	assert.Equal(t, "small_large", rec.ID)
	assert.Equal(t, "B", rec.Value)
	assert.Equal(t, 1, rec.SelectedIndex)
	assert.False(t, rec.Multiple)
	assert.Equal(t, []string{"B"}, rec.SelectedValues)

	ids := semanticIDs(t, obs.HTML)
	assert.Contains(t, ids, "small_large.small")
	assert.Contains(t, ids, "small_large.large")
}

func TestSelectDefaultsToFirstOption(t *testing.T) {
	markup := `<html><body><select name="qty">
		<option value="1">1</option><option value="2">2</option>
	</select></body></html>`

	obs, _ := reduceMarkup(t, markup)
	require.Len(t, obs.Selects, 1)
	assert.Equal(t, "1", obs.Selects[0].Value)
	assert.Equal(t, 0, obs.Selects[0].SelectedIndex)
}

func TestDisabledInputExcluded(t *testing.T) {
	markup := `<html><body><input disabled name="promo"/><input name="email" placeholder="Email"/></body></html>`
	obs, _ := reduceMarkup(t, markup)

	require.Len(t, obs.Inputs, 1)
	assert.Equal(t, "email", obs.Inputs[0].ID)
	for _, id := range semanticIDs(t, obs.HTML) {
		assert.NotEqual(t, "promo", id)
	}
}

func TestReadonlyInputIsClickableButNotEditable(t *testing.T) {
	markup := `<html><body><input readonly name="token" value="abc"/></body></html>`
	obs, _ := reduceMarkup(t, markup)

	require.Len(t, obs.Inputs, 1)
	assert.False(t, obs.Inputs[0].CanEdit)
	assert.Equal(t, "abc", obs.Inputs[0].Value)
	assert.Contains(t, obs.Clickable, obs.Inputs[0].ID)
}

func TestEditableUnderClickableAncestorStillAddressable(t *testing.T) {
	markup := `<html><body><div onclick="go()">Search
		<input placeholder="Find anything"/>
	</div></body></html>`

	obs, _ := reduceMarkup(t, markup)
	require.Len(t, obs.Inputs, 1)
	assert.Equal(t, "search.find_anything", obs.Inputs[0].ID)
	// The input sits under a clickable ancestor, so it is not itself clickable.
	assert.NotContains(t, obs.Clickable, obs.Inputs[0].ID)
}

func TestNumericInputValueParsed(t *testing.T) {
	markup := `<html><body><input type="number" name="qty" value="42"/></body></html>`
	obs, _ := reduceMarkup(t, markup)

	require.Len(t, obs.Inputs, 1)
	assert.Contains(t, obs.HTML, `data-value-number="42"`)
}

func TestHoverMarkerPropagates(t *testing.T) {
	markup := `<html><body><div data-maybe-hoverable="true">
		Menu <a href="/settings">Settings</a>
	</div></body></html>`

	obs, stamps := reduceMarkup(t, markup)
	require.Len(t, obs.Hoverable, 1)
	assert.Equal(t, "settings", obs.Hoverable[0])

	hoverStamped := 0
	for _, s := range stamps {
		if s.Hoverable {
			hoverStamped++
		}
	}
	assert.GreaterOrEqual(t, hoverStamped, 1)
}

func TestAttributeProjection(t *testing.T) {
	markup := `<html><body><a href="/x" class="btn btn-lg" style="color:red" aria-label="go" data-track="7" onclick="h()">Go</a></body></html>`
	obs, _ := reduceMarkup(t, markup)

	assert.Contains(t, obs.HTML, `href="/x"`)
	assert.Contains(t, obs.HTML, `aria-label="go"`)
	assert.Contains(t, obs.HTML, `data-track="7"`)
	assert.NotContains(t, obs.HTML, "class=")
	assert.NotContains(t, obs.HTML, "style=")
	assert.NotContains(t, obs.HTML, "onclick=")
}

func TestPointerEventsNoneDisablesClick(t *testing.T) {
	markup := `<html><body><button style="pointer-events:none">Ghost</button></body></html>`
	obs, _ := reduceMarkup(t, markup)

	assert.Empty(t, obs.Clickable)
	assert.Contains(t, obs.HTML, `data-pointer-events="none"`)
}

func TestStampsMatchAssignedIdentifiers(t *testing.T) {
	markup := `<html><body><button>Buy</button><input name="email"/></body></html>`
	obs, stamps := reduceMarkup(t, markup)

	stamped := make(map[string]bool)
	for _, s := range stamps {
		if s.ID != "" {
			stamped[s.ID] = true
		}
	}
	for _, id := range obs.Clickable {
		assert.True(t, stamped[id], "clickable id %q missing from stamps", id)
	}
	for _, rec := range obs.Inputs {
		assert.True(t, stamped[rec.ID], "input id %q missing from stamps", rec.ID)
	}
}

func TestMalformedSnapshotNeverPanics(t *testing.T) {
	obs, stamps := Reduce(nil)
	require.NotNil(t, obs)
	assert.Empty(t, obs.HTML)
	assert.Empty(t, stamps)

	obs, _ = Reduce(&SourceNode{})
	assert.Empty(t, obs.HTML)

	obs, _ = Reduce(&SourceNode{
		Tag:      "div",
		Width:    10,
		Children: []*SourceNode{nil, {Tag: "button", Width: 5, Texts: []string{"Ok"}}},
	})
	assert.Contains(t, obs.HTML, "Ok")
}
