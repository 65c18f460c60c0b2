package dom

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// voidTags render without a closing tag.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "hr": true,
	"img": true, "input": true, "source": true, "track": true, "wbr": true,
}

// Serialize renders the reduced tree as markup. Semantic state (identifier,
// clickability, hover marker, form state) is expressed as attributes so the
// string observation is self-contained.
func Serialize(root *OutputNode) string {
	var b strings.Builder
	writeNode(&b, root)
	return b.String()
}

func writeNode(b *strings.Builder, n *OutputNode) {
	if n == nil {
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Tag)

	attrs := renderedAttrs(n)
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attrs[name]))
		b.WriteByte('"')
	}

	if voidTags[n.Tag] {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	ti := 0
	for i, c := range n.Children {
		for ti < len(n.Texts) && n.textPosition(ti) <= i {
			b.WriteString(html.EscapeString(n.Texts[ti]))
			ti++
		}
		writeNode(b, c)
	}
	for ; ti < len(n.Texts); ti++ {
		b.WriteString(html.EscapeString(n.Texts[ti]))
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

// renderedAttrs overlays the derived semantic state onto the projected
// attribute map.
func renderedAttrs(n *OutputNode) map[string]string {
	attrs := make(map[string]string, len(n.Attrs)+8)
	for k, v := range n.Attrs {
		attrs[k] = v
	}
	if n.SemanticID != "" {
		attrs[SemanticIDAttr] = n.SemanticID
	}
	if n.Clickable {
		attrs[clickableAttr] = "true"
	}
	if n.Hoverable {
		attrs[HoverMarkerAttr] = "true"
	}
	if n.Focused {
		attrs["data-is-focused"] = "true"
	}
	if n.PointerEvents != "" {
		attrs["data-pointer-events"] = n.PointerEvents
	}
	if in := n.Input; in != nil {
		attrs["value"] = in.Value
		attrs["data-input-disabled"] = "false"
		attrs["data-can-edit"] = strconv.FormatBool(in.CanEdit)
		if in.Number != nil {
			attrs["data-value-number"] = strconv.FormatFloat(*in.Number, 'f', -1, 64)
		}
		if in.SelStart != nil {
			attrs["data-selection-start"] = strconv.Itoa(*in.SelStart)
		}
		if in.SelEnd != nil {
			attrs["data-selection-end"] = strconv.Itoa(*in.SelEnd)
		}
	}
	if sel := n.Select; sel != nil {
		attrs["value"] = sel.Value
		attrs["data-selected-index"] = strconv.Itoa(sel.SelectedIndex)
		if sel.Multiple {
			attrs["data-multiple"] = "true"
		}
		attrs["data-selected-values"] = strings.Join(sel.SelectedValues, ",")
	}
	return attrs
}
