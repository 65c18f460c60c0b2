package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// FromHTML builds a snapshot tree from static markup, for offline reduction
// and tests. Computed style is approximated from the inline style attribute;
// geometry defaults to a nominal non-zero box because no layout is run.
func FromHTML(r io.Reader) (*SourceNode, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	rootElem := findElement(doc, "html")
	if rootElem == nil {
		return nil, fmt.Errorf("no root element in document")
	}
	ordinal := 0
	return convertNode(rootElem, &ordinal), nil
}

// FromHTMLString is a convenience wrapper around FromHTML.
func FromHTMLString(markup string) (*SourceNode, error) {
	return FromHTML(strings.NewReader(markup))
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func convertNode(n *html.Node, ordinal *int) *SourceNode {
	src := &SourceNode{
		Ordinal: *ordinal,
		Tag:     strings.ToLower(n.Data),
		Attrs:   make(map[string]string, len(n.Attr)),
		Style:   ComputedStyle{Display: "block", Visibility: "visible", Opacity: "1", Cursor: "auto", PointerEvents: "auto"},
		Width:   1,
		Height:  1,
	}
	*ordinal++

	for _, attr := range n.Attr {
		src.Attrs[strings.ToLower(attr.Key)] = attr.Val
	}
	applyInlineStyle(&src.Style, src.Attrs["style"])
	src.Disabled = src.HasAttr("disabled")
	src.ReadOnly = src.HasAttr("readonly")
	src.Value = src.Attr("value")
	src.Selected = src.HasAttr("selected")
	src.Focused = src.HasAttr("autofocus")

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			src.Children = append(src.Children, convertNode(c, ordinal))
		case html.TextNode:
			src.Texts = append(src.Texts, c.Data)
			src.TextPos = append(src.TextPos, len(src.Children))
		}
	}

	if src.Tag == "select" {
		deriveSelectState(src)
	}
	if src.Tag == "option" && src.Value == "" {
		src.Value = strings.TrimSpace(innerText(src))
	}
	return src
}

// applyInlineStyle picks the handful of properties the reducer inspects out
// of an inline style declaration.
func applyInlineStyle(style *ComputedStyle, decl string) {
	for _, part := range strings.Split(decl, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.ToLower(strings.TrimSpace(value))
		switch name {
		case "display":
			style.Display = value
		case "visibility":
			style.Visibility = value
		case "opacity":
			style.Opacity = value
		case "cursor":
			style.Cursor = value
		case "pointer-events":
			style.PointerEvents = value
		}
	}
}

// deriveSelectState mimics browser behavior for static markup: the selected
// attribute wins, otherwise a single-select defaults to its first option.
func deriveSelectState(src *SourceNode) {
	options := collectOptions(src)
	multiple := src.HasAttr("multiple")

	anySelected := false
	for _, opt := range options {
		if opt.Selected {
			anySelected = true
			break
		}
	}
	if !anySelected && !multiple && len(options) > 0 {
		options[0].Selected = true
	}

	src.SelectedIndex = -1
	for i, opt := range options {
		if !opt.Selected {
			continue
		}
		value := opt.Value
		if value == "" {
			value = strings.TrimSpace(innerText(opt))
		}
		src.SelectedValues = append(src.SelectedValues, value)
		if src.SelectedIndex == -1 {
			src.SelectedIndex = i
			src.Value = value
		}
	}
}
