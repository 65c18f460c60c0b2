// Package dom reduces a captured DOM tree to a compact, machine-actionable
// observation and assigns every interactive element a unique semantic
// identifier. The reduction is a single recursive pass: top-down
// classification and identifier assignment, bottom-up flattening and
// pruning. See Reduce for the entry point.
package dom

import "strings"

// ComputedStyle carries the subset of computed style the reducer inspects.
type ComputedStyle struct {
	Display       string `json:"display"`
	Visibility    string `json:"visibility"`
	Opacity       string `json:"opacity"`
	Cursor        string `json:"cursor"`
	PointerEvents string `json:"pointerEvents"`
}

// SourceNode is one element of a captured page snapshot. It mirrors the live
// DOM node it was taken from: the Ordinal links back to the live element so
// the browser layer can stamp assigned identifiers onto it after reduction.
//
// The reducer treats SourceNode as read-only except for the Assigned* fields,
// which record the write-back the traversal owes the live page.
type SourceNode struct {
	Ordinal int               `json:"ord"`
	Tag     string            `json:"tag"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Style   ComputedStyle     `json:"style"`
	Width   float64           `json:"width"`
	Height  float64           `json:"height"`

	Disabled bool   `json:"disabled,omitempty"`
	ReadOnly bool   `json:"readonly,omitempty"`
	Value    string `json:"value,omitempty"`
	Focused  bool   `json:"focused,omitempty"`

	// Selection range of a focused text control, when defined.
	SelectionStart *int `json:"selStart,omitempty"`
	SelectionEnd   *int `json:"selEnd,omitempty"`

	// Select element state. Selected is set on option nodes.
	SelectedIndex  int      `json:"selectedIndex,omitempty"`
	SelectedValues []string `json:"selectedValues,omitempty"`
	Selected       bool     `json:"selected,omitempty"`

	Children []*SourceNode `json:"children,omitempty"`
	Texts    []string      `json:"texts,omitempty"`

	// TextPos[i] is the number of element children captured before Texts[i],
	// so text and element order can be reconstructed after reduction.
	TextPos []int `json:"textPos,omitempty"`

	// Write-back state populated by the reducer.
	AssignedID        string `json:"-"`
	AssignedClickable bool   `json:"-"`
	AssignedHoverable bool   `json:"-"`
}

// Attr returns the named attribute, or "" when absent.
func (s *SourceNode) Attr(name string) string {
	if s.Attrs == nil {
		return ""
	}
	return s.Attrs[name]
}

// HasAttr reports whether the attribute is present at all, regardless of value.
func (s *SourceNode) HasAttr(name string) bool {
	if s.Attrs == nil {
		return false
	}
	_, ok := s.Attrs[name]
	return ok
}

// textPosition returns the number of element children preceding Texts[i].
// Captures that carry no positions place all texts after the children.
func (s *SourceNode) textPosition(i int) int {
	if i < len(s.TextPos) {
		return s.TextPos[i]
	}
	return len(s.Children)
}

// InputState is the form state stamped onto identifier-bearing editable
// elements (input, textarea, contenteditable).
type InputState struct {
	Type     string
	Value    string
	CanEdit  bool
	Focused  bool
	Number   *float64
	SelStart *int
	SelEnd   *int
}

// SelectState is the selection state stamped onto select elements.
type SelectState struct {
	Value          string
	SelectedIndex  int
	Multiple       bool
	SelectedValues []string
}

// OutputNode is one element of the reduced tree. It is freshly constructed
// by the reducer, detached from the live page, and discarded after
// serialization.
type OutputNode struct {
	Tag   string
	Attrs map[string]string

	SemanticID    string
	Clickable     bool
	Hoverable     bool
	Focused       bool
	PointerEvents string // stamped only when the computed value is not "auto"

	Input  *InputState
	Select *SelectState

	Children []*OutputNode
	Texts    []string

	// TextPos mirrors SourceNode.TextPos against the reduced child list.
	TextPos []int
}

// textPosition returns the number of element children preceding Texts[i],
// defaulting to after all children when no positions were recorded.
func (n *OutputNode) textPosition(i int) int {
	if i < len(n.TextPos) {
		return n.TextPos[i]
	}
	return len(n.Children)
}

// Empty reports whether the node carries no visible content. Preserved tags
// are never empty; otherwise a node is empty iff every text child is
// whitespace-only and every element child is recursively empty.
func (n *OutputNode) Empty() bool {
	if preservedTags[n.Tag] {
		return false
	}
	for _, t := range n.Texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	for _, c := range n.Children {
		if !c.Empty() {
			return false
		}
	}
	return true
}

// Walk visits the node and its descendants in document order.
func (n *OutputNode) Walk(visit func(*OutputNode)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}
