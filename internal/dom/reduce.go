package dom

import (
	"strconv"
	"strings"
)

// SemanticIDAttr is the attribute the browser layer stamps back onto live
// elements; the action layer locates targets through it.
const SemanticIDAttr = "data-semantic-id"

// HoverMarkerAttr is written by the page instrumentation script onto any
// element that ever registered a hover-family listener. The reducer only
// reads it.
const HoverMarkerAttr = "data-maybe-hoverable"

// ordinalAttr is the temporary bookkeeping attribute the capture script tags
// elements with; it never appears in output.
const ordinalAttr = "data-wa-ord"

// clickableAttr marks clickable elements in the stamped live page and the
// serialized observation.
const clickableAttr = "data-clickable"

// stampedAttrs are written onto the live page by the capture and write-back
// scripts. They are traversal input, never projection output: carrying the
// previous round's stamps into a fresh capture would leak stale identifiers
// into an observation whose registry knows nothing about them.
var stampedAttrs = map[string]bool{
	ordinalAttr:     true,
	SemanticIDAttr:  true,
	clickableAttr:   true,
	HoverMarkerAttr: true,
}

var blacklistTags = map[string]bool{
	"script": true, "style": true, "link": true, "meta": true,
	"noscript": true, "template": true, "iframe": true, "svg": true,
	"canvas": true, "picture": true, "video": true, "audio": true,
	"object": true, "embed": true,
}

// preservedTags are exempt from emptiness-based pruning.
var preservedTags = map[string]bool{
	"input": true, "select": true, "textarea": true, "button": true,
	"img": true, "head": true, "title": true,
}

// genericTags are non-semantic wrappers eligible for flattening.
var genericTags = map[string]bool{"div": true}

// intrinsicClickTags are clickable by tag alone.
var intrinsicClickTags = map[string]bool{
	"button": true, "select": true, "summary": true, "area": true, "input": true,
}

var allowedAttrs = map[string]bool{
	"id": true, "href": true, "src": true, "type": true, "name": true,
	"value": true, "placeholder": true, "checked": true, "disabled": true,
	"readonly": true, "required": true, "maxlength": true, "min": true,
	"max": true, "step": true, "role": true, "tabindex": true, "alt": true,
	"title": true, "for": true, "action": true, "method": true,
	"contenteditable": true, "selected": true, "multiple": true,
	"autocomplete": true,
}

// ancestry is the traversal state handed from a node to its children.
type ancestry struct {
	parentID        string
	parentClickable bool
	parentHoverable bool
}

type reducer struct {
	reg *Registry
}

// Reduce runs the full traversal over a snapshot and returns the aggregated
// observation plus the identifier stamps owed to the live page. It never
// fails: subtrees that cannot be represented are simply absent, and a nil or
// degenerate root yields an empty observation.
func Reduce(root *SourceNode) (*Observation, []Stamp) {
	r := &reducer{reg: NewRegistry()}
	out := r.reduce(root, ancestry{})
	obs := aggregate(out)
	return obs, collectStamps(root)
}

// reduce transforms one source node into an output node, or nil when the
// node and its subtree are excluded from the observation.
func (r *reducer) reduce(src *SourceNode, anc ancestry) *OutputNode {
	// Gate 1: malformed or blacklisted nodes are absent.
	if src == nil || src.Tag == "" {
		return nil
	}
	tag := strings.ToLower(src.Tag)
	if blacklistTags[tag] {
		return nil
	}

	// Gate 2: nodes a user cannot perceive are absent.
	if !visible(src) {
		return nil
	}

	// Clone with projected attributes only.
	out := &OutputNode{Tag: tag, Attrs: projectAttrs(src.Attrs)}

	// Style-derived annotations for downstream disabled-reasoning.
	if pe := src.Style.PointerEvents; pe != "" && pe != "auto" {
		out.PointerEvents = pe
	}
	if src.Focused {
		out.Focused = true
	}

	// Clickability is computed once and propagated; it never nests.
	clickable := !anc.parentClickable && matchesClickable(src, tag) && !interactionDisabled(src)
	if clickable {
		base := firstSlug(innerText(src), src.Attr("title"), src.Attr("placeholder"), tag)
		r.assign(src, out, anc.parentID, base)
		out.Clickable = true
		src.AssignedClickable = true
	}

	// Hover markers propagate down from the marked ancestor.
	hoverable := anc.parentHoverable || src.HasAttr(HoverMarkerAttr)
	if hoverable {
		out.Hoverable = true
		src.AssignedHoverable = true
	}

	// Editable elements keep enough form state for the agent to reason about.
	if isEditable(src, tag) {
		if out.SemanticID == "" && !interactionDisabled(src) && !src.ReadOnly {
			base := firstSlug(src.Attr("placeholder"), src.Attr("name"), src.Value, tag)
			r.assign(src, out, anc.parentID, base)
		}
		if out.SemanticID != "" {
			out.Input = inputState(src)
		}
	}

	// Select elements carry their own option subtree; generic recursion is
	// skipped so options are not emitted twice.
	if tag == "select" && !interactionDisabled(src) {
		if out.SemanticID == "" {
			base := firstSlug(src.Attr("placeholder"), src.Attr("name"), src.Value, tag)
			r.assign(src, out, anc.parentID, base)
		}
		out.Select = &SelectState{
			Value:          src.Value,
			SelectedIndex:  src.SelectedIndex,
			Multiple:       src.HasAttr("multiple"),
			SelectedValues: src.SelectedValues,
		}
		r.reduceOptions(src, out)
		return out
	}

	// Recurse, then canonicalize bottom-up.
	childAnc := ancestry{
		parentID:        anc.parentID,
		parentClickable: anc.parentClickable || clickable,
		parentHoverable: hoverable,
	}
	if out.SemanticID != "" {
		childAnc.parentID = out.SemanticID
	}
	appendText := func(t string) {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			out.Texts = append(out.Texts, trimmed)
			out.TextPos = append(out.TextPos, len(out.Children))
		}
	}
	ti := 0
	for i, child := range src.Children {
		for ti < len(src.Texts) && src.textPosition(ti) <= i {
			appendText(src.Texts[ti])
			ti++
		}
		if c := r.reduce(child, childAnc); c != nil && !c.Empty() {
			out.Children = append(out.Children, c)
		}
	}
	for ; ti < len(src.Texts); ti++ {
		appendText(src.Texts[ti])
	}

	out = flatten(out)
	prune(out)
	return out
}

// assign allocates a parent-prefixed unique identifier and stamps it on both
// the clone and the source node.
func (r *reducer) assign(src *SourceNode, out *OutputNode, parentID, base string) {
	name := base
	if parentID != "" {
		name = parentID + "." + base
	}
	id := r.reg.Unique(name)
	out.SemanticID = id
	src.AssignedID = id
}

// reduceOptions builds fresh option nodes under a reduced select, each
// individually addressable beneath the select's identifier.
func (r *reducer) reduceOptions(src *SourceNode, out *OutputNode) {
	for _, opt := range collectOptions(src) {
		text := strings.TrimSpace(innerText(opt))
		optOut := &OutputNode{Tag: "option", Attrs: map[string]string{"value": opt.Value}}
		if text != "" {
			optOut.Texts = []string{text}
		}
		if opt.Selected {
			optOut.Attrs["selected"] = ""
		}
		if out.SemanticID != "" {
			id := r.reg.Unique(out.SemanticID + "." + firstSlug(text, opt.Value, "option"))
			optOut.SemanticID = id
			opt.AssignedID = id
		}
		out.Children = append(out.Children, optOut)
	}
}

// collectOptions gathers option descendants, looking through optgroup
// wrappers but not into anything deeper.
func collectOptions(src *SourceNode) []*SourceNode {
	var options []*SourceNode
	for _, child := range src.Children {
		switch strings.ToLower(child.Tag) {
		case "option":
			options = append(options, child)
		case "optgroup":
			for _, grandchild := range child.Children {
				if strings.ToLower(grandchild.Tag) == "option" {
					options = append(options, grandchild)
				}
			}
		}
	}
	return options
}

// visible implements the visibility gate: display:none, visibility:hidden,
// numerically zero opacity, or zero area all exclude a node.
func visible(src *SourceNode) bool {
	if src.Style.Display == "none" || src.Style.Visibility == "hidden" {
		return false
	}
	if src.Style.Opacity != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(src.Style.Opacity), 64); err == nil && v == 0 {
			return false
		}
	}
	if src.Width == 0 && src.Height == 0 {
		return false
	}
	return true
}

// matchesClickable reports whether the node matches any clickability
// heuristic, ignoring ancestor and disabled state.
func matchesClickable(src *SourceNode, tag string) bool {
	if intrinsicClickTags[tag] {
		return true
	}
	if tag == "a" && src.HasAttr("href") {
		return true
	}
	if src.HasAttr("onclick") {
		return true
	}
	if role := src.Attr("role"); role == "button" || role == "link" {
		return true
	}
	return src.Style.Cursor == "pointer"
}

// interactionDisabled reports whether the element cannot currently be acted
// on: the disabled attribute/property or pointer-events:none.
func interactionDisabled(src *SourceNode) bool {
	return src.Disabled || src.HasAttr("disabled") || src.Style.PointerEvents == "none"
}

func isEditable(src *SourceNode, tag string) bool {
	if tag == "input" || tag == "textarea" {
		return true
	}
	ce, ok := src.Attrs["contenteditable"]
	if !ok {
		return false
	}
	ce = strings.ToLower(strings.TrimSpace(ce))
	return ce == "" || ce == "true"
}

func inputState(src *SourceNode) *InputState {
	st := &InputState{
		Type:     src.Attr("type"),
		Value:    src.Value,
		CanEdit:  !src.ReadOnly,
		Focused:  src.Focused,
		SelStart: src.SelectionStart,
		SelEnd:   src.SelectionEnd,
	}
	switch st.Type {
	case "number", "range":
		if v, err := strconv.ParseFloat(strings.TrimSpace(src.Value), 64); err == nil {
			st.Number = &v
		}
	}
	return st
}

// projectAttrs copies only allow-listed attributes plus the aria-/data-
// namespaces; internal bookkeeping attributes are dropped.
func projectAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for name, val := range attrs {
		lower := strings.ToLower(name)
		if stampedAttrs[lower] {
			continue
		}
		if allowedAttrs[lower] || strings.HasPrefix(lower, "aria-") || strings.HasPrefix(lower, "data-") {
			out[lower] = val
		}
	}
	return out
}

// innerText aggregates the subtree's text content in document order.
func innerText(src *SourceNode) string {
	var parts []string
	var walk func(*SourceNode)
	walk = func(n *SourceNode) {
		if n == nil {
			return
		}
		appendText := func(t string) {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		ti := 0
		for i, c := range n.Children {
			for ti < len(n.Texts) && n.textPosition(ti) <= i {
				appendText(n.Texts[ti])
				ti++
			}
			walk(c)
		}
		for ; ti < len(n.Texts); ti++ {
			appendText(n.Texts[ti])
		}
	}
	walk(src)
	return strings.Join(parts, " ")
}

// firstSlug slugs each candidate in priority order and returns the first
// non-empty result.
func firstSlug(candidates ...string) string {
	for _, c := range candidates {
		if s := Slug(c); s != "" {
			return s
		}
	}
	return "node"
}

// flatten collapses single-child generic-wrapper chains. When both the node
// and its only child carry identifiers the collapse would merge two
// addressable elements, so flattening stops there.
func flatten(out *OutputNode) *OutputNode {
	for len(out.Children) == 1 && len(out.Texts) == 0 {
		child := out.Children[0]
		outGeneric, childGeneric := genericTags[out.Tag], genericTags[child.Tag]
		if !outGeneric && !childGeneric {
			break
		}
		if out.SemanticID != "" && child.SemanticID != "" {
			break
		}
		if outGeneric && !childGeneric {
			// The wrapper dissolves into the semantic child.
			merged := &OutputNode{
				Tag:      child.Tag,
				Attrs:    mergeAttrs(out.Attrs, child.Attrs),
				Children: child.Children,
				Texts:    child.Texts,
				TextPos:  child.TextPos,
			}
			mergeFlags(merged, child, out)
			out = merged
			continue
		}
		// The generic child's content is pulled up in place.
		out.Attrs = mergeAttrs(out.Attrs, child.Attrs)
		mergeFlags(out, out, child)
		out.Children = child.Children
		out.Texts = child.Texts
		out.TextPos = child.TextPos
	}
	return out
}

// mergeAttrs overlays over onto base without mutating either.
func mergeAttrs(base, over map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}

// mergeFlags combines semantic state into dst, preferring primary.
func mergeFlags(dst, primary, secondary *OutputNode) {
	if primary.SemanticID != "" {
		dst.SemanticID = primary.SemanticID
	} else {
		dst.SemanticID = secondary.SemanticID
	}
	dst.Clickable = primary.Clickable || secondary.Clickable
	dst.Hoverable = primary.Hoverable || secondary.Hoverable
	dst.Focused = primary.Focused || secondary.Focused
	if primary.PointerEvents != "" {
		dst.PointerEvents = primary.PointerEvents
	} else {
		dst.PointerEvents = secondary.PointerEvents
	}
	if primary.Input != nil {
		dst.Input = primary.Input
	} else {
		dst.Input = secondary.Input
	}
	if primary.Select != nil {
		dst.Select = primary.Select
	} else {
		dst.Select = secondary.Select
	}
}

// prune drops empty non-preserved children surfaced by flattening and remaps
// text positions onto the surviving child list.
func prune(out *OutputNode) {
	remap := make([]int, len(out.Children)+1)
	kept := out.Children[:0]
	for i, c := range out.Children {
		remap[i] = len(kept)
		if !c.Empty() {
			kept = append(kept, c)
		}
	}
	remap[len(out.Children)] = len(kept)
	for i, p := range out.TextPos {
		if p > len(out.Children) {
			p = len(out.Children)
		}
		out.TextPos[i] = remap[p]
	}
	out.Children = kept
}

// collectStamps walks the source tree and gathers every identifier and
// marker the traversal owes the live page.
func collectStamps(root *SourceNode) []Stamp {
	var stamps []Stamp
	var walk func(*SourceNode)
	walk = func(n *SourceNode) {
		if n == nil {
			return
		}
		if n.AssignedID != "" || n.AssignedHoverable {
			stamps = append(stamps, Stamp{
				Ordinal:   n.Ordinal,
				ID:        n.AssignedID,
				Clickable: n.AssignedClickable,
				Hoverable: n.AssignedHoverable,
			})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return stamps
}
