// Package markup is a small typed node builder for chat view content. A Node
// is either an element (tag, attributes, children), a text leaf or a block of
// pre-rendered HTML.
package markup

import (
	"slices"
	"strings"

	"mm/internal/content"
)

type Attrs map[string]string

type Node struct {
	Tag      string
	Attrs    Attrs
	Children []Node

	text string
	raw  string
	leaf bool
}

// El builds an element node.
func El(tag string, attrs Attrs, children ...Node) Node {
	return Node{Tag: tag, Attrs: attrs, Children: children}
}

// Txt builds a text leaf.
func Txt(s string) Node {
	return Node{text: s, leaf: true}
}

// Raw wraps HTML that was already sanitized, e.g. a rendered topic. text is
// its plain-text form.
func Raw(html, text string) Node {
	return Node{raw: html, text: text, leaf: true}
}

func (n Node) IsText() bool {
	return n.leaf && n.raw == ""
}

// Attr returns the attribute value, or "" when unset.
func (n Node) Attr(key string) string {
	return n.Attrs[key]
}

// HasClass reports whether the node's class attribute contains class.
func (n Node) HasClass(class string) bool {
	return slices.Contains(strings.Fields(n.Attrs["class"]), class)
}

// AddClass appends class to the node's class attribute.
func (n *Node) AddClass(class string) {
	if n.HasClass(class) {
		return
	}
	if n.Attrs == nil {
		n.Attrs = Attrs{}
	}
	if cur := n.Attrs["class"]; cur != "" {
		n.Attrs["class"] = cur + " " + class
		return
	}
	n.Attrs["class"] = class
}

// Append adds children and returns the node for chaining.
func (n *Node) Append(children ...Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Find returns the first descendant (or n itself) carrying class.
func (n *Node) Find(class string) *Node {
	if n.HasClass(class) {
		return n
	}
	for i := range n.Children {
		if found := n.Children[i].Find(class); found != nil {
			return found
		}
	}
	return nil
}

// SetText replaces the node's children with a single text leaf.
func (n *Node) SetText(s string) {
	if s == "" {
		n.Children = nil
		return
	}
	n.Children = []Node{Txt(s)}
}

// Text returns the visible text of the node and its descendants.
func (n Node) Text() string {
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n Node) writeText(sb *strings.Builder) {
	switch {
	case n.leaf:
		sb.WriteString(n.text)
	default:
		for _, c := range n.Children {
			c.writeText(sb)
		}
	}
}

// HTML renders the node with every text leaf and attribute escaped.
func (n Node) HTML() string {
	var sb strings.Builder
	n.writeHTML(&sb)
	return sb.String()
}

// Render renders the node and runs the result through the HTML sanitizer.
func (n Node) Render() string {
	return content.Sanitize(n.HTML())
}

var voidElements = map[string]bool{"br": true, "img": true, "hr": true}

func (n Node) writeHTML(sb *strings.Builder) {
	switch {
	case n.IsText():
		sb.WriteString(content.Escape(n.text))
		return
	case n.leaf:
		sb.WriteString(n.raw)
		return
	}

	sb.WriteByte('<')
	sb.WriteString(n.Tag)
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(content.Escape(n.Attrs[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	if voidElements[n.Tag] {
		return
	}
	for _, c := range n.Children {
		c.writeHTML(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.Tag)
	sb.WriteByte('>')
}

// FromSegments converts formatted message content into nodes: links become
// anchors opening in a new window, styled spans become b/i/code elements.
func FromSegments(segs []content.Segment) []Node {
	nodes := make([]Node, 0, len(segs))
	for _, s := range segs {
		switch s := s.(type) {
		case content.Text:
			nodes = append(nodes, Txt(string(s)))
		case content.Link:
			nodes = append(nodes, El("a", Attrs{"href": s.URL, "target": "_blank"}, Txt(s.URL)))
		case content.Styled:
			nodes = append(nodes, El(styleTag(s.Style), nil, FromSegments(s.Children)...))
		}
	}
	return nodes
}

func styleTag(s content.Style) string {
	switch s {
	case content.StyleBold:
		return "b"
	case content.StyleItalic:
		return "i"
	case content.StyleCode:
		return "code"
	}
	return "span"
}
