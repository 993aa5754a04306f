package livetest

import (
	"strings"

	"golang.org/x/net/html"
)

// Selector is a compound CSS selector: an optional tag name followed by any
// number of #id, .class, [attr] and [attr=value] parts. Descendant
// combinators are separated by spaces.
type Selector struct {
	parts []compound
}

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	name     string
	value    string
	hasValue bool
}

// ParseSelector parses s. Unknown syntax matches nothing.
func ParseSelector(s string) Selector {
	var sel Selector
	for _, field := range splitOutsideBrackets(s) {
		sel.parts = append(sel.parts, parseCompound(field))
	}
	return sel
}

func splitOutsideBrackets(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case r == ' ' && depth == 0:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func parseCompound(s string) compound {
	var c compound
	i := 0
	readIdent := func() string {
		start := i
		for i < len(s) && !strings.ContainsRune("#.[", rune(s[i])) {
			i++
		}
		return s[start:i]
	}

	c.tag = strings.ToLower(readIdent())
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			c.id = readIdent()
		case '.':
			i++
			c.classes = append(c.classes, readIdent())
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return compound{tag: "\x00"}
			}
			body := s[i+1 : i+end]
			i += end + 1
			name, value, ok := strings.Cut(body, "=")
			c.attrs = append(c.attrs, attrMatch{
				name:     strings.TrimSpace(name),
				value:    strings.Trim(strings.TrimSpace(value), `"'`),
				hasValue: ok,
			})
		default:
			return compound{tag: "\x00"}
		}
	}
	return c
}

func (c compound) match(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && c.tag != n.Data {
		return false
	}
	if c.id != "" {
		if id, _ := Attr(n, "id"); id != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		class, _ := Attr(n, "class")
		have := strings.Fields(class)
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v, ok := Attr(n, a.name)
		if !ok || (a.hasValue && v != a.value) {
			return false
		}
	}
	return true
}

// FindAll returns the nodes under root matching the selector, in document order.
func (s Selector) FindAll(root *html.Node) []*html.Node {
	if root == nil || len(s.parts) == 0 {
		return nil
	}
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if s.matches(n) {
			out = append(out, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

// matches checks the last compound against n and the rest against its
// ancestors, right to left.
func (s Selector) matches(n *html.Node) bool {
	last := len(s.parts) - 1
	if !s.parts[last].match(n) {
		return false
	}
	i := last - 1
	for p := n.Parent; p != nil && i >= 0; p = p.Parent {
		if s.parts[i].match(p) {
			i--
		}
	}
	return i < 0
}

// Attr returns an attribute of n.
func Attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// TextContent returns the whitespace-collapsed text under n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
