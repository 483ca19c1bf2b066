package md

import (
	"strings"

	"github.com/stateful/mdedit/pkg/document/rich"
)

// prepare rewrites doc in place into a shape every node of which has a
// Markdown spelling: whitespace at the edge of emphasis moves outside of
// the delimiters, emphasis nested in the same style is flattened and
// emphasis left empty is dropped.
func prepare(doc *rich.Node) *rich.Node {
	doc.Children = prepareChildren(doc.Children, false, false, false)
	rich.Normalize(doc)
	return doc
}

func prepareChildren(nodes []*rich.Node, strong, italic, strike bool) []*rich.Node {
	out := make([]*rich.Node, 0, len(nodes))
	for _, n := range nodes {
		switch n.Kind {
		case rich.KindEmphasis:
			s, i := strong, italic
			if n.Style == rich.Strong {
				s = true
			} else {
				i = true
			}
			children := prepareChildren(n.Children, s, i, strike)
			if (n.Style == rich.Strong && strong) || (n.Style == rich.Italic && italic) {
				out = append(out, children...)
				continue
			}
			n.Children = children
			out = append(out, hoist(n)...)

		case rich.KindStrikethrough:
			children := prepareChildren(n.Children, strong, italic, true)
			if strike {
				out = append(out, children...)
				continue
			}
			n.Children = children
			out = append(out, hoist(n)...)

		case rich.KindLink:
			n.Children = prepareChildren(n.Children, strong, italic, strike)
			rich.Normalize(n)
			out = append(out, n)

		default:
			if n.IsBlock() {
				n.Children = prepareChildren(n.Children, false, false, false)
			}
			out = append(out, n)
		}
	}
	return out
}

// hoist returns n surrounded by the whitespace that used to be its first
// and last characters. An n without content collapses to that whitespace.
func hoist(n *rich.Node) []*rich.Node {
	rich.Normalize(n)

	var lead, trail string
	if len(n.Children) > 0 {
		if first := n.Children[0]; first.Kind == rich.KindText {
			trimmed := strings.TrimLeft(first.Literal, " \t\n")
			lead = first.Literal[:len(first.Literal)-len(trimmed)]
			first.Literal = trimmed
		}
	}
	if len(n.Children) > 0 {
		if last := n.LastChild(); last.Kind == rich.KindText {
			trimmed := strings.TrimRight(last.Literal, " \t\n")
			trail = last.Literal[len(trimmed):]
			last.Literal = trimmed
		}
	}
	rich.Normalize(n)

	var out []*rich.Node
	if lead != "" {
		out = append(out, rich.NewText(lead))
	}
	if hasContent(n) {
		out = append(out, n)
	}
	if trail != "" {
		out = append(out, rich.NewText(trail))
	}
	return out
}

func hasContent(n *rich.Node) bool {
	for _, c := range n.Children {
		switch c.Kind {
		case rich.KindText:
			if c.Literal != "" {
				return true
			}
		case rich.KindEmphasis, rich.KindStrikethrough:
			if hasContent(c) {
				return true
			}
		default:
			return true
		}
	}
	return false
}
