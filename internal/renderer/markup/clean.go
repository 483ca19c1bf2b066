package markup

import (
	"strings"

	"github.com/stateful/mdedit/pkg/document/rich"
)

// clean removes the whitespace and line breaks a browser would not
// display and drops paragraphs left without content.
func clean(n *rich.Node) {
	rich.Normalize(n)
	cleanNode(n)
	rich.Normalize(n)
	_ = rich.Walk(n, func(c *rich.Node, entering bool) (rich.WalkStatus, error) {
		if entering && c.Kind == rich.KindText {
			for strings.Contains(c.Literal, "  ") {
				c.Literal = strings.ReplaceAll(c.Literal, "  ", " ")
			}
		}
		return rich.WalkContinue, nil
	})
	dropEmptyParagraphs(n)
}

func dropEmptyParagraphs(n *rich.Node) {
	if n.IsInline() {
		return
	}
	children := n.Children[:0]
	for _, c := range n.Children {
		if c.Kind == rich.KindParagraph && len(c.Children) == 0 {
			continue
		}
		dropEmptyParagraphs(c)
		children = append(children, c)
	}
	n.Children = children
}

func cleanNode(n *rich.Node) {
	switch n.Kind {
	case rich.KindHeading, rich.KindParagraph, rich.KindTableCell:
		n.Children = cleanInlines(n.Children)
		return
	case rich.KindCodeBlock, rich.KindCodeSpan, rich.KindText, rich.KindImage:
		return
	}

	children := n.Children[:0]
	for i := 0; i < len(n.Children); {
		c := n.Children[i]
		if c.IsInline() {
			j := i
			for j < len(n.Children) && n.Children[j].IsInline() {
				j++
			}
			children = append(children, cleanInlines(n.Children[i:j])...)
			i = j
			continue
		}
		cleanNode(c)
		if c.Kind != rich.KindParagraph || len(c.Children) > 0 {
			children = append(children, c)
		}
		i++
	}
	n.Children = children
}

func cleanInlines(nodes []*rich.Node) []*rich.Node {
	nodes = append([]*rich.Node(nil), nodes...)

	start := 0
	for i := 0; i <= len(nodes); i++ {
		if i == len(nodes) || nodes[i].Kind == rich.KindLineBreak {
			trimLeft(nodes[start:i])
			trimRight(nodes[start:i])
			start = i + 1
		}
	}

	for len(nodes) > 0 && nodes[len(nodes)-1].Kind == rich.KindLineBreak {
		nodes = nodes[:len(nodes)-1]
	}

	onlyBreaks := true
	for _, c := range nodes {
		if c.Kind != rich.KindLineBreak {
			onlyBreaks = false
		}
	}
	if onlyBreaks {
		return nil
	}
	return nodes
}

// trimLeft strips leading spaces up to the first visible content and
// reports whether such content was found.
func trimLeft(nodes []*rich.Node) bool {
	for _, n := range nodes {
		switch n.Kind {
		case rich.KindText:
			n.Literal = strings.TrimLeft(n.Literal, " ")
			if n.Literal != "" {
				return true
			}
		case rich.KindEmphasis, rich.KindStrikethrough, rich.KindLink:
			if trimLeft(n.Children) {
				return true
			}
		default:
			return true
		}
	}
	return false
}

func trimRight(nodes []*rich.Node) bool {
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		switch n.Kind {
		case rich.KindText:
			n.Literal = strings.TrimRight(n.Literal, " ")
			if n.Literal != "" {
				return true
			}
		case rich.KindEmphasis, rich.KindStrikethrough, rich.KindLink:
			if trimRight(n.Children) {
				return true
			}
		default:
			return true
		}
	}
	return false
}
