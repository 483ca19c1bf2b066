package rich

import (
	"strings"

	"github.com/pkg/errors"
)

func IsBlock(k Kind) bool {
	switch k {
	case KindHeading, KindParagraph, KindCodeBlock, KindBlockQuote,
		KindList, KindThematicBreak, KindTable:
		return true
	}
	return false
}

func IsInline(k Kind) bool {
	switch k {
	case KindEmphasis, KindStrikethrough, KindCodeSpan, KindLink,
		KindImage, KindLineBreak, KindText:
		return true
	}
	return false
}

// CanContain reports whether child is allowed directly below parent.
func CanContain(parent, child Kind) bool {
	switch parent {
	case KindDocument, KindBlockQuote:
		return IsBlock(child)
	case KindListItem:
		return IsBlock(child) || IsInline(child)
	case KindList:
		return child == KindListItem
	case KindTable:
		return child == KindTableRow
	case KindTableRow:
		return child == KindTableCell
	case KindLink:
		return IsInline(child) && child != KindLink
	case KindHeading, KindParagraph, KindEmphasis, KindStrikethrough, KindTableCell:
		return IsInline(child)
	}
	return false
}

// Validate checks that every node only contains children allowed by the
// grammar.
func Validate(n *Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	if n.Kind == KindHeading && (n.Level < 1 || n.Level > 6) {
		return errors.Errorf("invalid heading level %d", n.Level)
	}
	for i, c := range n.Children {
		if c == nil {
			return errors.Errorf("%s: nil child at %d", n.Kind, i)
		}
		if !CanContain(n.Kind, c.Kind) {
			return errors.Errorf("%s cannot contain %s", n.Kind, c.Kind)
		}
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// Normalize merges adjacent text nodes and drops empty text and empty
// inline containers, in place. It returns n.
func Normalize(n *Node) *Node {
	if n == nil {
		return nil
	}
	children := n.Children[:0]
	for _, c := range n.Children {
		Normalize(c)
		switch c.Kind {
		case KindText:
			if c.Literal == "" {
				continue
			}
			if last := lastOf(children); last != nil && last.Kind == KindText {
				last.Literal += c.Literal
				continue
			}
		case KindEmphasis, KindStrikethrough:
			if len(c.Children) == 0 {
				continue
			}
		}
		children = append(children, c)
	}
	n.Children = children
	return n
}

func lastOf(nodes []*Node) *Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// Dump returns an indented, human readable representation of the tree,
// mostly useful in tests and debug logs.
func Dump(n *Node) string {
	var b strings.Builder
	dump(&b, n, 0)
	return b.String()
}

func dump(b *strings.Builder, n *Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind.String())
	switch n.Kind {
	case KindHeading:
		b.WriteString("(" + itoa(n.Level) + ")")
	case KindEmphasis:
		if n.Style == Strong {
			b.WriteString("(strong)")
		} else {
			b.WriteString("(italic)")
		}
	case KindList:
		if n.Ordered {
			b.WriteString("(ordered)")
		}
	case KindLink, KindImage:
		b.WriteString("(" + n.Href + ")")
	case KindText, KindCodeSpan, KindCodeBlock:
		b.WriteString(" " + quote(n.Literal))
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		dump(b, c, depth+1)
	}
}
