// Package rich contains the rich-document tree shared by the Markdown
// renderer, the serializer and the views.
package rich

import (
	"strconv"
)

type Kind int

const (
	KindDocument Kind = iota + 1
	KindHeading
	KindParagraph
	KindEmphasis
	KindStrikethrough
	KindCodeSpan
	KindCodeBlock
	KindLink
	KindImage
	KindBlockQuote
	KindList
	KindListItem
	KindThematicBreak
	KindTable
	KindTableRow
	KindTableCell
	KindLineBreak
	KindText
)

var kindNames = map[Kind]string{
	KindDocument:      "Document",
	KindHeading:       "Heading",
	KindParagraph:     "Paragraph",
	KindEmphasis:      "Emphasis",
	KindStrikethrough: "Strikethrough",
	KindCodeSpan:      "CodeSpan",
	KindCodeBlock:     "CodeBlock",
	KindLink:          "Link",
	KindImage:         "Image",
	KindBlockQuote:    "BlockQuote",
	KindList:          "List",
	KindListItem:      "ListItem",
	KindThematicBreak: "ThematicBreak",
	KindTable:         "Table",
	KindTableRow:      "TableRow",
	KindTableCell:     "TableCell",
	KindLineBreak:     "LineBreak",
	KindText:          "Text",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

type EmphasisStyle int

const (
	Italic EmphasisStyle = iota + 1
	Strong
)

type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Node is a single node of the rich-document tree. Which fields are
// meaningful depends on Kind.
type Node struct {
	Kind Kind

	// Level is the heading level, 1 to 6.
	Level int
	// Style distinguishes strong from italic emphasis.
	Style EmphasisStyle
	// Ordered and Start describe a list. Start is the number of the
	// first item of an ordered list.
	Ordered bool
	Start   int
	// Href and Title belong to links and images.
	Href  string
	Title string
	// Language is the info string of a code block.
	Language string
	// Literal is the content of text, code spans and code blocks, and
	// the alternative text of an image.
	Literal string
	// Header marks the header row of a table.
	Header bool
	// Align is the alignment of a table cell.
	Align Alignment

	Children []*Node
}

func NewDocument(children ...*Node) *Node {
	return &Node{Kind: KindDocument, Children: children}
}

func NewHeading(level int, children ...*Node) *Node {
	return &Node{Kind: KindHeading, Level: clampLevel(level), Children: children}
}

func NewParagraph(children ...*Node) *Node {
	return &Node{Kind: KindParagraph, Children: children}
}

func NewStrong(children ...*Node) *Node {
	return &Node{Kind: KindEmphasis, Style: Strong, Children: children}
}

func NewItalic(children ...*Node) *Node {
	return &Node{Kind: KindEmphasis, Style: Italic, Children: children}
}

func NewStrikethrough(children ...*Node) *Node {
	return &Node{Kind: KindStrikethrough, Children: children}
}

func NewCodeSpan(literal string) *Node {
	return &Node{Kind: KindCodeSpan, Literal: literal}
}

func NewCodeBlock(language, literal string) *Node {
	return &Node{Kind: KindCodeBlock, Language: language, Literal: literal}
}

func NewLink(href, title string, children ...*Node) *Node {
	return &Node{Kind: KindLink, Href: href, Title: title, Children: children}
}

func NewImage(src, title, alt string) *Node {
	return &Node{Kind: KindImage, Href: src, Title: title, Literal: alt}
}

func NewBlockQuote(children ...*Node) *Node {
	return &Node{Kind: KindBlockQuote, Children: children}
}

// NewList creates a list. Start is ignored for unordered lists and
// defaults to 1 for ordered ones.
func NewList(ordered bool, start int, items ...*Node) *Node {
	n := &Node{Kind: KindList, Ordered: ordered, Children: items}
	if ordered {
		if start < 0 {
			start = 1
		}
		n.Start = start
	}
	return n
}

func NewListItem(children ...*Node) *Node {
	return &Node{Kind: KindListItem, Children: children}
}

func NewThematicBreak() *Node {
	return &Node{Kind: KindThematicBreak}
}

func NewTable(rows ...*Node) *Node {
	return &Node{Kind: KindTable, Children: rows}
}

func NewTableRow(header bool, cells ...*Node) *Node {
	return &Node{Kind: KindTableRow, Header: header, Children: cells}
}

func NewTableCell(align Alignment, children ...*Node) *Node {
	return &Node{Kind: KindTableCell, Align: align, Children: children}
}

func NewLineBreak() *Node {
	return &Node{Kind: KindLineBreak}
}

func NewText(literal string) *Node {
	return &Node{Kind: KindText, Literal: literal}
}

// Append adds children to n and returns n.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

func (n *Node) LastChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[len(n.Children)-1]
}

func (n *Node) IsBlock() bool {
	return IsBlock(n.Kind)
}

func (n *Node) IsInline() bool {
	return IsInline(n.Kind)
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, 0, len(n.Children))
		for _, child := range n.Children {
			c.Children = append(c.Children, child.Clone())
		}
	}
	return &c
}

// TextContent concatenates the literal content of all leaves below n.
// Line breaks contribute a newline.
func TextContent(n *Node) string {
	var b []byte
	_ = Walk(n, func(node *Node, entering bool) (WalkStatus, error) {
		if !entering {
			return WalkContinue, nil
		}
		switch node.Kind {
		case KindText, KindCodeSpan, KindCodeBlock, KindImage:
			b = append(b, node.Literal...)
		case KindLineBreak:
			b = append(b, '\n')
		}
		return WalkContinue, nil
	})
	return string(b)
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

func itoa(i int) string { return strconv.Itoa(i) }

func quote(s string) string { return strconv.Quote(s) }
