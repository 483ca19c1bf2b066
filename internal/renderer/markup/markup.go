// Package markup parses the HTML produced by an editable view back into a
// rich-document tree.
//
// Only the structure the tree can express survives. Unknown inline
// elements are transparent, scripts, styles and comments are dropped and
// whitespace is collapsed the way a browser would display it.
package markup

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/stateful/mdedit/pkg/document/rich"
)

// Parse never fails. Markup that cannot be tokenized yields an empty
// document.
func Parse(markup string) *rich.Node {
	doc := rich.NewDocument()

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return doc
	}

	p := &parser{}
	p.blocks(nodes, &blockBuilder{dst: doc})
	clean(doc)
	return doc
}

type parser struct {
	inLink bool
}

// blockBuilder collects block children for dst. Inline content found
// between blocks goes into an implicit paragraph unless dst accepts
// inline children itself.
type blockBuilder struct {
	dst      *rich.Node
	para     *rich.Node
	inlineOK bool
}

func (b *blockBuilder) inline() *rich.Node {
	if b.inlineOK {
		return b.dst
	}
	if b.para == nil {
		b.para = rich.NewParagraph()
		b.dst.Append(b.para)
	}
	return b.para
}

func (b *blockBuilder) block(n *rich.Node) {
	b.para = nil
	b.dst.Append(n)
}

func (p *parser) blocks(nodes []*html.Node, b *blockBuilder) {
	for _, n := range nodes {
		p.block(n, b)
	}
}

func (p *parser) block(n *html.Node, b *blockBuilder) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" && b.para == nil && !b.inlineOK {
			return
		}
		p.inline(n, b.inline())
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		h := rich.NewHeading(int(n.Data[1] - '0'))
		p.inlines(n, h)
		b.block(h)

	case atom.P:
		para := rich.NewParagraph()
		p.inlines(n, para)
		b.block(para)

	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer,
		atom.Nav, atom.Aside, atom.Figure, atom.Center, atom.Li, atom.Dl, atom.Dd, atom.Dt:
		if hasBlockChild(n) {
			b.para = nil
			p.blocks(children(n), b)
			b.para = nil
			return
		}
		para := rich.NewParagraph()
		p.inlines(n, para)
		b.block(para)

	case atom.Blockquote:
		q := rich.NewBlockQuote()
		p.blocks(children(n), &blockBuilder{dst: q})
		b.block(q)

	case atom.Ul, atom.Ol:
		b.block(p.list(n))

	case atom.Pre:
		b.block(codeBlock(n))

	case atom.Hr:
		b.block(rich.NewThematicBreak())

	case atom.Table:
		b.block(p.table(n))

	case atom.Script, atom.Style, atom.Template, atom.Head, atom.Title, atom.Meta, atom.Link:

	default:
		p.inline(n, b.inline())
	}
}

func (p *parser) list(n *html.Node) *rich.Node {
	ordered := n.DataAtom == atom.Ol
	start := 1
	if v, ok := attr(n, "start"); ok && ordered {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			start = i
		}
	}
	list := rich.NewList(ordered, start)

	var item *blockBuilder
	for _, c := range children(n) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			item = &blockBuilder{dst: rich.NewListItem(), inlineOK: true}
			list.Append(item.dst)
			p.blocks(children(c), item)
			continue
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		// Editors nest lists directly inside lists; such content
		// belongs to the previous item.
		if item == nil {
			item = &blockBuilder{dst: rich.NewListItem(), inlineOK: true}
			list.Append(item.dst)
		}
		p.block(c, item)
	}
	return list
}

func codeBlock(n *html.Node) *rich.Node {
	lang := language(n)
	for _, c := range children(n) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code && lang == "" {
			lang = language(c)
		}
	}
	literal := textContent(n)
	if literal != "" && !strings.HasSuffix(literal, "\n") {
		literal += "\n"
	}
	return rich.NewCodeBlock(lang, literal)
}

func language(n *html.Node) string {
	class, _ := attr(n, "class")
	for _, f := range strings.Fields(class) {
		for _, prefix := range []string{"language-", "lang-"} {
			if strings.HasPrefix(f, prefix) {
				return strings.TrimPrefix(f, prefix)
			}
		}
	}
	return ""
}

func (p *parser) table(n *html.Node) *rich.Node {
	table := rich.NewTable()

	var rows func(n *html.Node, header bool)
	rows = func(n *html.Node, header bool) {
		for _, c := range children(n) {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead:
				rows(c, true)
			case atom.Tbody, atom.Tfoot:
				rows(c, false)
			case atom.Tr:
				table.Append(p.row(c, header))
			}
		}
	}
	rows(n, false)
	return table
}

func (p *parser) row(n *html.Node, header bool) *rich.Node {
	row := rich.NewTableRow(header)
	allTH := true
	for _, c := range children(n) {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		if c.DataAtom != atom.Th {
			allTH = false
		}
		cell := rich.NewTableCell(cellAlignment(c))
		p.inlines(c, cell)
		row.Append(cell)
	}
	row.Header = header || (allTH && len(row.Children) > 0)
	return row
}

func cellAlignment(n *html.Node) rich.Alignment {
	if v, ok := attr(n, "align"); ok {
		return rich.ParseAlignment(v)
	}
	style, _ := attr(n, "style")
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(strings.ToLower(k)) == "text-align" {
			return rich.ParseAlignment(strings.TrimSpace(v))
		}
	}
	return rich.AlignNone
}

func (p *parser) inlines(n *html.Node, dst *rich.Node) {
	for _, c := range children(n) {
		p.inline(c, dst)
	}
}

func (p *parser) inline(n *html.Node, dst *rich.Node) {
	switch n.Type {
	case html.TextNode:
		dst.Append(rich.NewText(collapse(n.Data)))
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Strong, atom.B:
		dst.Append(p.container(n, rich.NewStrong()))
	case atom.Em, atom.I:
		dst.Append(p.container(n, rich.NewItalic()))
	case atom.Del, atom.S, atom.Strike:
		dst.Append(p.container(n, rich.NewStrikethrough()))
	case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
		dst.Append(rich.NewCodeSpan(textContent(n)))
	case atom.A:
		href, _ := attr(n, "href")
		if p.inLink || href == "" {
			p.inlines(n, dst)
			return
		}
		title, _ := attr(n, "title")
		p.inLink = true
		dst.Append(p.container(n, rich.NewLink(href, title)))
		p.inLink = false
	case atom.Img:
		src, _ := attr(n, "src")
		title, _ := attr(n, "title")
		alt, _ := attr(n, "alt")
		dst.Append(rich.NewImage(src, title, alt))
	case atom.Br:
		dst.Append(rich.NewLineBreak())
	case atom.Script, atom.Style, atom.Template, atom.Hr:
	default:
		if isBlockElement(n) {
			// A block nested in inline content keeps its line.
			if len(dst.Children) > 0 && dst.LastChild().Kind != rich.KindLineBreak {
				dst.Append(rich.NewLineBreak())
			}
			p.inlines(n, dst)
			dst.Append(rich.NewLineBreak())
			return
		}
		p.inlines(n, dst)
	}
}

func (p *parser) container(n *html.Node, dst *rich.Node) *rich.Node {
	p.inlines(n, dst)
	return dst
}

func isBlockElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Ul, atom.Ol, atom.Li, atom.Pre, atom.Table, atom.Tr,
		atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer, atom.Nav,
		atom.Aside, atom.Figure, atom.Center, atom.Dl, atom.Dd, atom.Dt:
		return true
	}
	return false
}

func hasBlockChild(n *html.Node) bool {
	for _, c := range children(n) {
		if c.Type == html.ElementNode && (isBlockElement(c) || c.DataAtom == atom.Hr) {
			return true
		}
	}
	return false
}

func children(n *html.Node) []*html.Node {
	var nodes []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	return nodes
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(strings.ReplaceAll(n.Data, "\u00a0", " "))
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapse folds every whitespace run, non-breaking spaces included, into
// a single space.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\u00a0':
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}
