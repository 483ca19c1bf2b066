// Package richtree renders Markdown into a rich-document tree.
package richtree

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/stateful/mdedit/pkg/document/rich"
)

type Option func(*Renderer)

// WithHardWraps controls whether soft line breaks become hard breaks.
func WithHardWraps(value bool) Option {
	return func(r *Renderer) {
		r.hardWraps = value
	}
}

func WithTables(value bool) Option {
	return func(r *Renderer) {
		r.tables = value
	}
}

func WithStrikethrough(value bool) Option {
	return func(r *Renderer) {
		r.strikethrough = value
	}
}

// Renderer turns Markdown into a rich tree. It never fails: markup it
// does not understand ends up as literal text.
type Renderer struct {
	hardWraps     bool
	tables        bool
	strikethrough bool
	parser        parser.Parser
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		hardWraps:     true,
		tables:        true,
		strikethrough: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	var extensions []goldmark.Extender
	if r.tables {
		extensions = append(extensions, extension.Table)
	}
	if r.strikethrough {
		extensions = append(extensions, extension.Strikethrough)
	}
	r.parser = goldmark.New(goldmark.WithExtensions(extensions...)).Parser()

	return r
}

var defaultRenderer = New()

// Render converts Markdown using the default configuration.
func Render(source []byte) *rich.Node {
	return defaultRenderer.Render(source)
}

func RenderString(source string) *rich.Node {
	return defaultRenderer.Render([]byte(source))
}

func (r *Renderer) Render(source []byte) *rich.Node {
	root := r.parser.Parse(text.NewReader(source))
	c := &converter{source: source, hardWraps: r.hardWraps}
	doc := rich.NewDocument()
	c.blocks(root, doc)
	return rich.Normalize(doc)
}

type converter struct {
	source    []byte
	hardWraps bool
}

func (c *converter) blocks(parent ast.Node, dst *rich.Node) {
	for node := parent.FirstChild(); node != nil; node = node.NextSibling() {
		switch node.Kind() {
		case ast.KindHeading:
			n := node.(*ast.Heading)
			h := rich.NewHeading(n.Level)
			c.inlines(n, h)
			dst.Append(h)

		case ast.KindParagraph:
			// A paragraph made only of link reference definitions has no
			// inline content left.
			p := rich.NewParagraph()
			c.inlines(node, p)
			if len(p.Children) > 0 {
				dst.Append(p)
			}

		case ast.KindTextBlock:
			// Tight list items keep their inline content directly.
			if dst.Kind == rich.KindListItem {
				if last := dst.LastChild(); last != nil && last.IsInline() {
					dst.Append(rich.NewLineBreak())
				}
				c.inlines(node, dst)
			} else {
				p := rich.NewParagraph()
				c.inlines(node, p)
				dst.Append(p)
			}

		case ast.KindThematicBreak:
			dst.Append(rich.NewThematicBreak())

		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			var language string
			if n, ok := node.(*ast.FencedCodeBlock); ok {
				language = string(n.Language(c.source))
			}
			dst.Append(rich.NewCodeBlock(language, string(c.lines(node))))

		case ast.KindBlockquote:
			bq := rich.NewBlockQuote()
			c.blocks(node, bq)
			dst.Append(bq)

		case ast.KindList:
			n := node.(*ast.List)
			list := rich.NewList(n.IsOrdered(), n.Start)
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				li := rich.NewListItem()
				c.blocks(item, li)
				list.Append(li)
			}
			dst.Append(list)

		case ast.KindHTMLBlock:
			// Raw HTML never becomes live structure; it is kept as the
			// literal text the user typed.
			dst.Append(c.literalParagraph(node))

		case extast.KindTable:
			dst.Append(c.table(node.(*extast.Table)))

		default:
			if node.Type() == ast.TypeBlock && node.HasChildren() {
				c.blocks(node, dst)
			}
		}
	}
}

func (c *converter) lines(node ast.Node) []byte {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = buf.Write(line.Value(c.source))
	}
	return buf.Bytes()
}

func (c *converter) literalParagraph(node ast.Node) *rich.Node {
	data := c.lines(node)
	if n, ok := node.(*ast.HTMLBlock); ok && n.HasClosure() {
		data = append(data, n.ClosureLine.Value(c.source)...)
	}
	p := rich.NewParagraph()
	for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if i > 0 {
			p.Append(rich.NewLineBreak())
		}
		p.Append(rich.NewText(strings.TrimSpace(line)))
	}
	return p
}

func (c *converter) table(n *extast.Table) *rich.Node {
	table := rich.NewTable()
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		r := rich.NewTableRow(row.Kind() == extast.KindTableHeader)
		for i, cell := range childrenOf(row) {
			align := rich.AlignNone
			if i < len(n.Alignments) {
				align = alignment(n.Alignments[i])
			}
			rc := rich.NewTableCell(align)
			c.inlines(cell, rc)
			r.Append(rc)
		}
		table.Append(r)
	}
	return table
}

func alignment(a extast.Alignment) rich.Alignment {
	switch a {
	case extast.AlignLeft:
		return rich.AlignLeft
	case extast.AlignCenter:
		return rich.AlignCenter
	case extast.AlignRight:
		return rich.AlignRight
	}
	return rich.AlignNone
}

func childrenOf(n ast.Node) []ast.Node {
	var result []ast.Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		result = append(result, c)
	}
	return result
}

func (c *converter) inlines(parent ast.Node, dst *rich.Node) {
	for node := parent.FirstChild(); node != nil; node = node.NextSibling() {
		switch node.Kind() {
		case ast.KindText:
			n := node.(*ast.Text)
			value := n.Segment.Value(c.source)
			if n.SoftLineBreak() || n.HardLineBreak() {
				value = bytes.TrimRight(value, " \t")
			}
			if !n.IsRaw() {
				value = unescape(value)
			}
			dst.Append(rich.NewText(string(value)))
			switch {
			case n.HardLineBreak():
				dst.Append(rich.NewLineBreak())
			case n.SoftLineBreak() && c.hardWraps:
				dst.Append(rich.NewLineBreak())
			case n.SoftLineBreak():
				dst.Append(rich.NewText(" "))
			}

		case ast.KindString:
			n := node.(*ast.String)
			value := n.Value
			if !n.IsRaw() && !n.IsCode() {
				value = unescape(value)
			}
			dst.Append(rich.NewText(string(value)))

		case ast.KindCodeSpan:
			dst.Append(rich.NewCodeSpan(c.codeSpan(node)))

		case ast.KindEmphasis:
			n := node.(*ast.Emphasis)
			var e *rich.Node
			if n.Level >= 2 {
				e = rich.NewStrong()
			} else {
				e = rich.NewItalic()
			}
			c.inlines(n, e)
			dst.Append(e)

		case extast.KindStrikethrough:
			s := rich.NewStrikethrough()
			c.inlines(node, s)
			dst.Append(s)

		case ast.KindLink:
			n := node.(*ast.Link)
			link := rich.NewLink(string(n.Destination), string(n.Title))
			c.inlines(n, link)
			dst.Append(link)

		case ast.KindAutoLink:
			n := node.(*ast.AutoLink)
			url := string(n.URL(c.source))
			if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(url), "mailto:") {
				url = "mailto:" + url
			}
			dst.Append(rich.NewLink(url, "", rich.NewText(string(n.Label(c.source)))))

		case ast.KindImage:
			n := node.(*ast.Image)
			alt := rich.NewParagraph()
			c.inlines(n, alt)
			dst.Append(rich.NewImage(string(n.Destination), string(n.Title), rich.TextContent(alt)))

		case ast.KindRawHTML:
			n := node.(*ast.RawHTML)
			var raw []byte
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				raw = append(raw, seg.Value(c.source)...)
			}
			dst.Append(rich.NewText(string(raw)))

		default:
			c.inlines(node, dst)
		}
	}
}

func (c *converter) codeSpan(node ast.Node) string {
	var buf bytes.Buffer
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			value := n.Segment.Value(c.source)
			if bytes.HasSuffix(value, []byte{'\n'}) {
				_, _ = buf.Write(value[:len(value)-1])
				_ = buf.WriteByte(' ')
			} else {
				_, _ = buf.Write(value)
			}
		case *ast.String:
			_, _ = buf.Write(n.Value)
		}
	}
	return buf.String()
}

func unescape(value []byte) []byte {
	value = util.UnescapePunctuations(value)
	value = util.ResolveNumericReferences(value)
	return util.ResolveEntityNames(value)
}
