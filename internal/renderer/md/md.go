// Package md serializes a rich-document tree back to canonical Markdown.
package md

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stateful/mdedit/internal/renderer/markup"
	"github.com/stateful/mdedit/pkg/document/rich"
)

// Render serializes doc. The input is not modified. The output has no
// leading or trailing whitespace except for a single final line break.
func Render(doc *rich.Node) []byte {
	if doc == nil {
		return nil
	}
	r := &renderer{col0: true}
	r.blocks(prepare(doc.Clone()).Children)
	return finish(r.buf.Bytes())
}

func RenderString(doc *rich.Node) string {
	return string(Render(doc))
}

// RenderMarkup serializes HTML markup produced by an editable view.
func RenderMarkup(html string) string {
	return RenderString(markup.Parse(html))
}

func finish(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []byte{}
	}
	return append(data, '\n')
}

type renderer struct {
	buf bytes.Buffer

	prefix   []byte
	needCR   int
	newlines int
	col0     bool

	afterMarker  bool
	noLinebreaks bool
	inTable      bool
	tight        bool
}

func (r *renderer) blankline() {
	if r.needCR < 2 {
		r.needCR = 2
	}
}

func (r *renderer) cr() {
	if r.needCR < 1 {
		r.needCR = 1
	}
}

// separate ends a block: tight list items keep their blocks on adjacent
// lines, everything else is separated by a blank line.
func (r *renderer) separate() {
	if r.tight {
		r.cr()
	} else {
		r.blankline()
	}
}

func (r *renderer) trimmedPrefix() []byte {
	return bytes.TrimRightFunc(r.prefix, unicode.IsSpace)
}

func (r *renderer) flush() {
	if r.buf.Len() == 0 {
		r.needCR = 0
		return
	}
	for r.newlines < r.needCR {
		if r.newlines > 0 {
			_, _ = r.buf.Write(r.trimmedPrefix())
		}
		_ = r.buf.WriteByte('\n')
		r.newlines++
		r.col0 = true
	}
	r.needCR = 0
}

func (r *renderer) write(s string) {
	r.flush()
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			if r.col0 {
				_, _ = r.buf.Write(r.trimmedPrefix())
			}
			_ = r.buf.WriteByte('\n')
			r.newlines++
			r.col0 = true
			continue
		}
		if r.col0 {
			_, _ = r.buf.Write(r.prefix)
			r.col0 = false
		}
		_ = r.buf.WriteByte(c)
		r.newlines = 0
		r.afterMarker = false
	}
}

func (r *renderer) marker(m string) {
	r.write(m)
	r.afterMarker = true
}

func (r *renderer) atStart() bool {
	return r.buf.Len() == 0 || r.col0 || r.needCR > 0 || r.afterMarker
}

func (r *renderer) lastByte() byte {
	if r.needCR > 0 || r.buf.Len() == 0 {
		return 0
	}
	return r.buf.Bytes()[r.buf.Len()-1]
}

func (r *renderer) pushPrefix(p string) {
	r.prefix = append(r.prefix, p...)
}

func (r *renderer) popPrefix(p string) {
	r.prefix = r.prefix[0 : len(r.prefix)-len(p)]
}

func (r *renderer) blocks(nodes []*rich.Node) {
	var (
		prev    *rich.Node
		altList bool
	)
	for i := 0; i < len(nodes); {
		n := nodes[i]

		if n.IsInline() {
			j := i
			for j < len(nodes) && nodes[j].IsInline() {
				j++
			}
			r.inlines(nodes[i:j])
			r.separate()
			prev, altList = nodes[j-1], false
			i = j
			continue
		}

		if n.Kind == rich.KindList {
			// Two adjacent lists of the same kind would merge into one
			// when parsed again, so every other one switches its marker.
			altList = prev != nil && prev.Kind == rich.KindList && prev.Ordered == n.Ordered && !altList
			if prev != nil && prev.IsInline() && n.Ordered && n.Start != 1 {
				r.blankline()
			}
		} else {
			altList = false
		}

		r.block(n, altList)
		prev = n
		i++
	}
}

func (r *renderer) block(n *rich.Node, altList bool) {
	switch n.Kind {
	case rich.KindHeading:
		r.marker(strings.Repeat("#", n.Level))
		if len(n.Children) > 0 {
			r.write(" ")
			r.noLinebreaks = true
			r.inlines(n.Children)
			r.noLinebreaks = false
		}
		r.separate()

	case rich.KindParagraph:
		r.inlines(n.Children)
		r.separate()

	case rich.KindCodeBlock:
		r.codeBlock(n)
		r.separate()

	case rich.KindBlockQuote:
		if len(n.Children) == 0 {
			r.marker(">")
			r.separate()
			return
		}
		r.marker("> ")
		r.pushPrefix("> ")
		tight := r.tight
		r.tight = false
		r.blocks(n.Children)
		r.tight = tight
		r.popPrefix("> ")
		r.separate()

	case rich.KindList:
		r.list(n, altList)
		r.separate()

	case rich.KindThematicBreak:
		r.blankline()
		r.write("---")
		r.separate()

	case rich.KindTable:
		r.blankline()
		r.table(n)
		r.separate()
	}
}

func (r *renderer) codeBlock(n *rich.Node) {
	fenceChar := "`"
	if strings.Contains(n.Language, "`") {
		fenceChar = "~"
	}
	ticks := longestSeq(n.Literal, fenceChar[0]) + 1
	if ticks < 3 {
		ticks = 3
	}
	fence := strings.Repeat(fenceChar, ticks)

	r.write(fence + n.Language)
	r.cr()
	if n.Literal != "" {
		r.write(n.Literal)
		if !strings.HasSuffix(n.Literal, "\n") {
			r.cr()
		}
	}
	r.write(fence)
}

func (r *renderer) list(n *rich.Node, alt bool) {
	loose := false
	for _, item := range n.Children {
		for _, c := range item.Children {
			if c.Kind == rich.KindParagraph {
				loose = true
			}
		}
	}

	bullet, delim := "-", "."
	if alt {
		bullet, delim = "*", ")"
	}

	number := n.Start
	for _, item := range n.Children {
		m := bullet
		if n.Ordered {
			m = strconv.Itoa(number) + delim
			number++
		}
		if len(item.Children) == 0 {
			r.marker(m)
			r.cr()
			continue
		}
		r.marker(m + " ")

		indent := strings.Repeat(" ", len(m)+1)
		r.pushPrefix(indent)
		tight := r.tight
		r.tight = !loose
		r.blocks(item.Children)
		r.tight = tight
		r.popPrefix(indent)

		if loose {
			r.blankline()
		} else {
			r.cr()
		}
	}
}

func (r *renderer) table(n *rich.Node) {
	columns := 0
	for _, row := range n.Children {
		if len(row.Children) > columns {
			columns = len(row.Children)
		}
	}
	if columns == 0 {
		return
	}

	for i, row := range n.Children {
		cells := make([]string, columns)
		for j, cell := range row.Children {
			cells[j] = r.cell(cell)
		}
		r.write("| " + strings.Join(cells, " | ") + " |")
		r.cr()

		if i == 0 {
			delims := make([]string, columns)
			for j := range delims {
				align := rich.AlignNone
				if j < len(row.Children) {
					align = row.Children[j].Align
				}
				delims[j] = alignDelimiter(align)
			}
			r.write("| " + strings.Join(delims, " | ") + " |")
			r.cr()
		}
	}
}

func (r *renderer) cell(n *rich.Node) string {
	sub := &renderer{col0: true, noLinebreaks: true, inTable: true, tight: true}
	sub.inlines(n.Children)
	return strings.TrimSpace(sub.buf.String())
}

func alignDelimiter(a rich.Alignment) string {
	switch a {
	case rich.AlignLeft:
		return ":---"
	case rich.AlignCenter:
		return ":---:"
	case rich.AlignRight:
		return "---:"
	}
	return "---"
}

func (r *renderer) inlines(nodes []*rich.Node) {
	for i, n := range nodes {
		var prev, next *rich.Node
		if i > 0 {
			prev = nodes[i-1]
		}
		if i+1 < len(nodes) {
			next = nodes[i+1]
		}
		r.inline(n, prev, next)
	}
}

func (r *renderer) inline(n, prev, next *rich.Node) {
	switch n.Kind {
	case rich.KindText:
		r.text(n.Literal, next)

	case rich.KindLineBreak:
		switch {
		case r.noLinebreaks:
			r.write(" ")
		case prev != nil && prev.Kind == rich.KindLineBreak:
			r.blankline()
		default:
			r.cr()
		}

	case rich.KindEmphasis:
		mark := "*"
		if n.Style == rich.Strong {
			mark = "**"
		}
		if r.lastByte() == '*' {
			mark = strings.Repeat("_", len(mark))
		}
		r.write(mark)
		r.inlines(n.Children)
		r.write(mark)

	case rich.KindStrikethrough:
		r.write("~~")
		r.inlines(n.Children)
		r.write("~~")

	case rich.KindCodeSpan:
		r.codeSpan(n.Literal)

	case rich.KindLink:
		r.write("[")
		r.inlines(n.Children)
		r.write("](" + destination(n.Href) + title(n.Title) + ")")

	case rich.KindImage:
		r.write("![" + altEscaper.Replace(n.Literal) + "](" + destination(n.Href) + title(n.Title) + ")")
	}
}

func (r *renderer) codeSpan(literal string) {
	literal = strings.ReplaceAll(literal, "\n", " ")
	if literal == "" {
		return
	}
	if r.inTable {
		literal = strings.ReplaceAll(literal, "|", `\|`)
	}
	delim := strings.Repeat("`", longestSeq(literal, '`')+1)
	pad := ""
	if strings.HasPrefix(literal, "`") || strings.HasSuffix(literal, "`") ||
		(strings.HasPrefix(literal, " ") && strings.HasSuffix(literal, " ") && strings.TrimSpace(literal) != "") {
		pad = " "
	}
	r.write(delim + pad + literal + pad + delim)
}

var (
	entityLike    = regexp.MustCompile(`^&#?[A-Za-z0-9]+;`)
	orderedMarker = regexp.MustCompile(`^[0-9]{1,9}[.)]( |$)`)
	headingMarker = regexp.MustCompile(`^#{1,6}( |$)`)
	altEscaper    = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)
)

func (r *renderer) text(s string, next *rich.Node) {
	s = strings.ReplaceAll(s, "\n", " ")
	lineStart := r.atStart()
	if lineStart {
		s = strings.TrimLeft(s, " \t")
	}
	if next == nil || next.Kind == rich.KindLineBreak {
		s = strings.TrimRight(s, " \t")
	}
	if s == "" {
		return
	}

	var b strings.Builder

	if lineStart {
		switch {
		case headingMarker.MatchString(s), strings.HasPrefix(s, ">"),
			strings.HasPrefix(s, "-"), strings.HasPrefix(s, "+"), strings.HasPrefix(s, "="):
			b.WriteByte('\\')
		case orderedMarker.MatchString(s):
			end := strings.IndexAny(s, ".)")
			b.WriteString(s[:end])
			b.WriteByte('\\')
			s = s[end:]
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 == len(s) || isASCIIPunct(s[i+1]) {
				b.WriteByte('\\')
			}
		case '*', '`', '[', ']', '~':
			b.WriteByte('\\')
		case '_':
			if !(i > 0 && isAlnum(s, i-1, false) && i+1 < len(s) && isAlnum(s, i+1, true)) {
				b.WriteByte('\\')
			}
		case '<':
			if i+1 < len(s) && (isLetter(s[i+1]) || strings.IndexByte("/!?", s[i+1]) >= 0) {
				b.WriteByte('\\')
			}
		case '&':
			if entityLike.MatchString(s[i:]) {
				b.WriteByte('\\')
			}
		case '|':
			if r.inTable {
				b.WriteByte('\\')
			}
		case '!':
			if i+1 == len(s) && next != nil && next.Kind == rich.KindLink {
				b.WriteByte('\\')
			}
		}
		b.WriteByte(c)
	}

	r.write(b.String())
}

func destination(href string) string {
	if href == "" {
		return ""
	}
	if strings.ContainsAny(href, " ()<>\t") {
		return "<" + strings.NewReplacer("<", `\<`, ">", `\>`).Replace(href) + ">"
	}
	return href
}

func title(t string) string {
	if t == "" {
		return ""
	}
	return ` "` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t) + `"`
}

func longestSeq(s string, c byte) int {
	longest, current := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

func isASCIIPunct(c byte) bool {
	return c < utf8.RuneSelf && unicode.IsPunct(rune(c)) || strings.IndexByte("$+<=>^`|~", c) >= 0
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isAlnum reports whether the rune starting (forward) or ending (backward)
// at byte i is a letter or a digit.
func isAlnum(s string, i int, forward bool) bool {
	var r rune
	if forward {
		r, _ = utf8.DecodeRuneInString(s[i:])
	} else {
		r, _ = utf8.DecodeLastRuneInString(s[:i+1])
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
