package rich

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// RenderHTML writes the tree as HTML markup suitable for an editable
// view. Literal content is always escaped.
func RenderHTML(n *Node) string {
	var b strings.Builder
	renderHTML(&b, n)
	return b.String()
}

func renderHTML(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindDocument:
		renderChildren(b, n)
	case KindHeading:
		tag := "h" + strconv.Itoa(n.Level)
		b.WriteString("<" + tag + ">")
		renderChildren(b, n)
		b.WriteString("</" + tag + ">\n")
	case KindParagraph:
		b.WriteString("<p>")
		renderChildren(b, n)
		b.WriteString("</p>\n")
	case KindEmphasis:
		tag := "em"
		if n.Style == Strong {
			tag = "strong"
		}
		b.WriteString("<" + tag + ">")
		renderChildren(b, n)
		b.WriteString("</" + tag + ">")
	case KindStrikethrough:
		b.WriteString("<del>")
		renderChildren(b, n)
		b.WriteString("</del>")
	case KindCodeSpan:
		b.WriteString("<code>" + html.EscapeString(n.Literal) + "</code>")
	case KindCodeBlock:
		b.WriteString("<pre><code")
		if n.Language != "" {
			b.WriteString(` class="language-` + html.EscapeString(n.Language) + `"`)
		}
		b.WriteString(">" + html.EscapeString(n.Literal) + "</code></pre>\n")
	case KindLink:
		b.WriteString(`<a href="` + html.EscapeString(n.Href) + `"`)
		if n.Title != "" {
			b.WriteString(` title="` + html.EscapeString(n.Title) + `"`)
		}
		b.WriteString(">")
		renderChildren(b, n)
		b.WriteString("</a>")
	case KindImage:
		b.WriteString(`<img src="` + html.EscapeString(n.Href) + `" alt="` + html.EscapeString(n.Literal) + `"`)
		if n.Title != "" {
			b.WriteString(` title="` + html.EscapeString(n.Title) + `"`)
		}
		b.WriteString(">")
	case KindBlockQuote:
		b.WriteString("<blockquote>\n")
		renderChildren(b, n)
		b.WriteString("</blockquote>\n")
	case KindList:
		if n.Ordered {
			if n.Start > 1 {
				b.WriteString(`<ol start="` + strconv.Itoa(n.Start) + `">` + "\n")
			} else {
				b.WriteString("<ol>\n")
			}
			renderChildren(b, n)
			b.WriteString("</ol>\n")
		} else {
			b.WriteString("<ul>\n")
			renderChildren(b, n)
			b.WriteString("</ul>\n")
		}
	case KindListItem:
		b.WriteString("<li>")
		renderChildren(b, n)
		b.WriteString("</li>\n")
	case KindThematicBreak:
		b.WriteString("<hr>\n")
	case KindTable:
		renderTable(b, n)
	case KindLineBreak:
		b.WriteString("<br>")
	case KindText:
		b.WriteString(html.EscapeString(n.Literal))
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *Node) {
	for _, c := range n.Children {
		renderHTML(b, c)
	}
}

func renderTable(b *strings.Builder, n *Node) {
	b.WriteString("<table>\n")
	inBody := false
	for i, row := range n.Children {
		if row.Header {
			if i == 0 {
				b.WriteString("<thead>\n")
			}
		} else if !inBody {
			if i > 0 {
				b.WriteString("</thead>\n")
			}
			b.WriteString("<tbody>\n")
			inBody = true
		}
		cellTag := "td"
		if row.Header {
			cellTag = "th"
		}
		b.WriteString("<tr>")
		for _, cell := range row.Children {
			b.WriteString("<" + cellTag)
			if align := alignName(cell.Align); align != "" {
				b.WriteString(` align="` + align + `"`)
			}
			b.WriteString(">")
			renderChildren(b, cell)
			b.WriteString("</" + cellTag + ">")
		}
		b.WriteString("</tr>\n")
	}
	switch {
	case inBody:
		b.WriteString("</tbody>\n")
	case len(n.Children) > 0:
		b.WriteString("</thead>\n")
	}
	b.WriteString("</table>\n")
}

func alignName(a Alignment) string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	}
	return ""
}

// ParseAlignment is the inverse of the align attribute written by
// RenderHTML.
func ParseAlignment(s string) Alignment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return AlignLeft
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	}
	return AlignNone
}
