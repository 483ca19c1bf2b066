package md

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stateful/mdedit/internal/renderer/richtree"
	. "github.com/stateful/mdedit/pkg/document/rich"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		name     string
		doc      *Node
		expected string
	}{
		{
			name:     "Heading",
			doc:      NewDocument(NewHeading(1, NewText("Title"))),
			expected: "# Title\n",
		},
		{
			name:     "EmptyHeading",
			doc:      NewDocument(NewHeading(3)),
			expected: "###\n",
		},
		{
			name: "BoldBeforeItalic",
			doc: NewDocument(NewParagraph(NewStrong(
				NewText("bold "),
				NewItalic(NewText("and italic")),
				NewText(" text"),
			))),
			expected: "**bold *and italic* text**\n",
		},
		{
			name:     "HoistWhitespace",
			doc:      NewDocument(NewParagraph(NewText("a"), NewStrong(NewText(" b ")), NewText("c"))),
			expected: "a **b** c\n",
		},
		{
			name:     "FlattenSameStyle",
			doc:      NewDocument(NewParagraph(NewStrong(NewText("a"), NewStrong(NewText("b"))))),
			expected: "**ab**\n",
		},
		{
			name:     "DropEmptyEmphasis",
			doc:      NewDocument(NewParagraph(NewText("a "), NewItalic(NewText(" ")), NewText("b"))),
			expected: "a  b\n",
		},
		{
			name:     "StrongAfterItalicBoundary",
			doc:      NewDocument(NewParagraph(NewItalic(NewText("a")), NewStrong(NewText("b")))),
			expected: "*a*__b__\n",
		},
		{
			name:     "Escapes",
			doc:      NewDocument(NewParagraph(NewText("1. not a list *or* [link] <b> snake_case _x_"))),
			expected: "1\\. not a list \\*or\\* \\[link\\] \\<b> snake_case \\_x\\_\n",
		},
		{
			name:     "LineStartEscapes",
			doc:      NewDocument(NewParagraph(NewText("# no"), NewLineBreak(), NewText("> no"), NewLineBreak(), NewText("- no"))),
			expected: "\\# no\n\\> no\n\\- no\n",
		},
		{
			name:     "ImageLookalike",
			doc:      NewDocument(NewParagraph(NewText("wow!"), NewLink("https://x.y", "", NewText("x")))),
			expected: "wow\\![x](https://x.y)\n",
		},
		{
			name:     "HardBreak",
			doc:      NewDocument(NewParagraph(NewText("a"), NewLineBreak(), NewText("b"))),
			expected: "a\nb\n",
		},
		{
			name: "ListBoundary",
			doc: NewDocument(
				NewList(false, 0, NewListItem(NewText("a")), NewListItem(NewText("b"))),
				NewList(true, 1, NewListItem(NewText("c"))),
			),
			expected: "- a\n- b\n\n1. c\n",
		},
		{
			name: "AdjacentListsSameKind",
			doc: NewDocument(
				NewList(false, 0, NewListItem(NewText("a"))),
				NewList(false, 0, NewListItem(NewText("b"))),
				NewList(false, 0, NewListItem(NewText("c"))),
			),
			expected: "- a\n\n* b\n\n- c\n",
		},
		{
			name: "OrderedStart",
			doc: NewDocument(
				NewList(true, 3, NewListItem(NewText("a")), NewListItem(NewText("b"))),
			),
			expected: "3. a\n4. b\n",
		},
		{
			name: "NestedList",
			doc: NewDocument(NewList(false, 0,
				NewListItem(NewText("a"), NewList(false, 0, NewListItem(NewText("b")))),
			)),
			expected: "- a\n  - b\n",
		},
		{
			name: "LooseList",
			doc: NewDocument(NewList(false, 0,
				NewListItem(NewParagraph(NewText("a"))),
				NewListItem(NewParagraph(NewText("b"))),
			)),
			expected: "- a\n\n- b\n",
		},
		{
			name:     "EmptyListItem",
			doc:      NewDocument(NewList(false, 0, NewListItem(), NewListItem(NewText("b")))),
			expected: "-\n- b\n",
		},
		{
			name: "BlockQuote",
			doc: NewDocument(NewBlockQuote(
				NewParagraph(NewText("a")),
				NewParagraph(NewText("b")),
			)),
			expected: "> a\n>\n> b\n",
		},
		{
			name:     "CodeBlock",
			doc:      NewDocument(NewCodeBlock("go", "fmt.Println()\n")),
			expected: "```go\nfmt.Println()\n```\n",
		},
		{
			name:     "CodeBlockWithFence",
			doc:      NewDocument(NewCodeBlock("", "```\nx")),
			expected: "````\n```\nx\n````\n",
		},
		{
			name:     "CodeSpan",
			doc:      NewDocument(NewParagraph(NewText("run "), NewCodeSpan("a`b"))),
			expected: "run ``a`b``\n",
		},
		{
			name:     "CodeSpanPadding",
			doc:      NewDocument(NewParagraph(NewCodeSpan("`x"))),
			expected: "`` `x ``\n",
		},
		{
			name: "Links",
			doc: NewDocument(NewParagraph(
				NewLink("https://x.y", "", NewText("x")),
				NewText(" "),
				NewLink("a b.md", "T \"q\"", NewText("y")),
			)),
			expected: "[x](https://x.y) [y](<a b.md> \"T \\\"q\\\"\")\n",
		},
		{
			name:     "Image",
			doc:      NewDocument(NewParagraph(NewImage("a.png", "", "alt [1]"))),
			expected: "![alt \\[1\\]](a.png)\n",
		},
		{
			name:     "Strikethrough",
			doc:      NewDocument(NewParagraph(NewStrikethrough(NewText("gone")), NewText(" ~"))),
			expected: "~~gone~~ \\~\n",
		},
		{
			name: "ThematicBreak",
			doc: NewDocument(
				NewParagraph(NewText("a")),
				NewThematicBreak(),
				NewParagraph(NewText("b")),
			),
			expected: "a\n\n---\n\nb\n",
		},
		{
			name: "Table",
			doc: NewDocument(NewTable(
				NewTableRow(true, NewTableCell(AlignLeft, NewText("a")), NewTableCell(AlignNone, NewText("b"))),
				NewTableRow(false, NewTableCell(AlignNone, NewText("1")), NewTableCell(AlignNone, NewText("x|y"))),
			)),
			expected: "| a | b |\n| :--- | --- |\n| 1 | x\\|y |\n",
		},
		{
			name:     "Empty",
			doc:      NewDocument(),
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RenderString(tc.doc))
		})
	}
}

func TestRender_DoesNotModifyInput(t *testing.T) {
	doc := NewDocument(NewParagraph(NewStrong(NewText(" a "))))
	before := Dump(doc)
	_ = Render(doc)
	assert.Equal(t, before, Dump(doc))
}

func TestRender_NoEditRoundTrip(t *testing.T) {
	for _, source := range []string{
		"# Title\n",
		"Hello **world**\n",
		"- a\n- b\n\n1. c\n",
		"> quote\n",
		"```sh\necho hi\n```\n",
		"| a | b |\n| --- | --- |\n| 1 | 2 |\n",
	} {
		t.Run(source, func(t *testing.T) {
			assert.Equal(t, source, RenderString(richtree.RenderString(source)))
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	for _, source := range []string{
		"# Title\n\nSome *text* with **bold** and `code`.",
		"**bold *and italic* text**",
		"* star\n* list\n\n- dash\n- list",
		"1. one\n2. two\n\n   para\n3. three",
		"> a\n> - b\n>   - c",
		"line one\nline two  \nline three",
		"[a](https://example.com \"x\") ![img](a.png)",
		"\\# not heading\n\n\\- not list\n\n2\\. not ordered",
		"~~strike~~ and ~single~",
		"a_b_c and _d_ and __e__",
		"<div>\nraw\n</div>\n\n<b>inline</b>",
		"| x | y |\n| :-: | --: |\n| 1 | a \\| b |",
		"***\n\nafter",
		"````\n```\ninner\n```\n````",
		"Setext\n======\n\nSub\n---",
		"[a]: http://x\n\n[a]",
	} {
		t.Run(source, func(t *testing.T) {
			first := richtree.RenderString(source)
			serialized := RenderString(first)
			second := richtree.RenderString(serialized)
			require.Equal(t, Dump(first), Dump(second), "serialized: %q", serialized)
			assert.Equal(t, serialized, RenderString(second))
		})
	}
}

func TestRenderMarkup(t *testing.T) {
	assert.Equal(
		t,
		"# Title\n\n**bold** and *italic*\n",
		RenderMarkup("<h1>Title</h1><p><strong>bold</strong> and <em>italic</em></p>"),
	)
}
