package view

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/stateful/mdedit/pkg/document/rich"
)

type Command string

const (
	Bold         Command = "bold"
	Italic       Command = "italic"
	Heading1     Command = "heading1"
	Heading2     Command = "heading2"
	Heading3     Command = "heading3"
	BulletList   Command = "bulletList"
	NumberedList Command = "numberedList"
	Link         Command = "link"
	Code         Command = "code"
	Quote        Command = "quote"
)

func Commands() []Command {
	return []Command{Bold, Italic, Heading1, Heading2, Heading3, BulletList, NumberedList, Link, Code, Quote}
}

// exec runs with v.mu held.
func (v *View) exec(cmd Command, arg string) error {
	switch cmd {
	case Bold:
		return v.wrapInline(func(text string) *rich.Node { return rich.NewStrong(rich.NewText(text)) }, rich.Strong)
	case Italic:
		return v.wrapInline(func(text string) *rich.Node { return rich.NewItalic(rich.NewText(text)) }, rich.Italic)
	case Code:
		return v.wrapInline(func(text string) *rich.Node { return rich.NewCodeSpan(text) }, 0)
	case Link:
		if arg == "" {
			return nil
		}
		if link := v.enclosingLink(); link != nil {
			link.Href = arg
			return nil
		}
		return v.wrapInline(func(text string) *rich.Node { return rich.NewLink(arg, "", rich.NewText(text)) }, 0)
	case Heading1:
		return v.formatHeading(1)
	case Heading2:
		return v.formatHeading(2)
	case Heading3:
		return v.formatHeading(3)
	case Quote:
		return v.formatQuote()
	case BulletList:
		return v.formatList(false)
	case NumberedList:
		return v.formatList(true)
	}
	return errors.Errorf("unknown command %q", cmd)
}

// textSelection returns the selected Text node when the selection starts
// and ends inside it.
func (v *View) textSelection() (Range, *rich.Node, bool) {
	if v.selection == nil {
		return Range{}, nil, false
	}
	r := v.selection.ordered()
	if !samePath(r.Start.Path, r.End.Path) {
		return Range{}, nil, false
	}
	return r, nodeAt(v.doc, r.Start.Path), true
}

func (v *View) enclosingLink() *rich.Node {
	if v.selection == nil {
		return nil
	}
	path := v.selection.Start.Path
	for i := len(path) - 1; i > 0; i-- {
		if n := nodeAt(v.doc, path[:i]); n != nil && n.Kind == rich.KindLink {
			return n
		}
	}
	return nil
}

// wrapInline wraps the selected text with the node built by wrap.
// Selecting text already inside emphasis of the given style removes that
// emphasis instead.
func (v *View) wrapInline(wrap func(string) *rich.Node, toggle rich.EmphasisStyle) error {
	r, text, ok := v.textSelection()
	if !ok || r.Collapsed() {
		return ErrNoSelection
	}

	path := r.Start.Path
	parentPath, idx := path[:len(path)-1], path[len(path)-1]
	parent := nodeAt(v.doc, parentPath)

	if toggle != 0 && parent.Kind == rich.KindEmphasis && parent.Style == toggle && len(parentPath) > 0 {
		grandPath, pidx := parentPath[:len(parentPath)-1], parentPath[len(parentPath)-1]
		grand := nodeAt(v.doc, grandPath)
		grand.Children = splice(grand.Children, pidx, 1, parent.Children...)
		sel := rebaseRange(r, rebaseRule{from: join(parentPath, idx), to: join(grandPath, pidx+idx)})
		v.selection = &sel
		return nil
	}

	runes := []rune(text.Literal)
	before, mid, after := string(runes[:r.Start.Offset]), string(runes[r.Start.Offset:r.End.Offset]), string(runes[r.End.Offset:])
	wrapper := wrap(mid)
	parent.Children = splice(parent.Children, idx, 1, rich.NewText(before), wrapper, rich.NewText(after))

	var sel Range
	if wrapper.Kind == rich.KindCodeSpan {
		caret := Point{Path: join(parentPath, idx+2)}
		sel = Range{Start: caret, End: caret.clone()}
	} else {
		inner := join(parentPath, idx+1, 0)
		sel = Range{Start: Point{Path: inner}, End: Point{Path: append([]int(nil), inner...), Offset: len([]rune(mid))}}
	}
	v.selection = &sel
	return nil
}

// textBlock returns the Paragraph or Heading holding the selection. A
// tight list item is given a paragraph first.
func (v *View) textBlock() (*rich.Node, []int, bool) {
	if v.selection == nil {
		return nil, nil, false
	}
	path := v.selection.Start.Path
	for i := len(path) - 1; i >= 0; i-- {
		n := nodeAt(v.doc, path[:i])
		switch n.Kind {
		case rich.KindParagraph, rich.KindHeading:
			return n, append([]int(nil), path[:i]...), true
		case rich.KindListItem:
			if !allInline(n.Children) {
				return nil, nil, false
			}
			itemPath := append([]int(nil), path[:i]...)
			para := rich.NewParagraph(n.Children...)
			n.Children = []*rich.Node{para}
			sel := rebaseRange(*v.selection, rebaseRule{from: itemPath, to: join(itemPath, 0)})
			v.selection = &sel
			return para, join(itemPath, 0), true
		}
	}
	return nil, nil, false
}

func (v *View) formatHeading(level int) error {
	blk, path, ok := v.textBlock()
	if !ok {
		return ErrNoSelection
	}
	parent := nodeAt(v.doc, path[:len(path)-1])
	var replacement *rich.Node
	if blk.Kind == rich.KindHeading && blk.Level == level {
		replacement = rich.NewParagraph(blk.Children...)
	} else {
		replacement = rich.NewHeading(level, blk.Children...)
	}
	parent.Children[path[len(path)-1]] = replacement
	return nil
}

func (v *View) formatQuote() error {
	blk, path, ok := v.textBlock()
	if !ok {
		return ErrNoSelection
	}

	for i := len(path) - 1; i > 0; i-- {
		if q := nodeAt(v.doc, path[:i]); q.Kind == rich.KindBlockQuote {
			qPath := path[:i]
			parentPath, qIdx := qPath[:len(qPath)-1], qPath[len(qPath)-1]
			parent := nodeAt(v.doc, parentPath)
			parent.Children = splice(parent.Children, qIdx, 1, q.Children...)
			sel := shiftFirst(*v.selection, len(parentPath))
			v.selection = &sel
			return nil
		}
	}

	parentPath, idx := path[:len(path)-1], path[len(path)-1]
	parent := nodeAt(v.doc, parentPath)
	parent.Children[idx] = rich.NewBlockQuote(blk)
	sel := rebaseRange(*v.selection, rebaseRule{from: path, to: join(path, 0)})
	v.selection = &sel
	return nil
}

// shiftFirst folds the index that followed position depth into the one
// at depth, undoing one level of nesting.
func shiftFirst(r Range, depth int) Range {
	fold := func(p Point) Point {
		if len(p.Path) <= depth+1 {
			return p
		}
		path := join(p.Path[:depth], p.Path[depth]+p.Path[depth+1])
		return Point{Path: join(path, p.Path[depth+2:]...), Offset: p.Offset}
	}
	return Range{Start: fold(r.Start), End: fold(r.End)}
}

func (v *View) formatList(ordered bool) error {
	if list, listPath, ok := v.enclosingList(); ok {
		// Switch the kind of the list, or lift its content out when it
		// already has the requested kind.
		if list.Ordered == ordered {
			v.unwrapList(list, listPath)
			return nil
		}
		list.Ordered = ordered
		list.Start = 0
		if ordered {
			list.Start = 1
		}
		return nil
	}

	blk, path, ok := v.textBlock()
	if !ok {
		return ErrNoSelection
	}

	parentPath, idx := path[:len(path)-1], path[len(path)-1]
	parent := nodeAt(v.doc, parentPath)

	item := rich.NewListItem(blk)
	itemRule := func(itemPath []int) rebaseRule { return rebaseRule{from: path, to: join(itemPath, 0)} }
	if blk.Kind == rich.KindParagraph {
		item = rich.NewListItem(blk.Children...)
		itemRule = func(itemPath []int) rebaseRule { return rebaseRule{from: path, to: itemPath} }
	}

	if idx > 0 {
		if prev := parent.Children[idx-1]; prev.Kind == rich.KindList && prev.Ordered == ordered {
			itemPath := join(parentPath, idx-1, len(prev.Children))
			prev.Append(item)
			parent.Children = splice(parent.Children, idx, 1)
			sel := rebaseRange(*v.selection, itemRule(itemPath))
			v.selection = &sel
			return nil
		}
	}

	start := 0
	if ordered {
		start = 1
	}
	parent.Children[idx] = rich.NewList(ordered, start, item)
	sel := rebaseRange(*v.selection, itemRule(join(path, 0)))
	v.selection = &sel
	return nil
}

// enclosingList returns the innermost list holding the selection.
func (v *View) enclosingList() (*rich.Node, []int, bool) {
	if v.selection == nil {
		return nil, nil, false
	}
	path := v.selection.Start.Path
	for i := len(path) - 1; i >= 0; i-- {
		if n := nodeAt(v.doc, path[:i]); n.Kind == rich.KindList {
			return n, append([]int(nil), path[:i]...), true
		}
	}
	return nil, nil, false
}

// unwrapList replaces a list by the content of its items. Inline runs of
// tight items become paragraphs.
func (v *View) unwrapList(list *rich.Node, listPath []int) {
	parentPath, listIdx := listPath[:len(listPath)-1], listPath[len(listPath)-1]
	parent := nodeAt(v.doc, parentPath)

	var (
		blocks []*rich.Node
		rules  []rebaseRule
	)
	for k, item := range list.Children {
		for j := 0; j < len(item.Children); {
			pos := listIdx + len(blocks)
			if item.Children[j].IsInline() {
				end := j
				for end < len(item.Children) && item.Children[end].IsInline() {
					end++
				}
				for x := j; x < end; x++ {
					rules = append(rules, rebaseRule{from: join(listPath, k, x), to: join(parentPath, pos, x-j)})
				}
				blocks = append(blocks, rich.NewParagraph(item.Children[j:end]...))
				j = end
				continue
			}
			rules = append(rules, rebaseRule{from: join(listPath, k, j), to: join(parentPath, pos)})
			blocks = append(blocks, item.Children[j])
			j++
		}
	}

	parent.Children = splice(parent.Children, listIdx, 1, blocks...)
	sel := rebaseRange(*v.selection, rules...)
	v.selection = &sel
}

// insertText runs with v.mu held.
func (v *View) insertText(text string) {
	lines := strings.Split(text, "\n")

	r, node, ok := v.textSelection()
	if !ok {
		if v.selection != nil {
			// Multi node selections collapse to their start.
			start := v.selection.Start.clone()
			r, node, ok = Range{Start: start, End: start.clone()}, nodeAt(v.doc, start.Path), true
		}
	}

	if !ok {
		v.appendText(lines)
		return
	}

	runes := []rune(node.Literal)
	before, after := string(runes[:r.Start.Offset]), string(runes[r.End.Offset:])
	path := r.Start.Path
	parentPath, idx := path[:len(path)-1], path[len(path)-1]

	if len(lines) == 1 {
		node.Literal = before + lines[0] + after
		caret := Point{Path: append([]int(nil), path...), Offset: len([]rune(before + lines[0]))}
		v.selection = &Range{Start: caret, End: caret.clone()}
		return
	}

	node.Literal = before + lines[0]
	var inserted []*rich.Node
	for i, line := range lines[1:] {
		if i == len(lines)-2 {
			line += after
		}
		inserted = append(inserted, rich.NewLineBreak(), rich.NewText(line))
	}
	parent := nodeAt(v.doc, parentPath)
	parent.Children = splice(parent.Children, idx+1, 0, inserted...)

	last := lines[len(lines)-1]
	caret := Point{Path: join(parentPath, idx+len(inserted)), Offset: len([]rune(last))}
	v.selection = &Range{Start: caret, End: caret.clone()}
}

// appendText adds lines at the end of the document, extending a final
// paragraph when there is one.
func (v *View) appendText(lines []string) {
	para := v.doc.LastChild()
	if para == nil || para.Kind != rich.KindParagraph {
		para = rich.NewParagraph()
		v.doc.Append(para)
	}
	paraPath := []int{len(v.doc.Children) - 1}

	for i, line := range lines {
		if i > 0 {
			para.Append(rich.NewLineBreak())
		}
		para.Append(rich.NewText(line))
	}

	caret := Point{Path: join(paraPath, len(para.Children)-1), Offset: len([]rune(lines[len(lines)-1]))}
	v.selection = &Range{Start: caret, End: caret.clone()}
}

func allInline(nodes []*rich.Node) bool {
	for _, n := range nodes {
		if !n.IsInline() {
			return false
		}
	}
	return true
}

// splice replaces n nodes at i with insert.
func splice(nodes []*rich.Node, i, n int, insert ...*rich.Node) []*rich.Node {
	out := make([]*rich.Node, 0, len(nodes)-n+len(insert))
	out = append(out, nodes[:i]...)
	out = append(out, insert...)
	return append(out, nodes[i+n:]...)
}
