package view

import (
	"unicode/utf8"

	"github.com/stateful/mdedit/pkg/document/rich"
)

// Point addresses a position inside a Text node: Path holds child
// indexes from the document root, Offset counts runes.
type Point struct {
	Path   []int
	Offset int
}

type Range struct {
	Start Point
	End   Point
}

// Collapsed reports whether the range is a caret.
func (r Range) Collapsed() bool {
	return samePath(r.Start.Path, r.End.Path) && r.Start.Offset == r.End.Offset
}

func (r Range) clone() Range {
	return Range{Start: r.Start.clone(), End: r.End.clone()}
}

func (p Point) clone() Point {
	return Point{Path: append([]int(nil), p.Path...), Offset: p.Offset}
}

func nodeAt(root *rich.Node, path []int) *rich.Node {
	n := root
	for _, i := range path {
		if n == nil || i < 0 || i >= len(n.Children) {
			return nil
		}
		n = n.Children[i]
	}
	return n
}

func (p Point) resolves(root *rich.Node) bool {
	n := nodeAt(root, p.Path)
	return n != nil && n.Kind == rich.KindText && p.Offset >= 0 && p.Offset <= utf8.RuneCountInString(n.Literal)
}

func (r Range) resolves(root *rich.Node) bool {
	return r.Start.resolves(root) && r.End.resolves(root)
}

// ordered returns the range with Start before End when both endpoints
// share a Text node.
func (r Range) ordered() Range {
	if samePath(r.Start.Path, r.End.Path) && r.End.Offset < r.Start.Offset {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func samePath(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hasPrefix(path, prefix []int) bool {
	return len(path) >= len(prefix) && samePath(path[:len(prefix)], prefix)
}

func join(a []int, b ...int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// rebaseRule moves every path below from to the same place below to.
type rebaseRule struct {
	from, to []int
}

func rebase(p Point, rules ...rebaseRule) Point {
	for _, r := range rules {
		if hasPrefix(p.Path, r.from) {
			return Point{Path: join(r.to, p.Path[len(r.from):]...), Offset: p.Offset}
		}
	}
	return p
}

func rebaseRange(r Range, rules ...rebaseRule) Range {
	return Range{Start: rebase(r.Start, rules...), End: rebase(r.End, rules...)}
}
