package rich

type WalkStatus int

const (
	WalkContinue WalkStatus = iota + 1
	WalkSkipChildren
	WalkStop
)

type Walker func(n *Node, entering bool) (WalkStatus, error)

// Walk traverses the tree depth first, calling fn on entering and on
// leaving every node.
func Walk(n *Node, fn Walker) error {
	_, err := walk(n, fn)
	return err
}

func walk(n *Node, fn Walker) (WalkStatus, error) {
	status, err := fn(n, true)
	if err != nil || status == WalkStop {
		return status, err
	}
	if status != WalkSkipChildren {
		for _, c := range n.Children {
			if st, err := walk(c, fn); err != nil || st == WalkStop {
				return WalkStop, err
			}
		}
	}
	if _, err := fn(n, false); err != nil {
		return WalkStop, err
	}
	return WalkContinue, nil
}
