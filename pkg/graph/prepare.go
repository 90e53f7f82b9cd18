package graph

// Prepare flattens the graph reachable from root into the linear order the
// player schedules from and readies every node for playback at the given
// sample rate and block size.
//
// The returned slice is a depth-first post-order walk: a node's inputs always
// appear before the node itself, and the root appears exactly once, last.
// Diamond-shaped graphs are handled — a node reachable through multiple paths
// is visited and listed once, keyed by identity.
//
// oldRoot, when non-nil, is the root of the graph being replaced; it is
// passed through [PrepareInfo] so stateful nodes can transfer state from
// their predecessor. Prepare does not validate the graph: a cycle terminates
// the walk via the visited set but yields no useful order for the nodes on
// it, and a nil input is listed as-is and panics at process time. Both are
// caller contract violations.
//
// Prepare must be called off the real-time thread.
func Prepare(root, oldRoot Node, sampleRate float64, blockSize int) []Node {
	if root == nil {
		return nil
	}

	info := PrepareInfo{
		Config:  PlayConfig{SampleRate: sampleRate, BlockSize: blockSize},
		Root:    root,
		OldRoot: oldRoot,
	}

	var ordered []Node
	visited := make(map[Node]struct{})
	var visit func(n Node)
	visit = func(n Node) {
		if _, seen := visited[n]; seen {
			return
		}
		visited[n] = struct{}{}
		if ip, ok := n.(InputProvider); ok {
			for _, in := range ip.Inputs() {
				visit(in)
			}
		}
		if p, ok := n.(Preparer); ok {
			p.PrepareToPlay(info)
		}
		ordered = append(ordered, n)
	}
	visit(root)
	return ordered
}
