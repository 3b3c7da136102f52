package engine

import (
	"slices"
)

// Path search defaults.
const (
	DefaultMaxPaths = 10
	DefaultMaxDepth = 20
)

// PathOptions bounds FindPaths.
type PathOptions struct {
	// MaxPaths stops the search once this many complete paths are found.
	MaxPaths int

	// MaxDepth discards paths with more nodes than this.
	MaxDepth int

	// MaxExpansions caps the number of frontier entries dequeued. Zero means
	// unbounded.
	MaxExpansions int
}

func (o PathOptions) withDefaults() PathOptions {
	if o.MaxPaths <= 0 {
		o.MaxPaths = DefaultMaxPaths
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// frontierEntry carries its own state because edge legality depends on it.
type frontierEntry struct {
	node      string
	path      []string
	knowledge Set
	facts     Set
}

// FindPaths runs a breadth-first search from start to goal, exploring
// transitions in insertion order. A node already on the current path is
// never revisited, but different paths may share nodes. Returned paths are in
// discovery order, not sorted by length.
func (g *DayGraph) FindPaths(start, goal string, knowledge, facts Set, opts PathOptions) [][]string {
	if !g.HasNode(start) || !g.HasNode(goal) {
		return [][]string{}
	}
	opts = opts.withDefaults()

	paths := [][]string{}
	queue := []frontierEntry{{
		node:      start,
		path:      []string{start},
		knowledge: knowledge.Clone(),
		facts:     facts.Clone(),
	}}

	for expansions := 0; len(queue) > 0 && len(paths) < opts.MaxPaths; expansions++ {
		if opts.MaxExpansions > 0 && expansions >= opts.MaxExpansions {
			break
		}
		entry := queue[0]
		queue = queue[1:]

		if len(entry.path) > opts.MaxDepth {
			continue
		}
		if entry.node == goal {
			paths = append(paths, entry.path)
			continue
		}

		k, f := entry.knowledge, entry.facts
		if node := g.Node(entry.node); node != nil {
			k, f = node.ApplyEffects(k, f)
		}

		for _, t := range g.edgesFrom[entry.node] {
			if slices.Contains(entry.path, t.To) {
				continue
			}
			if !t.CanTraverse(k, f) {
				continue
			}
			target := g.Node(t.To)
			if target == nil || !target.CanEnter(k, f) {
				continue
			}
			queue = append(queue, frontierEntry{
				node:      t.To,
				path:      append(slices.Clone(entry.path), t.To),
				knowledge: k.Clone(),
				facts:     f.Clone(),
			})
		}
	}

	return paths
}

// IsReachable reports whether any legal path leads from one node to another.
func (g *DayGraph) IsReachable(from, to string, knowledge, facts Set) bool {
	return len(g.FindPaths(from, to, knowledge, facts, PathOptions{MaxPaths: 1})) > 0
}

// ReachabilityMap returns every node reachable from a node given starting
// state. Each node is expanded once with the state of its first arrival.
func (g *DayGraph) ReachabilityMap(from string, knowledge, facts Set) Set {
	reachable := NewSet()
	if !g.HasNode(from) {
		return reachable
	}

	type item struct {
		node      string
		knowledge Set
		facts     Set
	}
	queue := []item{{from, knowledge.Clone(), facts.Clone()}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if reachable.Has(current.node) {
			continue
		}
		reachable.Add(current.node)

		k, f := g.Node(current.node).ApplyEffects(current.knowledge, current.facts)

		for _, t := range g.edgesFrom[current.node] {
			if reachable.Has(t.To) || !t.CanTraverse(k, f) {
				continue
			}
			if target := g.Node(t.To); target != nil && target.CanEnter(k, f) {
				queue = append(queue, item{t.To, k.Clone(), f.Clone()})
			}
		}
	}

	return reachable
}

// ChokePoints returns the critical nodes whose removal makes a death node
// that is structurally reachable from the start unreachable.
func (g *DayGraph) ChokePoints() []string {
	base := g.reachableWithout("")
	var deaths []string
	for _, n := range g.DeathNodes() {
		if base.Has(n.ID) {
			deaths = append(deaths, n.ID)
		}
	}
	if len(deaths) == 0 {
		return nil
	}

	var points []string
	for _, n := range g.nodes {
		if !n.IsCritical() {
			continue
		}
		without := g.reachableWithout(n.ID)
		for _, d := range deaths {
			if !without.Has(d) {
				points = append(points, n.ID)
				break
			}
		}
	}
	return points
}

// reachableWithout ignores conditions and returns the nodes reachable from
// the start when excluded is removed. Excluding the start yields nothing.
func (g *DayGraph) reachableWithout(excluded string) Set {
	reachable := NewSet()
	start := g.StartNode()
	if start == nil || start.ID == excluded {
		return reachable
	}

	queue := []string{start.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if reachable.Has(current) || current == excluded {
			continue
		}
		reachable.Add(current)

		for _, t := range g.edgesFrom[current] {
			if !reachable.Has(t.To) && t.To != excluded {
				queue = append(queue, t.To)
			}
		}
	}
	return reachable
}
