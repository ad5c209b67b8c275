// Package spantree maintains, for every keyframe that has been asked for one, a bounded-depth
// shortest-path tree over the kf2kf edge graph: a symbolic part (predecessor edge, topological
// distance) and a numeric part (composed relative pose, dirty bit).
package spantree

import (
	"sort"

	"go.viam.com/rba/graph"
	"go.viam.com/rba/rbatypes"
)

// entry is one node's record within a single root's tree.
type entry struct {
	dist     int
	pred     int // predecessor kf id, or -1 for the root itself
	predEdge int // edge id on the path from pred to this node, or -1 for the root
	dirty    bool
	pose     any // T(root <- this), valid iff !dirty
}

// Tree is one keyframe's bounded-depth shortest-path tree.
type Tree struct {
	Root    int
	MaxDist int
	entries map[int]*entry
}

// Contains reports whether v has an entry in this tree.
func (t *Tree) Contains(v int) bool {
	_, ok := t.entries[v]
	return ok
}

// Dist returns v's topological distance from the root, or -1 if v is not in the tree.
func (t *Tree) Dist(v int) int {
	e, ok := t.entries[v]
	if !ok {
		return -1
	}
	return e.dist
}

// Pred returns v's predecessor kf id on its shortest path to the root, or -1 if v is the root
// or not in the tree.
func (t *Tree) Pred(v int) int {
	e, ok := t.entries[v]
	if !ok {
		return -1
	}
	return e.pred
}

// PredEdge returns the kf2kf edge id on v's shortest path to its predecessor, or -1 if v is
// the root or not in the tree.
func (t *Tree) PredEdge(v int) int {
	e, ok := t.entries[v]
	if !ok {
		return -1
	}
	return e.predEdge
}

// Pose returns the composed pose T(root <- v). The caller must have called UpdateNumeric for
// this tree's root since the last mutation that could have dirtied v's path.
func (t *Tree) Pose(v int) (pose any, dirty bool) {
	e, ok := t.entries[v]
	if !ok {
		return nil, true
	}
	return e.pose, e.dirty
}

// Nodes returns every kf id in the tree, in increasing topological distance order.
func (t *Tree) Nodes() []int {
	out := make([]int, 0, len(t.entries))
	for v := range t.entries {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if t.entries[out[i]].dist != t.entries[out[j]].dist {
			return t.entries[out[i]].dist < t.entries[out[j]].dist
		}
		return out[i] < out[j]
	})
	return out
}

// SpanningTrees owns every root's tree that has been requested so far, plus the shared bounded
// depth used to build them.
type SpanningTrees struct {
	g        *graph.Graph
	algebra  rbatypes.PoseAlgebra
	maxDepth int
	trees    map[int]*Tree
}

// New returns an empty set of bounded spanning trees over g.
func New(g *graph.Graph, algebra rbatypes.PoseAlgebra, maxDepth int) *SpanningTrees {
	return &SpanningTrees{g: g, algebra: algebra, maxDepth: maxDepth, trees: make(map[int]*Tree)}
}

// MaxDepth returns the bound every tree is built to.
func (s *SpanningTrees) MaxDepth() int { return s.maxDepth }

// Tree returns root's tree, building it via bounded BFS the first time it's asked for.
func (s *SpanningTrees) Tree(root int) *Tree {
	t, ok := s.trees[root]
	if !ok {
		t = s.buildBounded(root)
		s.trees[root] = t
	}
	return t
}

// buildBounded runs an undirected BFS from root up to s.maxDepth hops, breaking ties in equal
// distance by lowest predecessor kf id, and stamps every entry dirty so the first UpdateNumeric
// call computes its pose.
func (s *SpanningTrees) buildBounded(root int) *Tree {
	t := &Tree{Root: root, MaxDist: s.maxDepth, entries: make(map[int]*entry)}
	t.entries[root] = &entry{dist: 0, pred: -1, predEdge: -1, dirty: false, pose: s.algebra.Identity()}

	frontier := []int{root}
	for depth := 0; depth < s.maxDepth && len(frontier) > 0; depth++ {
		// candidates maps a newly-reached kf to its best (lowest predecessor id) incoming edge.
		candidates := make(map[int]*entry)
		for _, v := range frontier {
			for _, eid := range s.g.IncidentEdges(v) {
				e := s.g.Edge(eid)
				next := e.To
				if next == v {
					next = e.From
				}
				if _, already := t.entries[next]; already {
					continue
				}
				cand, exists := candidates[next]
				if !exists || v < predOf(cand, next) {
					candidates[next] = &entry{dist: depth + 1, pred: v, predEdge: eid, dirty: true}
				}
			}
		}
		var nextFrontier []int
		keys := make([]int, 0, len(candidates))
		for v := range candidates {
			keys = append(keys, v)
		}
		sort.Ints(keys)
		for _, v := range keys {
			t.entries[v] = candidates[v]
			nextFrontier = append(nextFrontier, v)
		}
		frontier = nextFrontier
	}
	return t
}

func predOf(e *entry, _ int) int { return e.pred }

// InvalidateRoot drops root's cached tree so it is rebuilt from scratch next time it's asked
// for. Used by UpdateSymbolicNewNode.
func (s *SpanningTrees) InvalidateRoot(root int) {
	delete(s.trees, root)
}

// Roots returns every root that currently has a cached tree.
func (s *SpanningTrees) Roots() []int {
	out := make([]int, 0, len(s.trees))
	for r := range s.trees {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// UpdateSymbolicNewNode is called immediately after newKF and its incident kf2kf edges have
// been allocated. It grows every existing tree that could now reach newKF within maxDepth, and
// builds newKF's own tree from scratch. Rather than patch each affected tree in place, each is
// simply rebuilt via bounded BFS against the now-current graph -- correct because
// buildBounded always yields the true shortest-path tree, and simpler than the incremental
// patch the source performs since this module isn't chasing a performance target.
func (s *SpanningTrees) UpdateSymbolicNewNode(newKF int, newEdgeIDs []int) {
	affected := map[int]bool{newKF: true}
	for _, eid := range newEdgeIDs {
		e := s.g.Edge(eid)
		for r := range s.trees {
			if r == e.From || r == e.To || s.trees[r].Contains(e.From) || s.trees[r].Contains(e.To) {
				affected[r] = true
			}
		}
	}
	for r := range affected {
		s.InvalidateRoot(r)
		s.Tree(r)
	}
}

// MarkDirty marks every cached tree's numeric poses whose predecessor path crosses edgeID as
// dirty.
func (s *SpanningTrees) MarkDirty(edgeID int) {
	for _, t := range s.trees {
		for v, e := range t.entries {
			if e.dirty || v == t.Root {
				continue
			}
			if pathCrossesEdge(t, v, edgeID) {
				e.dirty = true
			}
		}
	}
}

func pathCrossesEdge(t *Tree, v, edgeID int) bool {
	for cur := v; cur != t.Root; {
		e := t.entries[cur]
		if e.predEdge == edgeID {
			return true
		}
		cur = e.pred
	}
	return false
}

// UpdateNumeric recomputes only the dirty poses in the given roots' trees, in increasing
// topological-distance order, so a node's predecessor pose is always fresh before it's used:
// T(r <- v) = T(r <- pred(v)) (+) T(pred(v) <- v).
func (s *SpanningTrees) UpdateNumeric(roots []int) int {
	updated := 0
	for _, r := range roots {
		t, ok := s.trees[r]
		if !ok {
			continue
		}
		for _, v := range t.Nodes() {
			e := t.entries[v]
			if !e.dirty {
				continue
			}
			predEntry := t.entries[e.pred]
			edgePose := s.edgeStepPose(e.pred, v, e.predEdge)
			e.pose = s.algebra.Compose(predEntry.pose, edgePose)
			e.dirty = false
			updated++
		}
	}
	return updated
}

// edgeStepPose returns T(from <- to) for the single kf2kf edge edgeID, inverting the stored
// pose when the edge's stored orientation runs the other way.
func (s *SpanningTrees) edgeStepPose(from, to, edgeID int) any {
	e := s.g.Edge(edgeID)
	if e.From == from && e.To == to {
		return e.Pose
	}
	return s.algebra.Inverse(e.Pose)
}

// PathEdges returns the list of kf2kf edge ids on target's tree path up to t.Root, walked from
// target towards the root, along with, for each edge, whether the underlying graph edge's
// stored (From, To) is (predecessor, node), i.e. runs from the root side towards target, against
// the direction of the walk (forward), or the reverse (backward) -- the Jacobian package applies
// the same test to decide whether to use the edge's pose or its inverse, and with which sign,
// when differentiating through it.
func PathEdges(g *graph.Graph, t *Tree, target int) (edgeIDs []int, forward []bool) {
	for cur := target; cur != t.Root; {
		e := t.entries[cur]
		edge := g.Edge(e.predEdge)
		edgeIDs = append(edgeIDs, e.predEdge)
		forward = append(forward, edge.From == e.pred && edge.To == cur)
		cur = e.pred
	}
	return edgeIDs, forward
}

// CreateCompleteSpanningTree runs an ad-hoc BFS from root, ignoring (and not populating) the
// cached trees, for debug/export use. maxDepth<=0 means unbounded.
func CreateCompleteSpanningTree(g *graph.Graph, algebra rbatypes.PoseAlgebra, root, maxDepth int) *Tree {
	bound := maxDepth
	if bound <= 0 {
		bound = g.NumKFs()
	}
	s := &SpanningTrees{g: g, algebra: algebra, maxDepth: bound, trees: make(map[int]*Tree)}
	t := s.buildBounded(root)
	s.trees[root] = t
	s.UpdateNumeric([]int{root})
	return t
}
