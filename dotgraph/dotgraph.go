// Package dotgraph exports a graph.Graph as DOT source, in two shapes: the full graph, and a
// high-level structural summary. Grounded on RbaEngine.h's save_graph_as_dot /
// save_graph_top_structure_as_dot.
package dotgraph

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"go.viam.com/rba/graph"
)

// SaveGraphAsDot writes every keyframe, kf2kf edge, and landmark in g as DOT source, plus every
// kf2f edge whose observation is not marked invalid.
func SaveGraphAsDot(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "graph rba {")
	for kf := 0; kf < g.NumKFs(); kf++ {
		fmt.Fprintf(bw, "  kf%d [shape=circle];\n", kf)
	}
	for _, e := range g.Edges() {
		style := ""
		switch e.Kind.String() {
		case "loop_closure":
			style = " [color=red,style=dashed]"
		case "fixed_base":
			style = " [color=blue]"
		}
		fmt.Fprintf(bw, "  kf%d -- kf%d%s;\n", e.From, e.To, style)
	}
	lmIDs := make([]int, 0, len(g.Landmarks()))
	for id := range g.Landmarks() {
		lmIDs = append(lmIDs, id)
	}
	sort.Ints(lmIDs)
	for _, id := range lmIDs {
		lm := g.Landmarks()[id]
		shape := "diamond"
		if lm.Known {
			shape = "doublediamond"
		}
		fmt.Fprintf(bw, "  lm%d [shape=%s];\n", id, shape)
	}
	for _, obs := range g.Observations() {
		if obs.Invalid {
			continue
		}
		fmt.Fprintf(bw, "  kf%d -- lm%d [style=dotted];\n", obs.ObservingKF, obs.LmID)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// SaveGraphTopStructureAsDot writes only the keyframes that have more than one incident kf2kf
// edge, plus the kf2kf edges between them -- a high-level structural summary, useful for
// visualizing submap topology without the full observation clutter.
func SaveGraphTopStructureAsDot(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "graph rba_top {")
	keep := make(map[int]bool)
	for kf := 0; kf < g.NumKFs(); kf++ {
		if len(g.IncidentEdges(kf)) > 1 {
			keep[kf] = true
			fmt.Fprintf(bw, "  kf%d [shape=circle];\n", kf)
		}
	}
	for _, e := range g.Edges() {
		if keep[e.From] && keep[e.To] {
			style := ""
			if e.Kind.String() == "loop_closure" {
				style = " [color=red,style=dashed]"
			}
			fmt.Fprintf(bw, "  kf%d -- kf%d%s;\n", e.From, e.To, style)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// Structure is the node/edge set a DOT export's structural shape implies. The package has no
// DOT reader: a Structure comes from StructureOf on the graph, not from exported text.
type Structure struct {
	KFIDs   []int
	Edges   [][2]int
}

// StructureOf derives the Structure a full SaveGraphAsDot export of g represents, without
// actually formatting or parsing DOT text.
func StructureOf(g *graph.Graph) Structure {
	s := Structure{}
	for kf := 0; kf < g.NumKFs(); kf++ {
		s.KFIDs = append(s.KFIDs, kf)
	}
	for _, e := range g.Edges() {
		s.Edges = append(s.Edges, [2]int{e.From, e.To})
	}
	return s
}
