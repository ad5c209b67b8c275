// Package ecp implements the pluggable edge-creation policy: the strategy deciding which new
// kf2kf edges accompany a newly defined keyframe.
package ecp

import (
	"go.viam.com/rba/graph"
	"go.viam.com/rba/rbaerrors"
	"go.viam.com/rba/rbatypes"
	"go.viam.com/rba/spantree"
)

// ProposedEdge is one edge a policy wants created.
type ProposedEdge struct {
	From, To int
	InitPose any
	Kind     rbatypes.EdgeKind
}

// Policy is the abstract strategy: given the keyframe just defined and the observations it
// made, decide which kf2kf edges should accompany it.
type Policy interface {
	DetermineEdgesToCreate(g *graph.Graph, trees *spantree.SpanningTrees, algebra rbatypes.PoseAlgebra, newKF int, newObsIdxs []int) ([]ProposedEdge, error)
}

// LinearGraphPolicy is the trivial policy: a single regular edge newKF -> newKF-1 with an
// identity initial guess.
type LinearGraphPolicy struct{}

// DetermineEdgesToCreate implements Policy.
func (LinearGraphPolicy) DetermineEdgesToCreate(
	g *graph.Graph,
	trees *spantree.SpanningTrees,
	algebra rbatypes.PoseAlgebra,
	newKF int,
	newObsIdxs []int,
) ([]ProposedEdge, error) {
	if newKF == 0 {
		return nil, nil
	}
	return []ProposedEdge{{From: newKF, To: newKF - 1, InitPose: algebra.Identity(), Kind: rbatypes.EdgeRegular}}, nil
}

// LocalAreasParams bundles the tunables of LocalAreasFixedSizePolicy.
type LocalAreasParams struct {
	SubmapSize            int
	MinObsToLoopClosure   int
	MaxTreeDepth          int
}

// DefaultLocalAreasParams returns the usual submap defaults: submap_size=15,
// min_obs_to_loop_closure=4.
func DefaultLocalAreasParams(maxTreeDepth int) LocalAreasParams {
	return LocalAreasParams{SubmapSize: 15, MinObsToLoopClosure: 4, MaxTreeDepth: maxTreeDepth}
}

// LocalAreasFixedSizePolicy partitions keyframes into fixed-size areas, always wiring a new KF
// to its area's center, and opportunistically creating loop-closure edges to distant,
// heavily-co-observed centers. Grounded on ecps/local_areas_fixed_size.h.
type LocalAreasFixedSizePolicy struct {
	Params LocalAreasParams
}

// DetermineEdgesToCreate implements Policy.
func (p LocalAreasFixedSizePolicy) DetermineEdgesToCreate(
	g *graph.Graph,
	trees *spantree.SpanningTrees,
	algebra rbatypes.PoseAlgebra,
	newKF int,
	newObsIdxs []int,
) ([]ProposedEdge, error) {
	if newKF == 0 {
		return nil, nil
	}
	submapSize := p.Params.SubmapSize
	if submapSize <= 0 {
		submapSize = 15
	}

	center := submapSize * (newKF / submapSize)
	var proposed []ProposedEdge

	if newKF == center {
		prevCenter := center - submapSize
		if prevCenter < 0 {
			prevCenter = 0
		}
		proposed = append(proposed, ProposedEdge{From: newKF, To: prevCenter, InitPose: algebra.Identity(), Kind: rbatypes.EdgeRegular})
	} else {
		proposed = append(proposed, ProposedEdge{From: newKF, To: center, InitPose: algebra.Identity(), Kind: rbatypes.EdgeRegular})
	}

	if loop, ok := p.findLoopClosure(g, trees, algebra, newObsIdxs, submapSize, center); ok {
		proposed = append(proposed, loop)
	}

	if len(proposed) == 0 {
		return nil, rbaerrors.NewInconsistentGraph(newKF)
	}
	return proposed, nil
}

// findLoopClosure tallies newKF's freshly added observations by the area center of each
// observed landmark's base KF, and proposes a loop_closure edge between currentCenter and the
// most-voted other area center if it is far enough away (by the spanning tree rooted at
// currentCenter) and collects enough votes. Candidates are always area centers, never
// arbitrary co-observing KFs, matching the always-created edge's area-to-area topology.
func (p LocalAreasFixedSizePolicy) findLoopClosure(
	g *graph.Graph,
	trees *spantree.SpanningTrees,
	algebra rbatypes.PoseAlgebra,
	newObsIdxs []int,
	submapSize, currentCenter int,
) (ProposedEdge, bool) {
	votesByArea := make(map[int]int)
	for _, idx := range newObsIdxs {
		obs := g.Observation(idx)
		lm := g.Landmark(obs.LmID)
		if lm == nil {
			continue
		}
		area := submapSize * (lm.BaseKF / submapSize)
		votesByArea[area]++
	}
	if len(votesByArea) == 0 {
		return ProposedEdge{}, false
	}

	minDist := p.Params.MaxTreeDepth + 1 - 2
	tree := trees.Tree(currentCenter)

	best, bestCount := -1, 0
	for area, count := range votesByArea {
		if area == currentCenter {
			continue
		}
		if count < p.Params.MinObsToLoopClosure {
			continue
		}
		if !tree.Contains(area) || tree.Dist(area) < minDist {
			continue
		}
		if count > bestCount || (count == bestCount && area < best) {
			best, bestCount = area, count
		}
	}
	if best < 0 {
		return ProposedEdge{}, false
	}

	pose, dirty := tree.Pose(best)
	if dirty || pose == nil {
		return ProposedEdge{}, false
	}

	from, to := currentCenter, best
	if from < to {
		from, to = to, from
	}
	// Edge.Pose represents T(From <- To). Tree gives T(currentCenter <- best); when
	// currentCenter is the higher-numbered (From) endpoint that's already the right direction,
	// otherwise invert.
	var initPose any
	if from == currentCenter {
		initPose = pose
	} else {
		initPose = algebra.Inverse(pose)
	}
	return ProposedEdge{From: from, To: to, InitPose: initPose, Kind: rbatypes.EdgeLoopClosure}, true
}
