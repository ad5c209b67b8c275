// Package graph owns the RBA problem state: keyframes, kf2kf edges, landmarks, and
// observations, stored as arenas of records indexed by dense integer ids -- back-references are
// pure IDs, never owning handles, so the cyclic keyframe/edge/landmark structure never needs
// reference counting or cleanup ordering.
package graph

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rba/rbaerrors"
	"go.viam.com/rba/rbatypes"
)

// KF2KFEdge is an ordered pair of keyframes with an unknown relative pose.
type KF2KFEdge struct {
	ID   int
	From int
	To   int
	Kind rbatypes.EdgeKind
	Pose any
}

// LandmarkMode selects how a landmark's position is tracked.
type LandmarkMode int

// The three ways add_observation can declare a landmark on first sight.
const (
	// LandmarkNeither means this observation does not establish the landmark's mode; the
	// landmark must already exist.
	LandmarkNeither LandmarkMode = iota
	// LandmarkKnown declares the landmark's position fixed and given.
	LandmarkKnown
	// LandmarkInitUnknown declares the landmark's position an unknown, seeded with an initial
	// guess.
	LandmarkInitUnknown
)

// Landmark is a point whose position is expressed relative to a base keyframe.
type Landmark struct {
	ID       int
	BaseKF   int
	Known    bool
	Position *mat.VecDense // D_l-dimensional, in the base KF's frame
}

// Observation is an immutable kf2f edge: a tuple (observing KF, landmark, observation vector).
type Observation struct {
	Idx         int
	ObservingKF int
	LmID        int
	Obs         *mat.VecDense // D_o-dimensional
	KnownAtInsert bool
	Invalid     bool
}

// Graph is the engine's exclusive store of problem state.
type Graph struct {
	dims rbatypes.Dims

	numKFs      int
	edges       []*KF2KFEdge
	landmarks   map[int]*Landmark
	observations []*Observation

	// adjacency is the undirected kf2kf adjacency used by FindPathBFS: kf id -> list of edge
	// ids incident to it.
	adjacency [][]int
}

// New returns an empty Graph for the given dimension traits.
func New(dims rbatypes.Dims) *Graph {
	return &Graph{
		dims:      dims,
		landmarks: make(map[int]*Landmark),
	}
}

// Dims returns the dimension traits this graph was constructed with.
func (g *Graph) Dims() rbatypes.Dims { return g.dims }

// NumKFs returns the number of allocated keyframes.
func (g *Graph) NumKFs() int { return g.numKFs }

// AllocKF allocates a new keyframe and returns its dense id.
func (g *Graph) AllocKF() int {
	id := g.numKFs
	g.numKFs++
	g.adjacency = append(g.adjacency, nil)
	return id
}

// AllocKF2KFEdge allocates a new kf2kf edge with the given initial pose guess. Returns
// InconsistentGraph if either endpoint does not exist.
func (g *Graph) AllocKF2KFEdge(from, to int, kind rbatypes.EdgeKind, initPose any) (int, error) {
	if from < 0 || from >= g.numKFs {
		return 0, rbaerrors.NewInconsistentGraph(from)
	}
	if to < 0 || to >= g.numKFs {
		return 0, rbaerrors.NewInconsistentGraph(to)
	}
	id := len(g.edges)
	e := &KF2KFEdge{ID: id, From: from, To: to, Kind: kind, Pose: initPose}
	g.edges = append(g.edges, e)
	g.adjacency[from] = append(g.adjacency[from], id)
	g.adjacency[to] = append(g.adjacency[to], id)
	return id, nil
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id int) *KF2KFEdge { return g.edges[id] }

// NumEdges returns the number of allocated kf2kf edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Edges returns all kf2kf edges, in allocation order.
func (g *Graph) Edges() []*KF2KFEdge { return g.edges }

// IncidentEdges returns the ids of all kf2kf edges touching kf.
func (g *Graph) IncidentEdges(kf int) []int { return g.adjacency[kf] }

// Landmark returns the landmark with the given id, or nil if it hasn't been observed yet.
func (g *Graph) Landmark(id int) *Landmark { return g.landmarks[id] }

// Landmarks returns every landmark keyed by id.
func (g *Graph) Landmarks() map[int]*Landmark { return g.landmarks }

// AddObservation records a new kf2f edge. mode declares how a never-before-seen landmark's
// position is tracked. For a landmark that already exists mode is ignored, except that
// declaring an already-known landmark LandmarkKnown again fails with DuplicateKnownLandmark.
// initialGuess is required the first time a landmark is observed.
func (g *Graph) AddObservation(
	observingKF, lmID int,
	obs *mat.VecDense,
	mode LandmarkMode,
	baseKF int,
	initialGuess *mat.VecDense,
) (int, error) {
	if observingKF < 0 || observingKF >= g.numKFs {
		return 0, rbaerrors.NewInvalidID("keyframe", observingKF)
	}

	lm, exists := g.landmarks[lmID]
	if !exists {
		switch mode {
		case LandmarkKnown:
			if initialGuess == nil {
				return 0, rbaerrors.NewMissingInitialGuess(lmID)
			}
			lm = &Landmark{ID: lmID, BaseKF: baseKF, Known: true, Position: initialGuess}
		case LandmarkInitUnknown:
			if initialGuess == nil {
				return 0, rbaerrors.NewMissingInitialGuess(lmID)
			}
			lm = &Landmark{ID: lmID, BaseKF: baseKF, Known: false, Position: initialGuess}
		default:
			return 0, rbaerrors.NewMissingInitialGuess(lmID)
		}
		g.landmarks[lmID] = lm
	} else if mode == LandmarkKnown && exists {
		// Declaring an already-known landmark known a second time is the DuplicateKnownLandmark
		// case. A landmark that exists as unknown stays unknown; the observation is recorded.
		if lm.Known {
			return 0, rbaerrors.NewDuplicateKnownLandmark(lmID)
		}
	}

	idx := len(g.observations)
	o := &Observation{Idx: idx, ObservingKF: observingKF, LmID: lmID, Obs: obs, KnownAtInsert: lm.Known}
	g.observations = append(g.observations, o)
	return idx, nil
}

// Observation returns the observation at the given dense index.
func (g *Graph) Observation(idx int) *Observation { return g.observations[idx] }

// Observations returns all observations, in insertion order.
func (g *Graph) Observations() []*Observation { return g.observations }

// NumObservations returns the number of recorded observations.
func (g *Graph) NumObservations() int { return len(g.observations) }

// ObservationsOf returns the observation indices touching kf, in insertion order.
func (g *Graph) ObservationsOf(kf int) []int {
	var out []int
	for _, o := range g.observations {
		if o.ObservingKF == kf {
			out = append(out, o.Idx)
		}
	}
	return out
}

// FindPathBFS returns the sequence of keyframe ids on an undirected shortest path from src to
// trg (inclusive of both endpoints), or ok=false if no path exists. Runs in O(V+E).
func (g *Graph) FindPathBFS(src, trg int) (path []int, ok bool) {
	if src < 0 || src >= g.numKFs || trg < 0 || trg >= g.numKFs {
		return nil, false
	}
	if src == trg {
		return []int{src}, true
	}

	pred := make([]int, g.numKFs)
	for i := range pred {
		pred[i] = -1
	}
	visited := make([]bool, g.numKFs)
	visited[src] = true
	queue := []int{src}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, eid := range g.adjacency[v] {
			e := g.edges[eid]
			next := e.To
			if next == v {
				next = e.From
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			pred[next] = v
			if next == trg {
				return reconstructPath(pred, src, trg), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reconstructPath(pred []int, src, trg int) []int {
	var rev []int
	for v := trg; v != src; v = pred[v] {
		rev = append(rev, v)
	}
	rev = append(rev, src)
	path := make([]int, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}

// Clear resets the graph to empty.
func (g *Graph) Clear() {
	g.numKFs = 0
	g.edges = nil
	g.landmarks = make(map[int]*Landmark)
	g.observations = nil
	g.adjacency = nil
}
