package tracker

import (
	"fmt"
	"sort"

	pitchtrack "github.com/pitchvision/go-pitchtrack"
)

const (
	// iouWeight and footWeight blend spatial overlap with foot point
	// distance when foot based tracking is enabled
	iouWeight  = 0.6
	footWeight = 0.4
	// hitBias is the deterministic cost premium per missing hit of history,
	// small enough to only decide ties.  The more established track wins an
	// ambiguous contest for a detection
	hitBias = 1e-6
	// hitBiasCap bounds the premium so history can never outbid a genuinely
	// better overlap
	hitBiasCap = 100
)

// Assignment is the result of solving one frame's detection-to-track
// association.
type Assignment struct {
	// Matches holds [trackIdx, detIdx] pairs
	Matches [][2]int
	// UnmatchedTracks are indices of live tracks without a detection
	UnmatchedTracks []int
	// UnmatchedDetections are indices of detections without a track
	UnmatchedDetections []int
}

// Associator is the capability a tracker backend provides to the pipeline:
// predict track motion, associate detections and commit the result.
// Swapping association strategies means providing another implementation,
// Engine is the stock one.
type Associator interface {
	// Predict advances every live track's motion model by one frame
	Predict()
	// Associate solves assignment between live tracks and detections
	// without mutating any track state
	Associate(dets []Detection) (Assignment, error)
	// Update commits an assignment, advancing the track state machine, and
	// returns the confirmed tracks to emit for the frame
	Update(frameID int, dets []Detection, asg Assignment) ([]*Track, error)
	// Tracks returns all live tracks in track id order
	Tracks() []*Track
	// TakeRemoved drains tracks that reached the Removed state since the
	// last call, for identity rescue
	TakeRemoved() []*Track
	// Discard silently drops a live track, used when an anchor merges two
	// tracks into one
	Discard(trackID int)
}

// Engine is the stock association backend: Kalman prediction, an IoU (and
// optionally foot point) cost matrix, gated Jonker-Volgenant assignment and
// the track lifecycle state machine.
type Engine struct {
	cfg          pitchtrack.Config
	bufferFrames int
	// live tracks, Tentative, Confirmed and Lost
	tracks []*Track
	// nextTrackID is monotonically increasing, ids are never reused
	// within a run
	nextTrackID int
	// removed collects terminal tracks until the pipeline drains them
	removed []*Track
}

// compile time interface check
var _ Associator = (*Engine)(nil)

// NewEngine creates the stock association backend from a validated config.
func NewEngine(cfg pitchtrack.Config) *Engine {
	return &Engine{
		cfg:          cfg,
		bufferFrames: cfg.BufferFrames(),
	}
}

// Reset drops all track state.  The track id counter is retained so ids
// stay unique across a reset within the same run.
func (e *Engine) Reset() {
	e.tracks = nil
	e.removed = nil
}

// Tracks returns all live tracks in track id order.
func (e *Engine) Tracks() []*Track {
	out := make([]*Track, len(e.tracks))
	copy(out, e.tracks)
	return out
}

// TakeRemoved drains tracks that reached the Removed state since the last
// call.
func (e *Engine) TakeRemoved() []*Track {
	out := e.removed
	e.removed = nil
	return out
}

// Discard silently drops a live track.  Used for anchor-forced merges where
// the newer of two reconciled tracks is discarded, its hypothesis lives on
// in the older track.
func (e *Engine) Discard(trackID int) {

	for i, t := range e.tracks {
		if t.GetTrackID() == trackID {
			e.tracks = append(e.tracks[:i], e.tracks[i+1:]...)
			return
		}
	}
}

// Predict advances every live track's motion model by one frame.
func (e *Engine) Predict() {
	for _, t := range e.tracks {
		t.predict()
	}
}

// Associate builds the cost matrix between predicted track positions and
// detections and solves the gated assignment.  No track state is mutated,
// a frame that fails here leaves the engine untouched.
//
// An empty detection set is not an error, every live track comes back
// unmatched and accumulates a miss in Update.
func (e *Engine) Associate(dets []Detection) (Assignment, error) {

	cost := e.costMatrix(dets)

	matches, unmatchedTracks, unmatchedDets, err := linearAssignment(
		cost, len(e.tracks), len(dets), e.cfg.MatchThresh)

	if err != nil {
		return Assignment{}, fmt.Errorf("assignment solve failed: %w", err)
	}

	return Assignment{
		Matches:             matches,
		UnmatchedTracks:     unmatchedTracks,
		UnmatchedDetections: unmatchedDets,
	}, nil
}

// Update commits an assignment for the frame: matched tracks take a hit and
// a motion correction, unmatched tracks take a miss and transition through
// the state machine, unmatched detections spawn Tentative tracks.  Returns
// the Confirmed tracks to emit.
//
// Motion corrections are staged for every match before any track is touched,
// a failure on any match returns with the whole track set unchanged.
func (e *Engine) Update(frameID int, dets []Detection, asg Assignment) ([]*Track, error) {

	staged := make([]stagedMotion, len(asg.Matches))

	for i, m := range asg.Matches {

		s, err := e.tracks[m[0]].stageUpdate(dets[m[1]])

		if err != nil {
			return nil, err
		}

		staged[i] = s
	}

	for i, m := range asg.Matches {
		e.tracks[m[0]].commitUpdate(staged[i], dets[m[1]], frameID, e.cfg.MinTrackLength)
	}

	// discarded collects tracks leaving the live set this frame
	discard := make(map[int]bool)

	for _, idx := range asg.UnmatchedTracks {

		track := e.tracks[idx]
		wasTentative := track.GetState() == Tentative

		track.miss()

		if wasTentative {
			// a tentative track that misses is dropped outright, it never
			// held an identity and never becomes Removed-visible
			discard[track.GetTrackID()] = true
			continue
		}

		if track.GetMisses() > e.bufferFrames {
			track.markRemoved()
			e.removed = append(e.removed, track)
			discard[track.GetTrackID()] = true
		}
	}

	if len(discard) > 0 {
		live := e.tracks[:0]

		for _, t := range e.tracks {
			if !discard[t.GetTrackID()] {
				live = append(live, t)
			}
		}

		e.tracks = live
	}

	for _, idx := range asg.UnmatchedDetections {
		e.nextTrackID++
		e.tracks = append(e.tracks, newTrack(dets[idx], frameID, e.nextTrackID))
	}

	e.enforcePlayerCap()

	var emitted []*Track

	for _, t := range e.tracks {
		if t.GetState() == Confirmed {
			emitted = append(emitted, t)
		}
	}

	sort.Slice(emitted, func(i, j int) bool {
		return emitted[i].GetTrackID() < emitted[j].GetTrackID()
	})

	return emitted, nil
}

// costMatrix computes the association cost between every live track and
// detection.  Costs live in [0,1]: 1-IoU, blended with the normalised foot
// point distance when foot based tracking is enabled, minus a tiny hit
// history discount that decides equal cost contests deterministically.
func (e *Engine) costMatrix(dets []Detection) [][]float32 {

	if len(e.tracks)*len(dets) == 0 {
		return nil
	}

	cost := make([][]float32, len(e.tracks))

	for ti, track := range e.tracks {

		cost[ti] = make([]float32, len(dets))
		rect := track.GetRect()

		hits := track.GetHits()

		if hits > hitBiasCap {
			hits = hitBiasCap
		}

		// shorter history pays a tiny premium so the established track wins
		// equal cost contests, the premium stays positive so costs never
		// clamp together at zero
		bias := hitBias * float32(hitBiasCap-hits)

		for di := range dets {

			c := 1 - dets[di].Rect.CalcIoU(*rect)

			if e.cfg.FootBasedTracking {
				c = iouWeight*c + footWeight*rect.FootDistance(
					dets[di].Rect, e.cfg.FrameWidth, e.cfg.FrameHeight)
			}

			cost[ti][di] = c + bias
		}
	}

	return cost
}

// enforcePlayerCap drops lowest confidence tracks first once the live set
// exceeds MaxPlayers.  Confirmed casualties pass through Lost to Removed so
// their identity can still be rescued.
func (e *Engine) enforcePlayerCap() {

	if e.cfg.MaxPlayers <= 0 || len(e.tracks) <= e.cfg.MaxPlayers {
		return
	}

	byScore := make([]*Track, len(e.tracks))
	copy(byScore, e.tracks)

	// lowest score first, newest track first among equals
	sort.Slice(byScore, func(i, j int) bool {
		if byScore[i].GetScore() != byScore[j].GetScore() {
			return byScore[i].GetScore() < byScore[j].GetScore()
		}
		return byScore[i].GetTrackID() > byScore[j].GetTrackID()
	})

	drop := make(map[int]bool)

	for _, t := range byScore[:len(e.tracks)-e.cfg.MaxPlayers] {

		if t.GetState() == Tentative {
			drop[t.GetTrackID()] = true
			continue
		}

		if t.GetState() == Confirmed {
			t.miss()
		}

		t.markRemoved()
		e.removed = append(e.removed, t)
		drop[t.GetTrackID()] = true
	}

	live := e.tracks[:0]

	for _, t := range e.tracks {
		if !drop[t.GetTrackID()] {
			live = append(live, t)
		}
	}

	e.tracks = live
}
