package tracker

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/pitchvision/go-pitchtrack/reid"
)

// State represents the lifecycle state of a track
type State int

const (
	// Tentative is a newly spawned track awaiting confirmation
	Tentative State = 0
	// Confirmed is a stable track with sufficient consecutive hits
	Confirmed State = 1
	// Lost is a confirmed track that missed its detection and is coasting
	// inside the buffer window
	Lost State = 2
	// Removed is terminal, a removed track is never revived.  A new track
	// takes over, optionally re-bound to the same identity through Re-ID
	Removed State = 3
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Confirmed:
		return "confirmed"
	case Lost:
		return "lost"
	case Removed:
		return "removed"
	}

	return "unknown"
}

// featureQueueSize is the bounded appearance history length kept per track
const featureQueueSize = 30

// featureAlpha is the EMA weight for the smoothed appearance embedding
const featureAlpha = 0.9

// Track is a persistent hypothesis about one physical player.  Owned
// exclusively by the association engine and mutated only through its
// per-frame update step.
type Track struct {
	// kalmanFilter is the motion model used for position prediction
	kalmanFilter *KalmanFilter
	// mean is the motion state vector, position and velocity estimates
	mean StateMean
	// covariance matrix of the motion state
	covariance StateCov
	// rect is the current bounding box in pixel coordinates
	rect Rect
	// state is the current lifecycle state
	state State
	// score is the confidence of the last matched detection
	score float32
	// trackID is unique for the run and never reused
	trackID int
	// identity is the bound gallery identity, uuid.Nil when unbound
	identity uuid.UUID
	// hits counts consecutive successful associations
	hits int
	// misses counts consecutive frames without an association
	misses int
	// frameID is the last frame this track was updated on
	frameID int
	// startFrameID is the frame the track was spawned on
	startFrameID int
	// feature is the latest normalized appearance embedding
	feature []float32
	// smoothFeature is the EMA smoothed appearance embedding
	smoothFeature []float32
	// featureQueue is a bounded ring of recent embeddings
	featureQueue [][]float32
}

// newTrack spawns a Tentative track from an unmatched detection.  The first
// detection counts as the first hit.
func newTrack(det Detection, frameID, trackID int) *Track {

	t := &Track{
		kalmanFilter: NewKalmanFilter(1.0/20, 1.0/160),
		mean:         make(StateMean, 8),
		covariance:   StateCov{mat.NewDense(8, 8, nil)},
		rect:         NewRect(det.Rect.X(), det.Rect.Y(), det.Rect.Width(), det.Rect.Height()),
		state:        Tentative,
		score:        det.Score,
		trackID:      trackID,
		identity:     uuid.Nil,
		hits:         1,
		frameID:      frameID,
		startFrameID: frameID,
	}

	t.kalmanFilter.Initiate(t.mean, &t.covariance, DetectBox(t.rect.GetXyah()))
	t.updateFeatures(det.Embedding)

	return t
}

// GetRect returns the current bounding box
func (t *Track) GetRect() *Rect {
	return &t.rect
}

// GetState returns the current lifecycle state
func (t *Track) GetState() State {
	return t.state
}

// GetScore returns the confidence of the last matched detection
func (t *Track) GetScore() float32 {
	return t.score
}

// GetTrackID returns the unique ID for the track
func (t *Track) GetTrackID() int {
	return t.trackID
}

// GetIdentity returns the bound gallery identity, uuid.Nil when unbound
func (t *Track) GetIdentity() uuid.UUID {
	return t.identity
}

// BindIdentity binds the track to a gallery identity.  A track holds at
// most one identity binding at a time, rebinding replaces the previous one.
func (t *Track) BindIdentity(id uuid.UUID) {
	t.identity = id
}

// GetFrameID returns the frame the track was last updated on
func (t *Track) GetFrameID() int {
	return t.frameID
}

// GetStartFrameID returns the frame the track was spawned on
func (t *Track) GetStartFrameID() int {
	return t.startFrameID
}

// GetHits returns the consecutive hit count
func (t *Track) GetHits() int {
	return t.hits
}

// GetMisses returns the consecutive miss count
func (t *Track) GetMisses() int {
	return t.misses
}

// HasFeatures reports whether the track has any appearance history
func (t *Track) HasFeatures() bool {
	return len(t.featureQueue) > 0
}

// predict advances the motion model one frame.  The velocity estimate is
// only refined on hits, during misses the height velocity is pinned so a
// coasting box does not balloon.
func (t *Track) predict() {

	if t.state != Confirmed {
		t.mean[7] = 0
	}

	t.kalmanFilter.Predict(t.mean, &t.covariance)
	t.updateRect()
}

// stagedMotion is a motion correction computed for a matched detection but
// not yet applied to the track.
type stagedMotion struct {
	mean       StateMean
	covariance StateCov
}

// stageUpdate computes the motion correction for a matched detection without
// mutating the track, so the engine can validate every match in a frame
// before committing any of them.
func (t *Track) stageUpdate(det Detection) (stagedMotion, error) {

	mean := make(StateMean, 8)
	copy(mean, t.mean)
	cov := StateCov{mat.DenseCopyOf(t.covariance.Dense)}

	err := t.kalmanFilter.Update(mean, &cov, DetectBox(det.Rect.GetXyah()))

	if err != nil {
		return stagedMotion{}, fmt.Errorf("error updating track %d: %w", t.trackID, err)
	}

	return stagedMotion{mean: mean, covariance: cov}, nil
}

// commitUpdate applies a staged motion correction and the matched detection
// to the track: hit bookkeeping and the Tentative->Confirmed /
// Lost->Confirmed transitions.  minTrackLength is the consecutive hits
// required for confirmation.
func (t *Track) commitUpdate(staged stagedMotion, det Detection, frameID, minTrackLength int) {

	t.mean = staged.mean
	t.covariance = staged.covariance
	t.updateRect()

	t.hits++
	t.misses = 0
	t.score = det.Score
	t.frameID = frameID

	switch t.state {
	case Tentative:
		if t.hits >= minTrackLength {
			t.state = Confirmed
		}

	case Lost:
		// re-matched inside the buffer window
		t.state = Confirmed
	}

	t.updateFeatures(det.Embedding)
}

// miss records a frame without an association.  Confirmed drops to Lost
// after a single miss, the engine decides Lost->Removed against the buffer
// window.
func (t *Track) miss() {

	t.hits = 0
	t.misses++

	if t.state == Confirmed {
		t.state = Lost
	}
}

// markRemoved moves the track to its terminal state
func (t *Track) markRemoved() {
	t.state = Removed
}

// updateRect updates the bounding box from the motion state mean
func (t *Track) updateRect() {
	t.rect.SetWidth(t.mean[2] * t.mean[3])
	t.rect.SetHeight(t.mean[3])
	t.rect.SetX(t.mean[0] - t.rect.Width()/2)
	t.rect.SetY(t.mean[1] - t.rect.Height()/2)
}

// updateFeatures folds a new appearance embedding into the bounded history
// and the EMA smoothed signature.  Nil embeddings are ignored.
func (t *Track) updateFeatures(feat []float32) {

	if len(feat) == 0 {
		return
	}

	normFeat := reid.NormalizeVec(feat)
	t.feature = normFeat

	if t.smoothFeature == nil {
		t.smoothFeature = make([]float32, len(normFeat))
		copy(t.smoothFeature, normFeat)

	} else if len(t.smoothFeature) == len(normFeat) {
		for i := range normFeat {
			t.smoothFeature[i] = featureAlpha*t.smoothFeature[i] + (1-featureAlpha)*normFeat[i]
		}
		t.smoothFeature = reid.NormalizeVec(t.smoothFeature)
	}

	t.featureQueue = append(t.featureQueue, normFeat)

	if len(t.featureQueue) > featureQueueSize {
		t.featureQueue = t.featureQueue[1:]
	}
}

// SmoothedFeature returns the EMA smoothed appearance embedding over the
// track's recent history, nil when no embeddings were ever observed.
func (t *Track) SmoothedFeature() []float32 {
	return t.smoothFeature
}

// adoptMotion takes over another track's motion state, box and score.  Used
// when an anchor merge keeps this track's id but the discarded track held
// the anchored detection.  A Lost survivor comes back Confirmed, it has a
// fresh observation again.
func (t *Track) adoptMotion(other *Track) {

	copy(t.mean, other.mean)
	t.covariance = StateCov{mat.DenseCopyOf(other.covariance.Dense)}
	t.rect = NewRect(other.rect.X(), other.rect.Y(), other.rect.Width(), other.rect.Height())
	t.score = other.score
	t.frameID = other.frameID
	t.misses = 0

	if t.state == Lost || t.state == Tentative {
		t.state = Confirmed
	}
}

// absorbFeatures merges another track's appearance history into this one,
// used when an anchor forces two tracks to reconcile.  The histories are
// concatenated within the ring bound and the smoothed signatures averaged.
func (t *Track) absorbFeatures(other *Track) {

	for _, f := range other.featureQueue {
		t.featureQueue = append(t.featureQueue, f)

		if len(t.featureQueue) > featureQueueSize {
			t.featureQueue = t.featureQueue[1:]
		}
	}

	if other.smoothFeature == nil {
		return
	}

	if t.smoothFeature == nil || len(t.smoothFeature) != len(other.smoothFeature) {
		t.smoothFeature = reid.NormalizeVec(other.smoothFeature)
		return
	}

	for i := range t.smoothFeature {
		t.smoothFeature[i] = (t.smoothFeature[i] + other.smoothFeature[i]) / 2
	}

	t.smoothFeature = reid.NormalizeVec(t.smoothFeature)
}
