package tracker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	pitchtrack "github.com/pitchvision/go-pitchtrack"
	"github.com/pitchvision/go-pitchtrack/reid"
)

// TrackOutput is one emitted per-frame track for rendering or GUI use.
type TrackOutput struct {
	// TrackID is the within-run track id
	TrackID int
	// Identity is the bound cross-video identity, uuid.Nil when unbound
	Identity uuid.UUID
	// Box is the bounding box in pixel coordinates
	Box Rect
	// State is the track lifecycle state at emission
	State State
	// Score is the confidence of the last matched detection
	Score float32
}

// Diagnostics holds pipeline counters since construction.
type Diagnostics struct {
	// FramesProcessed counts committed detection frames
	FramesProcessed int
	// FramesExtrapolated counts frames covered by motion extrapolation only
	FramesExtrapolated int
	// MalformedDetections counts detections dropped before filtering
	MalformedDetections int
	// FilteredDetections counts detections dropped by class or confidence
	FilteredDetections int
	// GallerySkips counts re-identification calls skipped over corrupt
	// embeddings
	GallerySkips int
	// IDSwitches counts identities re-bound to a different track while
	// substitutions are disabled
	IDSwitches int
	// AnchorOverrides counts identity assignments forced by anchors
	AnchorOverrides int
}

// Pipeline converts per-frame detections into identity-stamped tracks:
// validation, class and adaptive confidence filtering, motion association,
// gallery re-identification and the anchor override, in that order.  Frames
// are processed sequentially by a single writer, only the gallery snapshot
// and the frame cache are safe to touch from other goroutines.
type Pipeline struct {
	cfg          pitchtrack.Config
	backend      Associator
	gallery      *reid.Gallery
	anchors      *AnchorSet
	log          *slog.Logger
	bufferFrames int
	// boundTo maps identity to the track currently carrying it, for ID
	// switch accounting
	boundTo map[uuid.UUID]int
	diag    Diagnostics
}

// NewPipeline validates the configuration and builds a pipeline with the
// stock Engine backend.  Configuration errors are fatal here, before any
// frame is processed.
func NewPipeline(cfg pitchtrack.Config) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pipeline{
		cfg:          cfg,
		backend:      NewEngine(cfg),
		log:          slog.Default(),
		bufferFrames: cfg.BufferFrames(),
		boundTo:      make(map[uuid.UUID]int),
	}, nil
}

// UseBackend swaps the association strategy.  The stock Engine is replaced
// wholesale, live track state does not carry over.
func (p *Pipeline) UseBackend(backend Associator) {
	p.backend = backend
}

// UseGallery attaches the identity gallery the pipeline re-identifies
// against.  The gallery is owned by the caller, loaded at session start and
// flushed at session end.  A dimension mismatch between the configured
// detector embedding and a non-empty gallery is fatal here.
func (p *Pipeline) UseGallery(g *reid.Gallery) error {

	if p.cfg.EmbeddingDim > 0 && g.Dim() > 0 && g.Dim() != p.cfg.EmbeddingDim {
		return fmt.Errorf("gallery dimension %d does not match configured embedding dimension %d",
			g.Dim(), p.cfg.EmbeddingDim)
	}

	p.gallery = g

	return nil
}

// UseAnchors attaches manually supplied ground truth assignments.  Declared
// conflicts are logged once here and remain available through the set's
// Conflicts method.
func (p *Pipeline) UseAnchors(set *AnchorSet) {

	p.anchors = set

	for _, c := range set.Conflicts() {
		p.log.Warn("anchor conflict, later declaration wins",
			"frame", c.Frame, "winner", c.Winner, "loser", c.Loser)
	}
}

// SetLogger replaces the pipeline logger, defaults to slog.Default().
func (p *Pipeline) SetLogger(log *slog.Logger) {
	p.log = log
}

// Diagnostics returns a copy of the pipeline counters.
func (p *Pipeline) Diagnostics() Diagnostics {
	return p.diag
}

// ShouldDetect reports whether a frame index is due for detection under the
// ProcessEveryNthFrame setting.  Frames in between go through Extrapolate.
func (p *Pipeline) ShouldDetect(frame int) bool {
	return frame%p.cfg.ProcessEveryNthFrame == 0
}

// Extrapolate covers a frame without detector output: every live track's
// motion is advanced and confirmed tracks are emitted at their predicted
// positions.  No misses accumulate, the state machine does not move.
func (p *Pipeline) Extrapolate(frame int) []TrackOutput {

	p.backend.Predict()
	p.diag.FramesExtrapolated++

	var out []TrackOutput

	for _, t := range p.backend.Tracks() {
		if t.GetState() == Confirmed {
			out = append(out, p.output(t))
		}
	}

	return out
}

// Process runs one detection frame through the full pipeline and returns
// the emitted track list.  Per-frame errors are contained: on failure the
// frame is skipped and prior state is untouched, no error unwinds past the
// frame.
func (p *Pipeline) Process(frame int, dets []Detection,
	stats pitchtrack.FrameStats) ([]TrackOutput, error) {

	// validation and filtering precede any state mutation, and the engine
	// stages all motion corrections before committing any.  A frame that
	// fails after this point has only advanced track prediction, the same
	// motion extrapolation a skipped frame commits, never any
	// detection-derived state
	filtered := p.filterDetections(dets, stats)

	p.backend.Predict()

	asg, err := p.backend.Associate(filtered)

	if err != nil {
		return nil, fmt.Errorf("frame %d skipped: %w", frame, err)
	}

	emitted, err := p.backend.Update(frame, filtered, asg)

	if err != nil {
		return nil, fmt.Errorf("frame %d skipped: %w", frame, err)
	}

	if p.cfg.UseReID && p.gallery != nil {
		p.reidentify(frame, emitted)
	} else {
		// no identity consumer, drain removed tracks so they cannot pile up
		// for the lifetime of the run
		p.backend.TakeRemoved()
	}

	if p.anchors != nil {
		emitted = p.applyAnchors(frame, emitted)
	}

	p.diag.FramesProcessed++

	out := make([]TrackOutput, 0, len(emitted))

	for _, t := range emitted {
		out = append(out, p.output(t))
	}

	return out, nil
}

// GallerySnapshot returns a deep copy of the identity gallery for
// cross-video persistence, nil when no gallery is attached.  Safe to call
// concurrently with processing.
func (p *Pipeline) GallerySnapshot() []reid.Identity {

	if p.gallery == nil {
		return nil
	}

	return p.gallery.Snapshot()
}

// filterDetections drops malformed input, applies the class filter and the
// adaptive confidence threshold.
func (p *Pipeline) filterDetections(dets []Detection,
	stats pitchtrack.FrameStats) []Detection {

	threshold := pitchtrack.AdaptiveThreshold(stats,
		p.cfg.ConfidenceThreshold, &p.cfg)

	filtered := make([]Detection, 0, len(dets))

	for _, det := range dets {

		if !det.Valid(p.cfg.FrameWidth, p.cfg.FrameHeight) {
			p.diag.MalformedDetections++
			continue
		}

		if det.Class != pitchtrack.PersonClass &&
			!(p.cfg.TrackReferees && det.Class == pitchtrack.RefereeClass) {
			p.diag.FilteredDetections++
			continue
		}

		// hard filter, not a weighting
		if det.Score < threshold {
			p.diag.FilteredDetections++
			continue
		}

		filtered = append(filtered, det)
	}

	return filtered
}

// reidentify runs the gallery matching pass: newly confirmed tracks without
// an identity resolve against the gallery, bound confirmed tracks refresh
// their identity's embedding, removed tracks get a last-chance rescue and
// long lost tracks attempt early recovery.
func (p *Pipeline) reidentify(frame int, emitted []*Track) {

	for _, t := range emitted {

		if !t.HasFeatures() {
			continue
		}

		if t.GetIdentity() == uuid.Nil {

			id, _, err := p.gallery.Resolve(t.SmoothedFeature(), frame)

			if err != nil {
				p.gallerySkip(t, err)
				continue
			}

			t.BindIdentity(id)
			p.recordBinding(id, t.GetTrackID())
			continue
		}

		if err := p.gallery.Refresh(t.GetIdentity(), t.SmoothedFeature(), frame); err != nil {
			p.gallerySkip(t, err)
		}
	}

	// last chance rescue for tracks leaving the run, their appearance must
	// survive in the gallery so a future track can re-bind
	for _, t := range p.backend.TakeRemoved() {

		if !t.HasFeatures() {
			continue
		}

		var err error

		if t.GetIdentity() != uuid.Nil {
			err = p.gallery.Refresh(t.GetIdentity(), t.SmoothedFeature(), frame)
		} else {
			_, _, err = p.gallery.Resolve(t.SmoothedFeature(), frame)
		}

		if err != nil {
			p.gallerySkip(t, err)
		}
	}

	// early recovery for unbound tracks deep into the buffer window
	for _, t := range p.backend.Tracks() {

		if t.GetState() != Lost || t.GetIdentity() != uuid.Nil ||
			!t.HasFeatures() || t.GetMisses() <= p.bufferFrames/2 {
			continue
		}

		if id, _, ok := p.gallery.Lookup(t.SmoothedFeature()); ok {
			t.BindIdentity(id)
			p.recordBinding(id, t.GetTrackID())
		}
	}
}

// gallerySkip logs a skipped re-identification call.  Corrupt embeddings
// are fatal for that call only, the track stays unbound and the pipeline
// continues.
func (p *Pipeline) gallerySkip(t *Track, err error) {

	p.diag.GallerySkips++

	if errors.Is(err, reid.ErrDimensionMismatch) {
		p.log.Warn("gallery call skipped", "track", t.GetTrackID(), "err", err)
	} else {
		p.log.Error("gallery call failed", "track", t.GetTrackID(), "err", err)
	}
}

// recordBinding tracks which track carries each identity and counts ID
// switches when substitutions are disabled.
func (p *Pipeline) recordBinding(id uuid.UUID, trackID int) {

	if prev, ok := p.boundTo[id]; ok && prev != trackID {
		if !p.cfg.EnableSubstitutions {
			p.diag.IDSwitches++
			p.log.Warn("identity switched tracks",
				"identity", id, "from", prev, "to", trackID)
		}
	}

	p.boundTo[id] = trackID
}

// applyAnchors enforces ground truth assignments for the frame.  An anchor
// overrides whatever automatic matching produced for the overlapping
// detection, if its identity currently belongs to a different live track
// the two tracks are merged with the older track id surviving.
func (p *Pipeline) applyAnchors(frame int, emitted []*Track) []*Track {

	for _, anchor := range p.anchors.ForFrame(frame) {

		target := bestAnchorTarget(emitted, anchor, p.cfg.AnchorOverlapThresh)

		if target == nil {
			// anchors never create detections where none exist
			continue
		}

		holder := p.findIdentityHolder(anchor.Identity, target)

		if holder == nil {
			target.BindIdentity(anchor.Identity)
			p.recordBinding(anchor.Identity, target.GetTrackID())
			p.diag.AnchorOverrides++
			continue
		}

		// two tracks claim one identity, reconcile them.  The older track
		// id is retained and adopts the anchored detection's motion, the
		// newer track is discarded
		survivor, discarded := holder, target

		if target.GetStartFrameID() < holder.GetStartFrameID() ||
			(target.GetStartFrameID() == holder.GetStartFrameID() &&
				target.GetTrackID() < holder.GetTrackID()) {
			survivor, discarded = target, holder
		}

		if survivor != target {
			survivor.adoptMotion(target)
		}

		survivor.absorbFeatures(discarded)
		survivor.BindIdentity(anchor.Identity)
		p.backend.Discard(discarded.GetTrackID())
		p.recordBinding(anchor.Identity, survivor.GetTrackID())
		p.diag.AnchorOverrides++

		emitted = swapEmitted(emitted, discarded, survivor)
	}

	return emitted
}

// findIdentityHolder returns the live track other than target currently
// bound to the identity, nil when none.
func (p *Pipeline) findIdentityHolder(id uuid.UUID, target *Track) *Track {

	for _, t := range p.backend.Tracks() {
		if t != target && t.GetIdentity() == id {
			return t
		}
	}

	return nil
}

// output converts a track to its emitted form
func (p *Pipeline) output(t *Track) TrackOutput {

	rect := t.GetRect()

	return TrackOutput{
		TrackID:  t.GetTrackID(),
		Identity: t.GetIdentity(),
		Box:      NewRect(rect.X(), rect.Y(), rect.Width(), rect.Height()),
		State:    t.GetState(),
		Score:    t.GetScore(),
	}
}

// bestAnchorTarget finds the emitted track with the highest overlap against
// the anchor box, nil when nothing clears the overlap threshold.
func bestAnchorTarget(emitted []*Track, anchor Anchor, thresh float32) *Track {

	var best *Track
	bestIoU := thresh

	for _, t := range emitted {

		iou := t.GetRect().CalcIoU(anchor.Box)

		if iou >= bestIoU {
			best = t
			bestIoU = iou
		}
	}

	return best
}

// swapEmitted replaces a discarded track in the emitted list with its merge
// survivor, dropping a duplicate if the survivor is already present.
func swapEmitted(emitted []*Track, discarded, survivor *Track) []*Track {

	out := emitted[:0]
	present := false

	for _, t := range emitted {
		if t == survivor {
			present = true
		}
	}

	for _, t := range emitted {

		if t == discarded {
			if !present {
				out = append(out, survivor)
			}
			continue
		}

		out = append(out, t)
	}

	return out
}
