package tracker

import (
	"github.com/google/uuid"
)

// Anchor is a manually supplied ground truth assignment: at the given frame
// the box belongs to the given identity.  Anchors are read-only input, they
// re-label existing detections and never create phantom ones.
type Anchor struct {
	// Frame is the frame index the anchor applies to
	Frame int
	// Box is the anchored bounding box in pixel coordinates
	Box Rect
	// Identity is the ground truth gallery identity
	Identity uuid.UUID
}

// AnchorConflict records two anchors claiming the same box in the same
// frame.  The later declared anchor wins, the conflict is kept for external
// reporting.
type AnchorConflict struct {
	Frame  int
	Winner uuid.UUID
	Loser  uuid.UUID
}

// sameBoxIoU is the overlap above which two anchors in one frame are
// considered claims on the same box
const sameBoxIoU = 0.9

// AnchorSet indexes anchors by frame for the pipeline's override step.
type AnchorSet struct {
	byFrame   map[int][]Anchor
	conflicts []AnchorConflict
}

// NewAnchorSet builds a frame index over the supplied anchors.  When two
// anchors claim the same box in the same frame the later declared one wins
// and the conflict is recorded.
func NewAnchorSet(anchors []Anchor) *AnchorSet {

	set := &AnchorSet{
		byFrame: make(map[int][]Anchor),
	}

	for _, anchor := range anchors {

		kept := set.byFrame[anchor.Frame]
		replaced := false

		for i := range kept {
			if kept[i].Box.CalcIoU(anchor.Box) >= sameBoxIoU {
				set.conflicts = append(set.conflicts, AnchorConflict{
					Frame:  anchor.Frame,
					Winner: anchor.Identity,
					Loser:  kept[i].Identity,
				})
				kept[i] = anchor
				replaced = true
				break
			}
		}

		if !replaced {
			kept = append(kept, anchor)
		}

		set.byFrame[anchor.Frame] = kept
	}

	return set
}

// ForFrame returns the anchors declared for a frame, nil when none exist.
func (s *AnchorSet) ForFrame(frame int) []Anchor {
	return s.byFrame[frame]
}

// Conflicts returns every recorded same-box conflict for external
// reporting.
func (s *AnchorSet) Conflicts() []AnchorConflict {
	return s.conflicts
}

// Len returns the total anchor count across all frames.
func (s *AnchorSet) Len() int {

	n := 0

	for _, anchors := range s.byFrame {
		n += len(anchors)
	}

	return n
}
