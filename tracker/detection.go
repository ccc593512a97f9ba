package tracker

import (
	"math"
)

// Detection is one per-frame observation from the external detector.
// Immutable once produced.
type Detection struct {
	// Rect is the bounding box in pixel coordinates
	Rect Rect
	// Score is the detector confidence in [0,1]
	Score float32
	// Class is the detector class label, see pitchtrack.PersonClass
	Class int
	// Embedding is an optional appearance embedding when extraction is
	// colocated with detection
	Embedding []float32
	// Frame is the frame index this observation belongs to
	Frame int
}

// NewDetection is a constructor for the Detection struct
func NewDetection(rect Rect, score float32, class int, frame int) Detection {
	return Detection{
		Rect:  rect,
		Score: score,
		Class: class,
		Frame: frame,
	}
}

// WithEmbedding returns a copy of the detection carrying an appearance
// embedding
func (d Detection) WithEmbedding(feat []float32) Detection {
	d.Embedding = feat
	return d
}

// Valid reports whether a detection is well formed: finite confidence in
// [0,1], a positive-area box that lies inside the frame.  Malformed
// detections are dropped before filtering and never abort the frame.
func (d *Detection) Valid(frameWidth, frameHeight int) bool {

	score := float64(d.Score)

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return false
	}

	if d.Score < 0 || d.Score > 1 {
		return false
	}

	if d.Rect.Width() <= 0 || d.Rect.Height() <= 0 {
		return false
	}

	for _, v := range d.Rect.Tlwh {
		f := float64(v)

		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	if d.Rect.BRX() < 0 || d.Rect.BRY() < 0 {
		return false
	}

	if d.Rect.TLX() > float32(frameWidth) || d.Rect.TLY() > float32(frameHeight) {
		return false
	}

	return true
}
