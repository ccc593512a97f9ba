package pitchtrack

import (
	"fmt"
)

// PersonClass is the detector class label for field players.  Detections
// carrying any other class are excluded from tracking unless TrackReferees
// is enabled.
const PersonClass = 0

// RefereeClass is the detector class label for referees and other non-player
// people on the field.
const RefereeClass = 1

// Config enumerates every option recognised by the tracking pipeline.  All
// values are validated once at pipeline construction, out of range values
// are fatal there and then, never mid-video.
type Config struct {
	// FrameRate is the video frame rate used to convert TrackBufferSeconds
	// into a frame count
	FrameRate int
	// FrameWidth and FrameHeight are the video dimensions in pixels.  All
	// association costs operate in [0,1] space after boxes are scaled by
	// these, so behaviour is resolution independent
	FrameWidth  int
	FrameHeight int
	// ProcessEveryNthFrame runs detection every Nth frame only, intermediate
	// frames extrapolate track motion.  1 processes every frame
	ProcessEveryNthFrame int
	// ConfidenceThreshold is the base detection acceptance threshold fed to
	// the adaptive confidence filter
	ConfidenceThreshold float32
	// AdaptiveConfidence enables dynamic threshold adjustment from frame
	// brightness and contrast statistics
	AdaptiveConfidence bool
	// AdaptiveRange bounds the adaptive adjustment to base +/- this value
	// so the filter can never fully disable or saturate detection
	AdaptiveRange float32
	// FootBasedTracking switches association geometry from box centroid to
	// the bottom-center foot point, appropriate for ground plane sports
	// tracking
	FootBasedTracking bool
	// UseReID enables re-identification against the gallery
	UseReID bool
	// ReIDSimilarityThreshold is the hard cosine similarity cutoff for a
	// gallery match.  A missed match creates a duplicate identity which a
	// later anchor can correct, a wrong merge corrupts the gallery silently,
	// so the threshold errs toward false negatives
	ReIDSimilarityThreshold float32
	// EmbeddingDim is the appearance embedding vector length the detector
	// supplies.  Zero disables dimension checking at construction
	EmbeddingDim int
	// MinTrackLength is the number of consecutive hits before a tentative
	// track is confirmed
	MinTrackLength int
	// TrackBufferSeconds is how long a lost track is retained before removal.
	// When zero, TrackBuffer is used directly as a frame count
	TrackBufferSeconds float32
	// TrackBuffer is the lost track retention window in frames, used when
	// TrackBufferSeconds is zero
	TrackBuffer int
	// MatchThresh is the association cost gate, pairs costing more than this
	// are treated as unmatched even if the assignment is otherwise optimal
	MatchThresh float32
	// MaxPlayers caps concurrently tracked field entities.  Lowest confidence
	// tracks are dropped first when exceeded.  Zero means no cap
	MaxPlayers int
	// TrackReferees includes referee class detections in tracking
	TrackReferees bool
	// EnableSubstitutions allows an identity to be re-bound to a new track
	// mid-video without an ID switch being reported
	EnableSubstitutions bool
	// AnchorOverlapThresh is the minimum overlap between an anchor box and a
	// detection for the anchor identity to override automatic matching
	AnchorOverlapThresh float32
}

// DefaultConfig returns a Config with working defaults for 1080p soccer
// footage at 30fps.  MinTrackLength defaults to 3 and
// ReIDSimilarityThreshold to 0.6.
func DefaultConfig() Config {
	return Config{
		FrameRate:               30,
		FrameWidth:              1920,
		FrameHeight:             1080,
		ProcessEveryNthFrame:    1,
		ConfidenceThreshold:     0.5,
		AdaptiveConfidence:      true,
		AdaptiveRange:           0.15,
		FootBasedTracking:       true,
		UseReID:                 true,
		ReIDSimilarityThreshold: 0.6,
		EmbeddingDim:            512,
		MinTrackLength:          3,
		TrackBufferSeconds:      2.0,
		MatchThresh:             0.8,
		MaxPlayers:              0,
		TrackReferees:           false,
		EnableSubstitutions:     false,
		AnchorOverlapThresh:     0.8,
	}
}

// Validate checks all option ranges.  Returns the first violation found.
func (c *Config) Validate() error {

	if c.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", c.FrameRate)
	}

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d",
			c.FrameWidth, c.FrameHeight)
	}

	if c.ProcessEveryNthFrame < 1 {
		return fmt.Errorf("process every nth frame must be >= 1, got %d",
			c.ProcessEveryNthFrame)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %f",
			c.ConfidenceThreshold)
	}

	if c.AdaptiveRange < 0 || c.AdaptiveRange > 0.5 {
		return fmt.Errorf("adaptive range must be in [0,0.5], got %f",
			c.AdaptiveRange)
	}

	if c.ReIDSimilarityThreshold < 0 || c.ReIDSimilarityThreshold > 1 {
		return fmt.Errorf("reid similarity threshold must be in [0,1], got %f",
			c.ReIDSimilarityThreshold)
	}

	if c.EmbeddingDim < 0 {
		return fmt.Errorf("embedding dimension must not be negative, got %d",
			c.EmbeddingDim)
	}

	if c.MinTrackLength < 1 {
		return fmt.Errorf("min track length must be >= 1, got %d",
			c.MinTrackLength)
	}

	if c.TrackBufferSeconds < 0 {
		return fmt.Errorf("track buffer seconds must not be negative, got %f",
			c.TrackBufferSeconds)
	}

	if c.TrackBufferSeconds == 0 && c.TrackBuffer <= 0 {
		return fmt.Errorf("either track buffer seconds or track buffer frames must be set")
	}

	if c.MatchThresh <= 0 || c.MatchThresh > 1 {
		return fmt.Errorf("match threshold must be in (0,1], got %f",
			c.MatchThresh)
	}

	if c.MaxPlayers < 0 {
		return fmt.Errorf("max players must not be negative, got %d",
			c.MaxPlayers)
	}

	if c.AnchorOverlapThresh <= 0 || c.AnchorOverlapThresh > 1 {
		return fmt.Errorf("anchor overlap threshold must be in (0,1], got %f",
			c.AnchorOverlapThresh)
	}

	return nil
}

// BufferFrames returns the lost track retention window in frames, derived
// from TrackBufferSeconds and the frame rate, or TrackBuffer directly when
// no time based value is configured.
func (c *Config) BufferFrames() int {

	if c.TrackBufferSeconds > 0 {
		frames := int(c.TrackBufferSeconds * float32(c.FrameRate))

		if frames < 1 {
			frames = 1
		}

		return frames
	}

	return c.TrackBuffer
}
