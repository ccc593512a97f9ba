package pitchtrack

const (
	// brightnessMidpoint is the luminance below which a scene is considered
	// dark and the threshold starts relaxing
	brightnessMidpoint = 0.5
	// contrastReference is the luminance spread below which a scene is
	// considered flat and the threshold starts tightening
	contrastReference = 0.4
	// brightnessGain scales how fast the threshold relaxes with darkness
	brightnessGain = 0.3
	// contrastGain scales how fast the threshold tightens with flatness
	contrastGain = 0.5
)

// AdaptiveThreshold computes the detection acceptance threshold for one
// frame from its image statistics.  Dark scenes relax the threshold so low
// confidence detections survive, low contrast scenes tighten it to reject
// noise.  The adjustment is clamped to base +/- cfg.AdaptiveRange and the
// result to [0,1], the filter can never fully disable or saturate detection.
// Pure function of its inputs.
//
// When cfg.AdaptiveConfidence is disabled the base threshold is returned
// unchanged.
func AdaptiveThreshold(stats FrameStats, base float32, cfg *Config) float32 {

	if !cfg.AdaptiveConfidence {
		return base
	}

	var adjust float32

	if stats.Brightness < brightnessMidpoint {
		adjust -= (brightnessMidpoint - stats.Brightness) * brightnessGain
	}

	if stats.Contrast < contrastReference {
		adjust += (contrastReference - stats.Contrast) * contrastGain
	}

	if adjust > cfg.AdaptiveRange {
		adjust = cfg.AdaptiveRange
	} else if adjust < -cfg.AdaptiveRange {
		adjust = -cfg.AdaptiveRange
	}

	return clamp01(base + adjust)
}
