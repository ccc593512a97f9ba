package pitchtrack

import (
	"testing"
)

func TestAdaptiveThresholdDisabled(t *testing.T) {

	cfg := DefaultConfig()
	cfg.AdaptiveConfidence = false

	stats := FrameStats{Brightness: 0.1, Contrast: 0.1}

	got := AdaptiveThreshold(stats, 0.5, &cfg)

	if got != 0.5 {
		t.Errorf("expected base threshold 0.5 unchanged, got %f", got)
	}
}

func TestAdaptiveThreshold(t *testing.T) {

	cfg := DefaultConfig()
	cfg.AdaptiveConfidence = true
	cfg.AdaptiveRange = 0.15

	tests := []struct {
		name  string
		stats FrameStats
		base  float32
		want  float32
	}{
		{
			name:  "reference conditions leave base unchanged",
			stats: FrameStats{Brightness: 0.5, Contrast: 0.4},
			base:  0.5,
			want:  0.5,
		},
		{
			name:  "dark frame relaxes threshold",
			stats: FrameStats{Brightness: 0.2, Contrast: 0.4},
			base:  0.5,
			want:  0.41,
		},
		{
			name:  "flat frame tightens threshold",
			stats: FrameStats{Brightness: 0.5, Contrast: 0.2},
			base:  0.5,
			want:  0.6,
		},
		{
			name:  "adjustment clamped to adaptive range",
			stats: FrameStats{Brightness: 0.0, Contrast: 0.4},
			base:  0.5,
			want:  0.35,
		},
		{
			name:  "result clamped to unit interval",
			stats: FrameStats{Brightness: 0.0, Contrast: 0.4},
			base:  0.1,
			want:  0.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			got := AdaptiveThreshold(tc.stats, tc.base, &cfg)

			if diff := got - tc.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("expected %f, got %f", tc.want, got)
			}
		})
	}
}

// TestAdaptiveThresholdMonotone checks a darker frame never produces a
// stricter threshold than a brighter one under equal contrast
func TestAdaptiveThresholdMonotone(t *testing.T) {

	cfg := DefaultConfig()
	cfg.AdaptiveConfidence = true
	cfg.AdaptiveRange = 0.2

	prev := float32(-1.0)

	for i := 0; i <= 20; i++ {
		b := float32(i) * 0.05

		got := AdaptiveThreshold(FrameStats{Brightness: b, Contrast: 0.4}, 0.5, &cfg)

		if got < prev {
			t.Fatalf("threshold decreased from %f to %f at brightness %f", prev, got, b)
		}

		prev = got
	}
}
