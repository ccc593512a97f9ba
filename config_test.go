package pitchtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero frame rate",
			mutate:  func(c *Config) { c.FrameRate = 0 },
			wantErr: "frame rate",
		},
		{
			name:    "negative frame width",
			mutate:  func(c *Config) { c.FrameWidth = -1 },
			wantErr: "frame dimensions",
		},
		{
			name:    "zero nth frame stride",
			mutate:  func(c *Config) { c.ProcessEveryNthFrame = 0 },
			wantErr: "process every nth frame",
		},
		{
			name:    "confidence threshold above one",
			mutate:  func(c *Config) { c.ConfidenceThreshold = 1.5 },
			wantErr: "confidence threshold",
		},
		{
			name:    "adaptive range too wide",
			mutate:  func(c *Config) { c.AdaptiveRange = 0.6 },
			wantErr: "adaptive range",
		},
		{
			name:    "negative reid threshold",
			mutate:  func(c *Config) { c.ReIDSimilarityThreshold = -0.1 },
			wantErr: "reid similarity threshold",
		},
		{
			name:    "negative embedding dimension",
			mutate:  func(c *Config) { c.EmbeddingDim = -1 },
			wantErr: "embedding dimension",
		},
		{
			name:    "zero min track length",
			mutate:  func(c *Config) { c.MinTrackLength = 0 },
			wantErr: "min track length",
		},
		{
			name:    "no buffer configured",
			mutate:  func(c *Config) { c.TrackBufferSeconds = 0; c.TrackBuffer = 0 },
			wantErr: "track buffer",
		},
		{
			name:    "zero match threshold",
			mutate:  func(c *Config) { c.MatchThresh = 0 },
			wantErr: "match threshold",
		},
		{
			name:    "negative max players",
			mutate:  func(c *Config) { c.MaxPlayers = -1 },
			wantErr: "max players",
		},
		{
			name:    "zero anchor overlap",
			mutate:  func(c *Config) { c.AnchorOverlapThresh = 0 },
			wantErr: "anchor overlap",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			cfg := DefaultConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfigBufferFrames(t *testing.T) {

	tests := []struct {
		name    string
		seconds float32
		rate    int
		frames  int
		want    int
	}{
		{"two seconds at 30fps", 2.0, 30, 0, 60},
		{"half second at 25fps", 0.5, 25, 0, 12},
		{"seconds win over frame count", 1.0, 30, 90, 30},
		{"frame count fallback", 0, 30, 45, 45},
		{"sub frame window rounds up to one", 0.01, 30, 0, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			cfg := DefaultConfig()
			cfg.TrackBufferSeconds = tc.seconds
			cfg.FrameRate = tc.rate
			cfg.TrackBuffer = tc.frames

			assert.Equal(t, tc.want, cfg.BufferFrames())
		})
	}
}
