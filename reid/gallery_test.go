package reid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embAxis(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// blend returns a normalized mix of two axes so similarity against either
// axis lands between 0 and 1
func blend(dim, axisA, axisB int, weightA float32) []float32 {
	v := make([]float32, dim)
	v[axisA] = weightA
	v[axisB] = 1 - weightA
	return NormalizeVec(v)
}

func TestGalleryResolveCreatesAndMatches(t *testing.T) {

	g := NewGallery(0.6, 8)

	id1, created, err := g.Resolve(embAxis(8, 0), 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uuid.Nil, id1)
	assert.Equal(t, 1, g.Len())

	// same appearance matches, does not duplicate
	id2, created, err := g.Resolve(embAxis(8, 0), 5)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, g.Len())

	// orthogonal appearance mints a new identity
	id3, created, err := g.Resolve(embAxis(8, 1), 7)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 2, g.Len())
}

func TestGalleryEMARefresh(t *testing.T) {

	g := NewGallery(0.6, 4)

	id, _, err := g.Resolve(embAxis(4, 0), 1)
	require.NoError(t, err)

	// a single off observation must not overwrite the stored signature
	require.NoError(t, g.Refresh(id, blend(4, 0, 1, 0.6), 2))

	snap := g.Snapshot()
	require.Len(t, snap, 1)

	// signature still dominated by the original axis
	assert.Greater(t, snap[0].Embedding[0], snap[0].Embedding[1])
	assert.Equal(t, 2, snap[0].LastSeenFrame)
}

func TestGalleryTieResolvesToRecency(t *testing.T) {

	g := NewGallery(0.3, 4)

	idOld, _, err := g.Resolve(embAxis(4, 0), 1)
	require.NoError(t, err)

	idRecent, _, err := g.Resolve(embAxis(4, 1), 10)
	require.NoError(t, err)

	require.NotEqual(t, idOld, idRecent)

	// equidistant probe, both identities score identically
	probe := blend(4, 0, 1, 0.5)

	matched, _, err := g.Resolve(probe, 11)
	require.NoError(t, err)
	assert.Equal(t, idRecent, matched, "tie must resolve to the most recently seen identity")
}

func TestGalleryDimensionMismatch(t *testing.T) {

	g := NewGallery(0.6, 8)

	_, _, err := g.Resolve([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, g.Len(), "corrupt embedding must not enter the gallery")

	_, _, err = g.Resolve(nil, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGallerySnapshotIsDeepCopy(t *testing.T) {

	g := NewGallery(0.6, 4)

	_, _, err := g.Resolve(embAxis(4, 0), 1)
	require.NoError(t, err)

	snap := g.Snapshot()
	require.Len(t, snap, 1)

	// mutating the snapshot must not touch the gallery
	snap[0].Embedding[0] = -99

	again := g.Snapshot()
	assert.InDelta(t, 1.0, float64(again[0].Embedding[0]), 1e-6)
}

// TestGalleryLookupNonMutating checks Lookup reports the best match and its
// similarity without refreshing anything
func TestGalleryLookupNonMutating(t *testing.T) {

	g := NewGallery(0.6, 4)

	id, _, err := g.Resolve(embAxis(4, 0), 1)
	require.NoError(t, err)

	before := g.Snapshot()

	// an unnormalized probe must score against its normalized form
	probe := []float32{3, 1, 0, 0}
	norm := NormalizeVec(probe)

	got, sim, ok := g.Lookup(probe)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.InDelta(t, float64(norm[0]), float64(sim), 1e-6)

	// nothing below the threshold matches
	_, _, ok = g.Lookup(embAxis(4, 1))
	assert.False(t, ok)

	after := g.Snapshot()
	assert.Equal(t, before, after, "lookup must not mutate the gallery")
}

// TestGalleryThresholdMonotonicity checks raising the similarity threshold
// never increases the number of tracks merged into one identity
func TestGalleryThresholdMonotonicity(t *testing.T) {

	// observation stream with appearance drift between two players
	observations := [][]float32{
		embAxis(8, 0),
		blend(8, 0, 1, 0.9),
		blend(8, 0, 1, 0.75),
		embAxis(8, 1),
		blend(8, 0, 1, 0.6),
		blend(8, 0, 1, 0.25),
		embAxis(8, 0),
	}

	distinct := func(threshold float32) int {
		g := NewGallery(threshold, 8)

		for frame, obs := range observations {
			_, _, err := g.Resolve(obs, frame)
			require.NoError(t, err)
		}

		return g.Len()
	}

	prev := -1

	for _, threshold := range []float32{0.3, 0.5, 0.7, 0.9, 0.99} {

		n := distinct(threshold)

		if prev >= 0 {
			assert.GreaterOrEqual(t, n, prev,
				"raising the threshold must not merge more tracks (threshold %f)",
				threshold)
		}

		prev = n
	}
}

// TestGalleryDeterministicIDs checks two identical runs mint identical
// identity ids
func TestGalleryDeterministicIDs(t *testing.T) {

	run := func() []uuid.UUID {
		g := NewGallery(0.6, 8)

		var ids []uuid.UUID

		for frame, axis := range []int{0, 1, 2, 0, 1} {
			id, _, err := g.Resolve(embAxis(8, axis), frame)
			require.NoError(t, err)
			ids = append(ids, id)
		}

		return ids
	}

	assert.Equal(t, run(), run())
}
