package reid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrDimensionMismatch is returned when an embedding's length does not match
// the gallery's configured dimension.  The caller skips the re-identification
// attempt for the offending track and continues, the gallery itself is left
// untouched.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// identityNamespace seeds deterministic identity id generation so two runs
// over the same detection stream mint the same ids.
var identityNamespace = uuid.MustParse("9d3c6a1e-42f7-4c88-8f1b-2a6d905b7c44")

// tieEpsilon is the similarity margin within which competing gallery matches
// are considered tied and resolved by recency.
const tieEpsilon = 0.01

// defaultAlpha is the exponential moving average weight kept for the stored
// embedding when an identity is refreshed.
const defaultAlpha = 0.9

// Identity is one stable cross-video player identity backed by an aggregated
// appearance embedding.
type Identity struct {
	// ID is unique for the lifetime of the gallery and never reused
	ID uuid.UUID
	// Embedding is the L2-normalized aggregated appearance signature
	Embedding []float32
	// CreatedFrame is the frame index the identity was first minted at
	CreatedFrame int
	// LastSeenFrame is the frame index of the most recent match
	LastSeenFrame int
}

// Gallery is the persistent collection of known identities.  It is an
// explicitly owned store handed to the pipeline at construction, loaded at
// session start and flushed at session end by the caller.  Mutation happens
// only on the sequential pipeline goroutine, Snapshot is safe to call
// concurrently for diagnostics.
type Gallery struct {
	mu sync.RWMutex
	// identities in creation order, iteration order is deterministic
	identities []*Identity
	byID       map[uuid.UUID]*Identity
	// threshold is the hard similarity cutoff for match acceptance
	threshold float32
	// alpha is the EMA weight for embedding refreshes
	alpha float32
	// dim is the expected embedding length, 0 until the first insert
	dim int
	// created counts identities ever minted, feeds id generation
	created uint64
}

// NewGallery creates an empty gallery.  threshold is the hard cosine
// similarity cutoff for a match, dim is the expected embedding length or 0
// to adopt the dimension of the first embedding seen.
func NewGallery(threshold float32, dim int) *Gallery {
	return &Gallery{
		byID:      make(map[uuid.UUID]*Identity),
		threshold: threshold,
		alpha:     defaultAlpha,
		dim:       dim,
	}
}

// Len returns the number of identities in the gallery.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.identities)
}

// Dim returns the embedding dimension the gallery holds, 0 when it is empty
// and unconfigured.
func (g *Gallery) Dim() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.dim
}

// Resolve matches an appearance embedding against every identity and either
// binds to the best match or mints a new identity.  A match requires cosine
// similarity above the gallery threshold, ties within a small epsilon of the
// best score resolve to the most recently seen identity.  On a match the
// stored embedding is refreshed with an exponential moving update rather
// than overwritten so one bad frame cannot corrupt the signature.
//
// Returns the bound identity id and whether it was newly created.
func (g *Gallery) Resolve(feat []float32, frame int) (uuid.UUID, bool, error) {

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkDim(feat); err != nil {
		return uuid.Nil, false, err
	}

	norm := NormalizeVec(feat)

	if best := g.bestMatch(norm); best != nil {
		g.refresh(best, norm, frame)
		return best.ID, false, nil
	}

	id := g.mint(norm, frame)

	return id, true, nil
}

// Refresh folds a new embedding observation into an existing identity and
// advances its last-seen frame.  Unknown ids are ignored.
func (g *Gallery) Refresh(id uuid.UUID, feat []float32, frame int) error {

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkDim(feat); err != nil {
		return err
	}

	ident, exists := g.byID[id]

	if !exists {
		return nil
	}

	g.refresh(ident, NormalizeVec(feat), frame)

	return nil
}

// Lookup returns the best matching identity id and its similarity without
// mutating the gallery.  The second return is false when nothing clears the
// threshold.
func (g *Gallery) Lookup(feat []float32) (uuid.UUID, float32, bool) {

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.checkDim(feat) != nil {
		return uuid.Nil, 0, false
	}

	norm := NormalizeVec(feat)
	best := g.bestMatch(norm)

	if best == nil {
		return uuid.Nil, 0, false
	}

	return best.ID, CosineSimilarity(best.Embedding, norm), true
}

// Snapshot returns a deep copy of every identity in creation order.  Safe to
// call concurrently with pipeline processing.
func (g *Gallery) Snapshot() []Identity {

	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Identity, 0, len(g.identities))

	for _, ident := range g.identities {
		emb := make([]float32, len(ident.Embedding))
		copy(emb, ident.Embedding)

		out = append(out, Identity{
			ID:            ident.ID,
			Embedding:     emb,
			CreatedFrame:  ident.CreatedFrame,
			LastSeenFrame: ident.LastSeenFrame,
		})
	}

	return out
}

// checkDim validates an embedding length against the gallery dimension,
// caller holds a lock.
func (g *Gallery) checkDim(feat []float32) error {

	if len(feat) == 0 {
		return fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}

	if g.dim == 0 {
		return nil
	}

	if len(feat) != g.dim {
		return fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch,
			len(feat), g.dim)
	}

	return nil
}

// bestMatch scans every identity for the highest cosine similarity above
// the threshold, resolving near ties toward the most recently seen
// identity.  Returns nil when nothing clears the threshold.  Caller holds a
// lock, feat is normalized.
func (g *Gallery) bestMatch(feat []float32) *Identity {

	var best *Identity
	bestSim := float32(-1)

	for _, ident := range g.identities {

		sim := CosineSimilarity(ident.Embedding, feat)

		if sim <= g.threshold {
			continue
		}

		switch {
		case best == nil || sim > bestSim+tieEpsilon:
			best = ident
			bestSim = sim

		case sim > bestSim-tieEpsilon:
			// tie, recency wins since it correlates with in-video
			// plausibility
			if ident.LastSeenFrame > best.LastSeenFrame {
				best = ident

				if sim > bestSim {
					bestSim = sim
				}
			}
		}
	}

	return best
}

// refresh applies the EMA update to a matched identity, caller holds the
// write lock, feat is normalized.
func (g *Gallery) refresh(ident *Identity, feat []float32, frame int) {

	for i := range ident.Embedding {
		ident.Embedding[i] = g.alpha*ident.Embedding[i] + (1-g.alpha)*feat[i]
	}

	ident.Embedding = NormalizeVec(ident.Embedding)

	if frame > ident.LastSeenFrame {
		ident.LastSeenFrame = frame
	}
}

// mint creates a new identity from a normalized embedding, caller holds the
// write lock.  Ids are derived from the creation sequence and the embedding
// fingerprint so identical runs mint identical ids.
func (g *Gallery) mint(feat []float32, frame int) uuid.UUID {

	g.created++

	seed := make([]byte, 8, 8+len(feat)*4)
	binary.LittleEndian.PutUint64(seed, g.created)

	for _, v := range feat {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(v*1e6)))
		seed = append(seed, b[:]...)
	}

	emb := make([]float32, len(feat))
	copy(emb, feat)

	ident := &Identity{
		ID:            uuid.NewSHA1(identityNamespace, seed),
		Embedding:     emb,
		CreatedFrame:  frame,
		LastSeenFrame: frame,
	}

	g.identities = append(g.identities, ident)
	g.byID[ident.ID] = ident

	if g.dim == 0 {
		g.dim = len(feat)
	}

	return ident.ID
}
