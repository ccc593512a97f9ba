package reid

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// NormalizeVec normalizes the input float32 slice to unit length and returns
// a new slice. If the input vector has zero magnitude, it returns the
// original slice unchanged.
func NormalizeVec(v []float32) []float32 {

	norm := float32(0.0)

	for _, x := range v {
		norm += x * x
	}

	if norm == 0 {
		return v // avoid division by zero
	}

	norm = float32(math.Sqrt(float64(norm)))

	out := make([]float32, len(v))

	for i, x := range v {
		out[i] = x / norm
	}

	return out
}

// CosineSimilarity returns the cosine of the angle between vectors a and b.
// Assumes len(a)==len(b).  For L2-normalized vectors this is just their
// dot-product.
func CosineSimilarity(a, b []float32) float32 {

	var dot float32

	for i := range a {
		dot += a[i] * b[i]
	}

	return dot
}

// CosineDistance returns 1 - cosine similarity, a proper distance metric
// in [0,2] for L2-normalized vectors where small values mean "very similar".
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}

// EuclideanDistance returns the L2 distance between two vectors.  Lower
// means "more similar" when the features are L2-normalized.
func EuclideanDistance(a, b []float32) float32 {

	var sum float32

	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return float32(math.Sqrt(float64(sum)))
}

// FingerprintHash takes an L2-normalized []float32 and returns a hex-encoded
// SHA-256 hash of its binary representation.  Used as a stable key when a
// gallery is persisted across sessions.
func FingerprintHash(feat []float32) (string, error) {

	buf := new(bytes.Buffer)

	// write each float32 in little-endian
	for _, v := range feat {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return "", err
		}
	}

	sum := sha256.Sum256(buf.Bytes())

	return hex.EncodeToString(sum[:]), nil
}
