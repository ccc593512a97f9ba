package reid

import (
	"math"
	"testing"
)

// almostEqual checks if two float32 values are approximately equal
func almostEqual(a, b, tolerance float32) bool {
	return float32(math.Abs(float64(a)-float64(b))) <= tolerance
}

func TestNormalizeVec(t *testing.T) {

	v := NormalizeVec([]float32{3, 4})

	if !almostEqual(v[0], 0.6, 1e-6) || !almostEqual(v[1], 0.8, 1e-6) {
		t.Errorf("expected unit vector, got %v", v)
	}

	// zero vector passes through unchanged
	z := NormalizeVec([]float32{0, 0, 0})

	for _, x := range z {
		if x != 0 {
			t.Errorf("expected zero vector unchanged, got %v", z)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {

	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if !almostEqual(CosineSimilarity(a, a), 1.0, 1e-6) {
		t.Errorf("identical vectors should have similarity 1")
	}

	if !almostEqual(CosineSimilarity(a, b), 0.0, 1e-6) {
		t.Errorf("orthogonal vectors should have similarity 0")
	}

	if !almostEqual(CosineDistance(a, b), 1.0, 1e-6) {
		t.Errorf("orthogonal vectors should have distance 1")
	}
}

func TestEuclideanDistance(t *testing.T) {

	a := []float32{0, 0}
	b := []float32{3, 4}

	if !almostEqual(EuclideanDistance(a, b), 5.0, 1e-6) {
		t.Errorf("expected distance 5, got %f", EuclideanDistance(a, b))
	}
}

func TestFingerprintHash(t *testing.T) {

	feat := NormalizeVec([]float32{0.25, 0.5, 0.75, 1.0})

	h1, err := FingerprintHash(feat)

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	h2, err := FingerprintHash(feat)

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if h1 != h2 {
		t.Errorf("hash is not stable: %s vs %s", h1, h2)
	}

	if len(h1) != 64 {
		t.Errorf("expected hex encoded sha256, got %d chars", len(h1))
	}

	other, _ := FingerprintHash(NormalizeVec([]float32{1, 0, 0, 0}))

	if h1 == other {
		t.Errorf("different embeddings must not collide")
	}
}
