package tracker

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// floatsEqual compares slices of float32
func floatsEqual(a, b []float32, epsilon float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if diff := a[i] - b[i]; diff > epsilon || diff < -epsilon {
			return false
		}
	}
	return true
}

// TestKalmanFilterInitiate checks the state is seeded from the first
// measurement with zero velocity
func TestKalmanFilterInitiate(t *testing.T) {

	kf := NewKalmanFilter(1.0/20, 1.0/160)

	mean := make(StateMean, 8)
	covariance := &StateCov{mat.NewDense(8, 8, nil)}
	measurement := DetectBox{100.0, 200.0, 0.5, 50.0}

	kf.Initiate(mean, covariance, measurement)

	if !floatsEqual(mean[:4], []float32{100, 200, 0.5, 50}, 1e-6) {
		t.Errorf("expected position seeded from measurement, got %v", mean[:4])
	}

	if !floatsEqual(mean[4:], []float32{0, 0, 0, 0}, 1e-6) {
		t.Errorf("expected zero initial velocity, got %v", mean[4:])
	}

	for i := 0; i < 8; i++ {
		if covariance.At(i, i) <= 0 {
			t.Errorf("expected positive variance at %d, got %f", i, covariance.At(i, i))
		}
	}
}

// TestKalmanFilterPredict checks a stationary state stays in place while
// uncertainty grows
func TestKalmanFilterPredict(t *testing.T) {

	kf := NewKalmanFilter(1.0/20, 1.0/160)

	mean := make(StateMean, 8)
	covariance := &StateCov{mat.NewDense(8, 8, nil)}

	kf.Initiate(mean, covariance, DetectBox{100.0, 200.0, 0.5, 50.0})

	before := covariance.At(0, 0)

	kf.Predict(mean, covariance)

	if !floatsEqual(mean[:4], []float32{100, 200, 0.5, 50}, 1e-4) {
		t.Errorf("stationary state moved during predict: %v", mean[:4])
	}

	if covariance.At(0, 0) <= before {
		t.Errorf("expected covariance to grow during predict, %f -> %f",
			before, covariance.At(0, 0))
	}
}

// TestKalmanFilterPredictVelocity checks a moving state advances by its
// velocity estimate
func TestKalmanFilterPredictVelocity(t *testing.T) {

	kf := NewKalmanFilter(1.0/20, 1.0/160)

	mean := make(StateMean, 8)
	covariance := &StateCov{mat.NewDense(8, 8, nil)}

	kf.Initiate(mean, covariance, DetectBox{100.0, 200.0, 0.5, 50.0})

	mean[4] = 5.0 // x velocity
	mean[5] = -2.0

	kf.Predict(mean, covariance)

	if !floatsEqual(mean[:2], []float32{105, 198}, 1e-4) {
		t.Errorf("expected state advanced by velocity, got %v", mean[:2])
	}
}

// TestKalmanFilterUpdate checks the corrected state lands between the
// prediction and the measurement
func TestKalmanFilterUpdate(t *testing.T) {

	kf := NewKalmanFilter(1.0/20, 1.0/160)

	mean := make(StateMean, 8)
	covariance := &StateCov{mat.NewDense(8, 8, nil)}

	kf.Initiate(mean, covariance, DetectBox{100.0, 200.0, 0.5, 50.0})
	kf.Predict(mean, covariance)

	err := kf.Update(mean, covariance, DetectBox{110.0, 200.0, 0.5, 50.0})

	if err != nil {
		t.Fatalf("update returned error: %v", err)
	}

	if mean[0] <= 100 || mean[0] > 110 {
		t.Errorf("expected corrected x in (100,110], got %f", mean[0])
	}
}
