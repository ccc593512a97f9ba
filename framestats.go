package pitchtrack

import (
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

// statsSampleSize is the edge length frames are downsampled to before
// computing luminance statistics.  Scene brightness and contrast are low
// frequency properties, a small sample is sufficient and keeps the adaptive
// filter off the per-frame critical path.
const statsSampleSize = 64

// FrameStats holds lightweight per-frame image statistics consumed by the
// adaptive confidence filter.  Both values are normalised to [0,1].
type FrameStats struct {
	// Brightness is the mean luminance
	Brightness float32
	// Contrast is the luminance standard deviation
	Contrast float32
}

// FrameStatsFromMat computes brightness and contrast from a gocv frame.
// Colour frames are reduced to grayscale first.
func FrameStatsFromMat(frame gocv.Mat) FrameStats {

	if frame.Empty() {
		return FrameStats{}
	}

	gray := frame

	if frame.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()

	gocv.MeanStdDev(gray, &mean, &stddev)

	return FrameStats{
		Brightness: clamp01(float32(mean.GetDoubleAt(0, 0) / 255.0)),
		Contrast:   clamp01(float32(stddev.GetDoubleAt(0, 0) / 128.0)),
	}
}

// FrameStatsFromImage computes brightness and contrast from a stdlib image.
// The frame is downsampled before the luminance reduction so large frames
// cost the same as small ones.
func FrameStatsFromImage(frame image.Image) FrameStats {

	bounds := frame.Bounds()

	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return FrameStats{}
	}

	sample := image.NewGray(image.Rect(0, 0, statsSampleSize, statsSampleSize))
	draw.ApproxBiLinear.Scale(sample, sample.Bounds(), frame, bounds, draw.Src, nil)

	lum := make([]float64, 0, statsSampleSize*statsSampleSize)

	for _, v := range sample.Pix {
		lum = append(lum, float64(v))
	}

	mean, stddev := stat.MeanStdDev(lum, nil)

	return FrameStats{
		Brightness: clamp01(float32(mean / 255.0)),
		Contrast:   clamp01(float32(stddev / 128.0)),
	}
}

// clamp01 restricts v to [0,1]
func clamp01(v float32) float32 {

	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
