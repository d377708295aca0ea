// Package filter implements the per-channel smoothing and intensity
// normalization applied before channels are composited.
package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"microfigure/internal/models"
)

// kernelAccuracy is the relative kernel value at which the Gaussian is cut off
const kernelAccuracy = 0.002

// Stats holds summary statistics of a raster
type Stats struct {
	Min, Max, Mean float64
}

// Statistics computes min, max and mean of r. Nothing is cached: callers
// recompute after every derived raster.
func Statistics(r *models.Raster) Stats {
	if len(r.Pix) == 0 {
		return Stats{}
	}
	return Stats{
		Min:  floats.Min(r.Pix),
		Max:  floats.Max(r.Pix),
		Mean: stat.Mean(r.Pix, nil),
	}
}

// Apply runs Blur and then, if requested, Normalize
func Apply(r *models.Raster, sigma float64, normalize bool) (*models.Raster, error) {
	out, err := Blur(r, sigma)
	if err != nil {
		return nil, err
	}
	if normalize {
		out = Normalize(out)
	}
	return out, nil
}

// Blur returns a Gaussian-smoothed copy of r. A sigma of 0 returns an exact
// copy. Border pixels are extended outward.
func Blur(r *models.Raster, sigma float64) (*models.Raster, error) {
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("invalid blur sigma %v", sigma)
	}
	if sigma == 0 || len(r.Pix) == 0 {
		return r.Clone(), nil
	}

	kernel := gaussianKernel(sigma)

	tmp := models.NewRaster(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		row := r.Pix[y*r.Width : (y+1)*r.Width]
		convolve(tmp.Pix[y*r.Width:(y+1)*r.Width], row, kernel)
	}

	out := models.NewRaster(r.Width, r.Height)
	col := make([]float64, r.Height)
	res := make([]float64, r.Height)
	for x := 0; x < r.Width; x++ {
		for y := 0; y < r.Height; y++ {
			col[y] = tmp.Pix[y*r.Width+x]
		}
		convolve(res, col, kernel)
		for y := 0; y < r.Height; y++ {
			out.Pix[y*r.Width+x] = res[y]
		}
	}
	return out, nil
}

// Normalize linearly maps the raster's minimum to 0 and its maximum to 255.
// A constant raster maps to all zeros.
func Normalize(r *models.Raster) *models.Raster {
	out := r.Clone()
	if len(out.Pix) == 0 {
		return out
	}

	s := Statistics(r)
	floats.AddConst(-s.Min, out.Pix)
	if s.Max == s.Min {
		// Every sample is now exactly 0
		return out
	}
	floats.Scale(255/(s.Max-s.Min), out.Pix)
	return out
}

// gaussianKernel returns the normalized kernel for sigma, centered at index
// radius.
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(sigma*math.Sqrt(-2*math.Log(kernelAccuracy)))) + 1
	dist := distuv.Normal{Mu: 0, Sigma: sigma}

	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		kernel[i] = dist.Prob(float64(i - radius))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// convolve filters src into dst with edge replication
func convolve(dst, src, kernel []float64) {
	n := len(src)
	radius := len(kernel) / 2
	for i := 0; i < n; i++ {
		var sum float64
		for k, w := range kernel {
			j := i + k - radius
			if j < 0 {
				j = 0
			} else if j >= n {
				j = n - 1
			}
			sum += w * src[j]
		}
		dst[i] = sum
	}
}
