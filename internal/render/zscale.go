package render

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ZScale computes the IRAF-style contrast-preserving display limits
// (z1, z2) for a 2-D pixel sample, per spec.md section 4.6: sort the
// sample, iteratively sigma-clip a robust line fit against sample
// index, then derive the limits from the fitted slope and the sample's
// median. gonum's stat.LinearRegression supplies the line fit itself;
// the iterative rejection around it is the part IRAF's zscale adds.
func ZScale(samples []float64, contrast float64, maxRejectIterations int) (z1, z2 float64) {
	n := len(samples)
	if n == 0 {
		return 0, 0
	}
	if contrast <= 0 {
		contrast = 0.25
	}
	if maxRejectIterations <= 0 {
		maxRejectIterations = 5
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	if n < 2 {
		return sorted[0], sorted[0]
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	ys := append([]float64(nil), sorted...)

	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	var alpha, beta float64
	for iter := 0; iter < maxRejectIterations; iter++ {
		fx, fy := filterKept(xs, ys, keep)
		if len(fx) < 2 {
			break
		}
		alpha, beta = stat.LinearRegression(fx, fy, nil, false)

		resid := make([]float64, 0, len(fx))
		for i := range fx {
			resid = append(resid, fy[i]-(alpha+beta*fx[i]))
		}
		sigma := stddev(resid)
		if sigma == 0 {
			break
		}
		changed := false
		for i := range xs {
			if !keep[i] {
				continue
			}
			r := ys[i] - (alpha + beta*xs[i])
			if math.Abs(r) > 2.5*sigma {
				keep[i] = false
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	median := sorted[n/2]
	midpoint := float64(n-1) / 2
	slope := beta / contrast

	z1 = median - midpoint*slope
	z2 = median + (float64(n-1)-midpoint)*slope
	if z1 > z2 {
		z1, z2 = z2, z1
	}
	return z1, z2
}

func filterKept(xs, ys []float64, keep []bool) ([]float64, []float64) {
	fx := make([]float64, 0, len(xs))
	fy := make([]float64, 0, len(ys))
	for i, k := range keep {
		if k {
			fx = append(fx, xs[i])
			fy = append(fy, ys[i])
		}
	}
	return fx, fy
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}
