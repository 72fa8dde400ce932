package catalog

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

/*
B-V color index to linear RGB conversion, for packing strategies that want a
precomputed star color rather than shipping the raw index to the shader. The
index is mapped to an effective temperature with Ballesteros' formula and the
temperature to a chromaticity on the Planckian locus.
*/

////////////////////////////////////////////////////////////////////////////////

// BVToTemperature converts a B-V color index to an effective temperature in
// kelvin using Ballesteros' approximation.
func BVToTemperature(bv float32) float64 {
	b := float64(bv)
	return 4600 * (1/(0.92*b+1.7) + 1/(0.92*b+0.62))
}

// BVToRGB converts a B-V color index to a clamped linear RGB triple.
func BVToRGB(bv float32) (r, g, b float32) {
	t := BVToTemperature(bv)
	x, y := planckianXY(t)
	c := colorful.Xyy(x, y, 1.0).Clamped()
	lr, lg, lb := c.LinearRgb()
	return float32(lr), float32(lg), float32(lb)
}

// planckianXY approximates the CIE 1931 chromaticity of a blackbody at the
// given temperature (Kim et al. cubic spline, valid 1667K-25000K; clamped
// outside).
func planckianXY(t float64) (x, y float64) {
	t = math.Min(math.Max(t, 1667), 25000)
	t2, t3 := t*t, t*t*t
	if t <= 4000 {
		x = -0.2661239e9/t3 - 0.2343589e6/t2 + 0.8776956e3/t + 0.179910
	} else {
		x = -3.0258469e9/t3 + 2.1070379e6/t2 + 0.2226347e3/t + 0.240390
	}
	x2, x3 := x*x, x*x*x
	switch {
	case t <= 2222:
		y = -1.1063814*x3 - 1.34811020*x2 + 2.18555832*x - 0.20219683
	case t <= 4000:
		y = -0.9549476*x3 - 1.37418593*x2 + 2.09137015*x - 0.16748867
	default:
		y = 3.0817580*x3 - 5.87338670*x2 + 3.75112997*x - 0.37001483
	}
	return x, y
}
