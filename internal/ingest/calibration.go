package ingest

import "github.com/brewsignal/brewsignal/internal/model"

// applyCalibration maps a raw value through a device's calibration curve.
// A curve with only (r, r) identity points is the identity transform, per
// spec §8's round-trip law.
func applyCalibration(curve *model.CalibrationCurve, raw float64) float64 {
	if curve == nil {
		return raw
	}
	if curve.IsPolynomial() {
		return evalPolynomial(curve.Coefficients, raw)
	}
	return linearInterpolate(curve.Points, raw)
}

// linearInterpolate walks a strictly-increasing-by-Raw point set and
// linearly interpolates between the two bracketing points. Values outside
// the curve's domain are clamped to the nearest edge segment's
// extrapolation.
func linearInterpolate(points []model.CalibrationPoint, raw float64) float64 {
	if len(points) == 0 {
		return raw
	}
	if len(points) == 1 {
		return points[0].Actual + (raw - points[0].Raw)
	}
	if raw <= points[0].Raw {
		return interpolateSegment(points[0], points[1], raw)
	}
	for i := 0; i < len(points)-1; i++ {
		if raw >= points[i].Raw && raw <= points[i+1].Raw {
			return interpolateSegment(points[i], points[i+1], raw)
		}
	}
	last := points[len(points)-1]
	prev := points[len(points)-2]
	return interpolateSegment(prev, last, raw)
}

func interpolateSegment(a, b model.CalibrationPoint, raw float64) float64 {
	if b.Raw == a.Raw {
		return a.Actual
	}
	t := (raw - a.Raw) / (b.Raw - a.Raw)
	return a.Actual + t*(b.Actual-a.Actual)
}

// evalPolynomial evaluates a polynomial (lowest-degree coefficient first)
// at x using Horner's method, for iSpindel-class angle-domain curves.
func evalPolynomial(coefficients []float64, x float64) float64 {
	if len(coefficients) == 0 {
		return x
	}
	result := 0.0
	for i := len(coefficients) - 1; i >= 0; i-- {
		result = result*x + coefficients[i]
	}
	return result
}
