package pipeline

// scalarKalman is a one-dimensional Kalman filter with an identity
// transition (no velocity state): the quantity is assumed constant between
// samples save for process noise, per spec §4.4(a).
type scalarKalman struct {
	x float64 // filtered estimate
	p float64 // estimate variance

	qPerHour float64 // process noise, per hour of elapsed time
	r        float64 // measurement variance
}

func newScalarKalman(initial, p0, qPerHour, r float64) *scalarKalman {
	return &scalarKalman{x: initial, p: p0, qPerHour: qPerHour, r: r}
}

// predict advances the filter by deltaHours with no measurement.
func (k *scalarKalman) predict(deltaHours float64) {
	if deltaHours < 0 {
		deltaHours = 0
	}
	k.p += k.qPerHour * deltaHours
}

// trialResidual computes the residual and gain a measurement would produce
// without mutating filter state, so the caller can run anomaly detection
// before deciding whether to commit the update (spec §4.4(d)).
func (k *scalarKalman) trialResidual(measurement float64) (residual, gain float64) {
	gain = k.p / (k.p + k.r)
	residual = measurement - k.x
	return residual, gain
}

// commit applies a previously computed residual/gain pair, advancing the
// filter's estimate and shrinking its variance.
func (k *scalarKalman) commit(residual, gain float64) {
	k.x += gain * residual
	k.p = (1 - gain) * k.p
}

// confidence maps the current variance to a [0,1] score, per spec §4.4(a).
func (k *scalarKalman) confidence() float64 {
	return 1.0 / (1.0 + k.p)
}
