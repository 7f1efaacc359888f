package track

import "math"

// Internal numerical stability constants — not user-tunable.
const (
	// minDeterminant is the smallest innovation covariance determinant
	// accepted during correction; below it the update is skipped.
	minDeterminant = 1e-9
)

// MotionModel maintains the kinematic belief for one track. Predict must be
// called once per frame before Correct; an uncorrected frame leaves the
// model at its predicted state so the track coasts through occlusion.
type MotionModel interface {
	// Predict advances the state by dt seconds under the model's dynamics.
	Predict(dt float64)
	// Correct blends the predicted state with a measured box center.
	// It returns false when the correction had to be skipped (singular
	// innovation covariance or a non-finite result); the state is then
	// left at its predicted value.
	Correct(cx, cy float64) bool
	// Position returns the current smoothed center estimate.
	Position() (x, y float64)
	// Velocity returns the current velocity estimate in pixels/second.
	Velocity() (vx, vy float64)
	// PositionVariance returns the diagonal of the position covariance.
	PositionVariance() (px, py float64)
}

// EstimatorConfig holds the noise model shared by all per-track estimators.
type EstimatorConfig struct {
	ProcessNoisePos  float64 // position process noise (σ², dt-normalised)
	ProcessNoiseVel  float64 // velocity process noise (σ², dt-normalised)
	MeasurementNoise float64 // measurement noise (σ²)
	InitialVariance  float64 // position variance at track birth
	MaxVariance      float64 // cap on covariance diagonal elements
}

// KalmanCV is a constant-velocity Kalman filter over the state
// [x, y, vx, vy] observing box centers. The covariance is stored as a
// 4x4 row-major matrix and symmetrised after every correction so repeated
// floating-point updates cannot drift it away from positive semi-definite.
type KalmanCV struct {
	x, y, vx, vy float64
	p            [16]float64
	cfg          EstimatorConfig
}

// NewKalmanCV creates a filter centred on (cx, cy) with zero velocity and a
// wide initial position uncertainty so the first few corrections dominate.
func NewKalmanCV(cx, cy float64, cfg EstimatorConfig) *KalmanCV {
	k := &KalmanCV{x: cx, y: cy, cfg: cfg}
	k.resetCovariance()
	return k
}

func (k *KalmanCV) resetCovariance() {
	k.p = [16]float64{}
	k.p[0*4+0] = k.cfg.InitialVariance
	k.p[1*4+1] = k.cfg.InitialVariance
	// Velocity is unobserved at birth; a tenth of the position variance
	// keeps the gain from swinging the velocity estimate on frame two.
	k.p[2*4+2] = k.cfg.InitialVariance / 10
	k.p[3*4+3] = k.cfg.InitialVariance / 10
}

// Position returns the smoothed center.
func (k *KalmanCV) Position() (float64, float64) { return k.x, k.y }

// Velocity returns the velocity estimate.
func (k *KalmanCV) Velocity() (float64, float64) { return k.vx, k.vy }

// PositionVariance returns the position covariance diagonal.
func (k *KalmanCV) PositionVariance() (float64, float64) {
	return k.p[0*4+0], k.p[1*4+1]
}

// Predict applies the constant-velocity prediction step:
//
//	x' = F x,  P' = F P Fᵀ + Q dt
//
// with F the CV transition matrix. Uncertainty grows each uncorrected
// frame, widening the association gate for occluded tracks.
func (k *KalmanCV) Predict(dt float64) {
	if dt <= 0 {
		return
	}

	k.x += k.vx * dt
	k.y += k.vy * dt

	// F P: rows 0,1 pick up dt times rows 2,3.
	var fp [16]float64
	for j := 0; j < 4; j++ {
		fp[0*4+j] = k.p[0*4+j] + dt*k.p[2*4+j]
		fp[1*4+j] = k.p[1*4+j] + dt*k.p[3*4+j]
		fp[2*4+j] = k.p[2*4+j]
		fp[3*4+j] = k.p[3*4+j]
	}

	// (F P) Fᵀ: columns 0,1 pick up dt times columns 2,3.
	for i := 0; i < 4; i++ {
		k.p[i*4+0] = fp[i*4+0] + dt*fp[i*4+2]
		k.p[i*4+1] = fp[i*4+1] + dt*fp[i*4+3]
		k.p[i*4+2] = fp[i*4+2]
		k.p[i*4+3] = fp[i*4+3]
	}

	k.p[0*4+0] += k.cfg.ProcessNoisePos * dt
	k.p[1*4+1] += k.cfg.ProcessNoisePos * dt
	k.p[2*4+2] += k.cfg.ProcessNoiseVel * dt
	k.p[3*4+3] += k.cfg.ProcessNoiseVel * dt

	k.capCovariance()

	if !k.finite() {
		// Degenerate state: keep the position, drop the velocity and
		// start over with the birth uncertainty.
		k.vx, k.vy = 0, 0
		if math.IsNaN(k.x) || math.IsInf(k.x, 0) {
			k.x = 0
		}
		if math.IsNaN(k.y) || math.IsInf(k.y, 0) {
			k.y = 0
		}
		k.resetCovariance()
	}
}

// Correct folds the measured center (cx, cy) into the state. The update is
// skipped (returning false) when the innovation covariance is singular or
// the result is non-finite; the state then stays at its predicted value so
// the track degrades to prediction-only for this frame.
func (k *KalmanCV) Correct(cx, cy float64) bool {
	// Innovation y = z - H x with H extracting position.
	iy0 := cx - k.x
	iy1 := cy - k.y

	// Innovation covariance S = H P Hᵀ + R (2x2).
	s00 := k.p[0*4+0] + k.cfg.MeasurementNoise
	s01 := k.p[0*4+1]
	s10 := k.p[1*4+0]
	s11 := k.p[1*4+1] + k.cfg.MeasurementNoise

	det := s00*s11 - s01*s10
	if det < minDeterminant {
		return false
	}

	inv00 := s11 / det
	inv01 := -s01 / det
	inv10 := -s10 / det
	inv11 := s00 / det

	// Kalman gain K = P Hᵀ S⁻¹ (4x2).
	var gain [8]float64
	for i := 0; i < 4; i++ {
		gain[i*2+0] = k.p[i*4+0]*inv00 + k.p[i*4+1]*inv10
		gain[i*2+1] = k.p[i*4+0]*inv01 + k.p[i*4+1]*inv11
	}

	prevX, prevY, prevVX, prevVY, prevP := k.x, k.y, k.vx, k.vy, k.p

	k.x += gain[0*2+0]*iy0 + gain[0*2+1]*iy1
	k.y += gain[1*2+0]*iy0 + gain[1*2+1]*iy1
	k.vx += gain[2*2+0]*iy0 + gain[2*2+1]*iy1
	k.vy += gain[3*2+0]*iy0 + gain[3*2+1]*iy1

	// P' = (I - K H) P. K H only touches columns 0 and 1.
	var ikh [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := 0.0
			if i == j {
				v = 1
			}
			switch j {
			case 0:
				v -= gain[i*2+0]
			case 1:
				v -= gain[i*2+1]
			}
			ikh[i*4+j] = v
		}
	}

	var newP [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for m := 0; m < 4; m++ {
				sum += ikh[i*4+m] * k.p[m*4+j]
			}
			newP[i*4+j] = sum
		}
	}

	// Symmetrise: P = (P + Pᵀ)/2 keeps the covariance from drifting off
	// positive semi-definite under repeated single-frame updates.
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			avg := (newP[i*4+j] + newP[j*4+i]) / 2
			newP[i*4+j] = avg
			newP[j*4+i] = avg
		}
	}
	k.p = newP
	k.capCovariance()

	if !k.finite() {
		// Roll back to the predicted state; the caller sees a skipped
		// correction rather than a poisoned track.
		k.x, k.y, k.vx, k.vy, k.p = prevX, prevY, prevVX, prevVY, prevP
		return false
	}
	return true
}

func (k *KalmanCV) capCovariance() {
	for i := 0; i < 4; i++ {
		if k.p[i*4+i] > k.cfg.MaxVariance {
			k.p[i*4+i] = k.cfg.MaxVariance
		}
	}
}

func (k *KalmanCV) finite() bool {
	for _, v := range []float64{k.x, k.y, k.vx, k.vy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for i := 0; i < 4; i++ {
		v := k.p[i*4+i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Passthrough is the raw-detection position policy: corrections adopt the
// measurement exactly and velocity is a finite difference over the last
// frame interval. It implements the "estimator off" strategy selected at
// session start; prediction still extrapolates so an unmatched track
// coasts the same way a filtered one does.
type Passthrough struct {
	x, y, vx, vy float64
	lastDt       float64
}

// NewPassthrough creates a passthrough model centred on (cx, cy).
func NewPassthrough(cx, cy float64) *Passthrough {
	return &Passthrough{x: cx, y: cy}
}

// Predict extrapolates position by the finite-difference velocity.
func (p *Passthrough) Predict(dt float64) {
	if dt <= 0 {
		return
	}
	p.x += p.vx * dt
	p.y += p.vy * dt
	p.lastDt = dt
}

// Correct snaps the position to the measurement and derives velocity from
// the displacement since the prediction. Never fails.
func (p *Passthrough) Correct(cx, cy float64) bool {
	if p.lastDt > 0 {
		p.vx = (cx - (p.x - p.vx*p.lastDt)) / p.lastDt
		p.vy = (cy - (p.y - p.vy*p.lastDt)) / p.lastDt
	}
	p.x = cx
	p.y = cy
	return true
}

// Position returns the current center.
func (p *Passthrough) Position() (float64, float64) { return p.x, p.y }

// Velocity returns the finite-difference velocity.
func (p *Passthrough) Velocity() (float64, float64) { return p.vx, p.vy }

// PositionVariance is zero for a passthrough model: the position is the
// measurement.
func (p *Passthrough) PositionVariance() (float64, float64) { return 0, 0 }
