// Package scoring derives the Recovery, Strain and Sleep Performance scores
// from normalized daily telemetry. Every function is pure and total.
package scoring

import "math"

const (
	// MaxRecovery is the upper bound of the recovery scale.
	MaxRecovery = 100.0
	// MaxStrain is the asymptote of the strain scale.
	MaxStrain = 21.0
	// MaxSleepPerformance is the upper bound of the sleep performance scale.
	MaxSleepPerformance = 100.0
)

// Inputs are the canonical raw values of one calendar day. Zero means
// "no data" for every field and is handled as a neutral value.
type Inputs struct {
	RestingHeartRate         int     `json:"resting_heart_rate"`
	BaselineRestingHeartRate float64 `json:"baseline_resting_heart_rate"`
	BodyBatteryDelta         int     `json:"body_battery_delta"`
	SleepDurationMinutes     int     `json:"sleep_duration_minutes"`
	SleepDeepMinutes         int     `json:"sleep_deep_minutes"`
	SleepRemMinutes          int     `json:"sleep_rem_minutes"`
	StressAvg                int     `json:"stress_avg"`
	IntensityMinutes         int     `json:"intensity_minutes"`
	ActiveCalories           int     `json:"active_calories"`
	TrainingEffectTotal      float64 `json:"training_effect_total"`
}

// Scores are the composite values computed from Inputs.
type Scores struct {
	Recovery         float64 `json:"recovery"`
	Strain           float64 `json:"strain"`
	SleepPerformance float64 `json:"sleep_performance"`
}

// ActivityLoad is the per-activity input of ActivityStrain.
type ActivityLoad struct {
	TrainingEffect float64
	HRZoneMinutes  [5]float64
}

// Engine computes scores with a fixed parameter set. The zero value is not
// usable; construct it with New or NewWithParams.
type Engine struct {
	p Params
}

// New returns an Engine using DefaultParams.
func New() Engine {
	return Engine{p: DefaultParams()}
}

// NewWithParams returns an Engine with a custom parameter set.
func NewWithParams(p Params) Engine {
	return Engine{p: p}
}

// Params exposes the parameter set in use.
func (e Engine) Params() Params {
	return e.p
}

// Score computes all three daily scores.
func (e Engine) Score(in Inputs) Scores {
	return Scores{
		Recovery:         e.Recovery(in),
		Strain:           e.Strain(in),
		SleepPerformance: e.SleepPerformance(in),
	}
}

// Recovery returns the weighted body battery, resting heart rate and sleep
// quality components, in [0,100].
func (e Engine) Recovery(in Inputs) float64 {
	bb := e.BodyBatteryComponent(in.BodyBatteryDelta)
	rhr := e.RestingHeartRateComponent(in.RestingHeartRate, in.BaselineRestingHeartRate)
	sq := e.SleepQualityComponent(e.durationRatio(in.SleepDurationMinutes), phaseRatio(in))

	total := e.p.RecoveryWeightBodyBattery*bb + e.p.RecoveryWeightRestingHR*rhr + e.p.RecoveryWeightSleep*sq
	return clamp(round1(total), 0, MaxRecovery)
}

// BodyBatteryComponent maps the daily body battery delta linearly onto
// [0,100] over the configured window.
func (e Engine) BodyBatteryComponent(delta int) float64 {
	span := e.p.BodyBatteryHigh - e.p.BodyBatteryLow
	if span <= 0 {
		return 0
	}
	return clamp((float64(delta)-e.p.BodyBatteryLow)/span*100, 0, 100)
}

// RestingHeartRateComponent scores today's resting heart rate against the
// rolling baseline. Each bpm below baseline adds RestingHRSlope points, each
// bpm above removes them; the result saturates at both ends.
func (e Engine) RestingHeartRateComponent(rhr int, baseline float64) float64 {
	if rhr <= 0 || baseline <= 0 || isBad(baseline) {
		return e.p.RestingHRNeutral
	}
	return clamp(e.p.RestingHRNeutral+e.p.RestingHRSlope*(baseline-float64(rhr)), 0, 100)
}

// SleepQualityComponent combines the duration ratio and the deep+REM
// proportion, each capped at 1, into [0,100].
func (e Engine) SleepQualityComponent(durationRatio, phaseRatio float64) float64 {
	d := clamp(durationRatio, 0, 1)
	p := clamp(phaseRatio, 0, 1)
	return clamp(100*(e.p.SleepDurationWeight*d+e.p.SleepPhaseWeight*p), 0, 100)
}

// Strain passes the weighted daily load through a saturating curve so the
// result is 0 for an idle day and never exceeds MaxStrain.
func (e Engine) Strain(in Inputs) float64 {
	load := e.p.StrainWeightIntensity*nonNeg(float64(in.IntensityMinutes))/e.p.StrainIntensityScale +
		e.p.StrainWeightCalories*nonNeg(float64(in.ActiveCalories))/e.p.StrainCaloriesScale +
		e.p.StrainWeightStress*nonNeg(float64(in.StressAvg))/e.p.StrainStressScale +
		e.p.StrainWeightTraining*nonNeg(in.TrainingEffectTotal)/e.p.StrainTrainingScale
	return saturate(load, e.p.StrainCurveK)
}

// SleepPerformance weights the duration ratio against the target and the
// deep+REM ratio. A night with no recorded sleep scores 0.
func (e Engine) SleepPerformance(in Inputs) float64 {
	d := clamp(e.durationRatio(in.SleepDurationMinutes), 0, 1)
	p := clamp(phaseRatio(in), 0, 1)
	total := 100 * (e.p.SleepDurationWeight*d + e.p.SleepPhaseWeight*p)
	return clamp(round1(total), 0, MaxSleepPerformance)
}

// ActivityStrain is the strain contribution of a single activity.
func (e Engine) ActivityStrain(a ActivityLoad) float64 {
	load := e.p.ActivityTrainingWeight * nonNeg(a.TrainingEffect)
	for i, minutes := range a.HRZoneMinutes {
		load += e.p.ActivityZoneWeights[i] * nonNeg(minutes) / 60
	}
	return saturate(load, e.p.ActivityCurveK)
}

func (e Engine) durationRatio(minutes int) float64 {
	if minutes <= 0 || e.p.SleepTargetMinutes <= 0 {
		return 0
	}
	return float64(minutes) / e.p.SleepTargetMinutes
}

func phaseRatio(in Inputs) float64 {
	if in.SleepDurationMinutes <= 0 {
		return 0
	}
	phases := nonNeg(float64(in.SleepDeepMinutes)) + nonNeg(float64(in.SleepRemMinutes))
	return phases / float64(in.SleepDurationMinutes)
}

func saturate(load, k float64) float64 {
	if load <= 0 || isBad(load) || k <= 0 {
		return 0
	}
	return clamp(round1(MaxStrain*(1-math.Exp(-k*load))), 0, MaxStrain)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func nonNeg(v float64) float64 {
	if v < 0 || isBad(v) {
		return 0
	}
	return v
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
