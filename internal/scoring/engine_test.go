package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecoveryLiteralCase(t *testing.T) {
	engine := New()

	// delta 50 normalizes to 80, rhr equal to baseline scores 70,
	// 432/480 = 0.9 duration ratio and (120+96)/432 = 0.5 phase ratio.
	in := Inputs{
		BodyBatteryDelta:         50,
		RestingHeartRate:         58,
		BaselineRestingHeartRate: 58,
		SleepDurationMinutes:     432,
		SleepDeepMinutes:         120,
		SleepRemMinutes:          96,
	}

	require.InDelta(t, 80.0, engine.BodyBatteryComponent(in.BodyBatteryDelta), 1e-9)
	require.InDelta(t, 70.0, engine.RestingHeartRateComponent(in.RestingHeartRate, in.BaselineRestingHeartRate), 1e-9)
	require.InDelta(t, 74.0, engine.SleepQualityComponent(0.9, 0.5), 1e-9)

	// 0.4*80 + 0.3*70 + 0.3*74
	require.Equal(t, 75.2, engine.Recovery(in))
}

func TestSleepPerformanceZeroSleep(t *testing.T) {
	engine := New()
	got := engine.SleepPerformance(Inputs{SleepDurationMinutes: 0, SleepDeepMinutes: 90, SleepRemMinutes: 60})
	require.Equal(t, 0.0, got)
}

func TestSleepPerformanceWeights(t *testing.T) {
	engine := New()

	cases := []struct {
		name string
		in   Inputs
		want float64
	}{
		{"full target with half phases", Inputs{SleepDurationMinutes: 480, SleepDeepMinutes: 120, SleepRemMinutes: 120}, 80},
		{"oversleep is capped", Inputs{SleepDurationMinutes: 600, SleepDeepMinutes: 150, SleepRemMinutes: 150}, 80},
		{"short night", Inputs{SleepDurationMinutes: 240, SleepDeepMinutes: 60, SleepRemMinutes: 0}, 40},
		{"phases exceeding total are capped", Inputs{SleepDurationMinutes: 480, SleepDeepMinutes: 400, SleepRemMinutes: 300}, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, engine.SleepPerformance(tc.in), 1e-9)
		})
	}
}

func TestStrainIsZeroForIdleDay(t *testing.T) {
	require.Equal(t, 0.0, New().Strain(Inputs{}))
}

func TestStrainSaturatesBelowCeiling(t *testing.T) {
	engine := New()

	moderate := engine.Strain(Inputs{IntensityMinutes: 60, ActiveCalories: 500})
	require.InDelta(t, 11.7, moderate, 1e-9)

	extreme := engine.Strain(Inputs{IntensityMinutes: 100000, ActiveCalories: 1e7, StressAvg: 100, TrainingEffectTotal: 50})
	require.LessOrEqual(t, extreme, MaxStrain)
	require.Greater(t, extreme, 20.0)
}

func TestStrainIsMonotonic(t *testing.T) {
	engine := New()
	base := Inputs{IntensityMinutes: 20, ActiveCalories: 200, StressAvg: 30, TrainingEffectTotal: 1.5}
	prev := engine.Strain(base)

	for i := 0; i < 50; i++ {
		base.IntensityMinutes += 5
		base.ActiveCalories += 40
		base.StressAvg++
		base.TrainingEffectTotal += 0.2
		next := engine.Strain(base)
		require.GreaterOrEqual(t, next, prev)
		prev = next
	}
}

func TestRestingHeartRateComponentSaturates(t *testing.T) {
	engine := New()

	require.Equal(t, 100.0, engine.RestingHeartRateComponent(30, 80))
	require.Equal(t, 0.0, engine.RestingHeartRateComponent(120, 55))
	require.Equal(t, 73.0, engine.RestingHeartRateComponent(57, 58))
	require.Equal(t, 70.0, engine.RestingHeartRateComponent(0, 58), "missing rhr is neutral")
	require.Equal(t, 70.0, engine.RestingHeartRateComponent(58, 0), "missing baseline is neutral")
}

func TestBodyBatteryComponentClamps(t *testing.T) {
	engine := New()

	require.Equal(t, 0.0, engine.BodyBatteryComponent(-100))
	require.InDelta(t, 40.0, engine.BodyBatteryComponent(0), 1e-9)
	require.Equal(t, 100.0, engine.BodyBatteryComponent(100))
}

func TestActivityStrain(t *testing.T) {
	engine := New()

	require.Equal(t, 0.0, engine.ActivityStrain(ActivityLoad{}))

	easy := engine.ActivityStrain(ActivityLoad{TrainingEffect: 2.0, HRZoneMinutes: [5]float64{20, 10, 0, 0, 0}})
	hard := engine.ActivityStrain(ActivityLoad{TrainingEffect: 4.5, HRZoneMinutes: [5]float64{5, 10, 20, 20, 10}})
	require.Greater(t, hard, easy)
	require.LessOrEqual(t, hard, MaxStrain)
}

func TestScoresAreDeterministic(t *testing.T) {
	engine := New()
	in := Inputs{
		RestingHeartRate:         54,
		BaselineRestingHeartRate: 56.571428571428573,
		BodyBatteryDelta:         37,
		SleepDurationMinutes:     451,
		SleepDeepMinutes:         83,
		SleepRemMinutes:          97,
		StressAvg:                31,
		IntensityMinutes:         44,
		ActiveCalories:           612,
		TrainingEffectTotal:      3.4,
	}

	first := engine.Score(in)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, engine.Score(in))
	}
}

func TestScoresStayInRange(t *testing.T) {
	engine := New()

	fixed := []Inputs{
		{},
		{RestingHeartRate: -5, BodyBatteryDelta: -500, SleepDurationMinutes: -10, StressAvg: -1, ActiveCalories: -100},
		{RestingHeartRate: 250, BaselineRestingHeartRate: 30, BodyBatteryDelta: 1000, SleepDurationMinutes: 2000, SleepDeepMinutes: 5000, SleepRemMinutes: 5000, StressAvg: 100, IntensityMinutes: 1440, ActiveCalories: 20000, TrainingEffectTotal: 25},
		{BaselineRestingHeartRate: math.Inf(1), RestingHeartRate: 60, TrainingEffectTotal: math.NaN()},
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		fixed = append(fixed, Inputs{
			RestingHeartRate:         rng.Intn(220) - 10,
			BaselineRestingHeartRate: rng.Float64() * 120,
			BodyBatteryDelta:         rng.Intn(400) - 200,
			SleepDurationMinutes:     rng.Intn(900),
			SleepDeepMinutes:         rng.Intn(300),
			SleepRemMinutes:          rng.Intn(300),
			StressAvg:                rng.Intn(110),
			IntensityMinutes:         rng.Intn(600),
			ActiveCalories:           rng.Intn(5000),
			TrainingEffectTotal:      rng.Float64() * 15,
		})
	}

	for _, in := range fixed {
		s := engine.Score(in)
		require.GreaterOrEqual(t, s.Recovery, 0.0)
		require.LessOrEqual(t, s.Recovery, MaxRecovery)
		require.GreaterOrEqual(t, s.Strain, 0.0)
		require.LessOrEqual(t, s.Strain, MaxStrain)
		require.GreaterOrEqual(t, s.SleepPerformance, 0.0)
		require.LessOrEqual(t, s.SleepPerformance, MaxSleepPerformance)
	}
}
