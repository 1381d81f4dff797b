package scoring

// Params is the tunable constant set behind the score curves.
type Params struct {
	RecoveryWeightBodyBattery float64
	RecoveryWeightRestingHR   float64
	RecoveryWeightSleep       float64

	// Body battery deltas in [BodyBatteryLow, BodyBatteryHigh] map onto [0,100].
	BodyBatteryLow  float64
	BodyBatteryHigh float64

	RestingHRNeutral float64
	RestingHRSlope   float64

	SleepTargetMinutes  float64
	SleepDurationWeight float64
	SleepPhaseWeight    float64

	StrainWeightIntensity float64
	StrainWeightCalories  float64
	StrainWeightStress    float64
	StrainWeightTraining  float64
	StrainIntensityScale  float64
	StrainCaloriesScale   float64
	StrainStressScale     float64
	StrainTrainingScale   float64
	StrainCurveK          float64

	ActivityTrainingWeight float64
	ActivityZoneWeights    [5]float64
	ActivityCurveK         float64
}

// DefaultParams returns the production parameter set.
func DefaultParams() Params {
	return Params{
		RecoveryWeightBodyBattery: 0.4,
		RecoveryWeightRestingHR:   0.3,
		RecoveryWeightSleep:       0.3,

		BodyBatteryLow:  -50,
		BodyBatteryHigh: 75,

		RestingHRNeutral: 70,
		RestingHRSlope:   3,

		SleepTargetMinutes:  480,
		SleepDurationWeight: 0.6,
		SleepPhaseWeight:    0.4,

		StrainWeightIntensity: 1.0,
		StrainWeightCalories:  0.8,
		StrainWeightStress:    0.3,
		StrainWeightTraining:  0.6,
		StrainIntensityScale:  60,
		StrainCaloriesScale:   500,
		StrainStressScale:     100,
		StrainTrainingScale:   5,
		StrainCurveK:          0.45,

		ActivityTrainingWeight: 0.5,
		ActivityZoneWeights:    [5]float64{0.2, 0.4, 0.7, 1.0, 1.4},
		ActivityCurveK:         0.35,
	}
}
