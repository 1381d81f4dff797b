// Package domain defines the entities, ports and read-side services of the
// telemetry sync service.
package domain

import (
	"time"

	"example.com/healthscore/internal/scoring"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDay(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

// DailyMetric is the canonical per-user, per-date record. Scores are always
// derived from Inputs in the same row.
type DailyMetric struct {
	UserID    string
	Date      time.Time
	Inputs    scoring.Inputs
	Scores    scoring.Scores
	Detail    DailyDetail
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DailyDetail keeps the provider readings that do not feed the scores. A
// zero value means the provider did not report the reading.
type DailyDetail struct {
	Wellness WellnessDetail `json:"wellness"`
	Sleep    SleepDetail    `json:"sleep"`
}

// WellnessDetail comes from the daily summary.
type WellnessDetail struct {
	MinHeartRate       int     `json:"min_hr,omitempty"`
	MaxHeartRate       int     `json:"max_hr,omitempty"`
	HRVLastNight       int     `json:"hrv_last_night,omitempty"`
	HRVWeeklyAverage   int     `json:"hrv_weekly_avg,omitempty"`
	AverageSpO2        int     `json:"avg_spo2,omitempty"`
	LowestSpO2         int     `json:"min_spo2,omitempty"`
	Steps              int     `json:"steps,omitempty"`
	DistanceMeters     float64 `json:"distance_meters,omitempty"`
	FloorsAscended     float64 `json:"floors_ascended,omitempty"`
	TotalCalories      int     `json:"total_calories,omitempty"`
	StressMax          int     `json:"stress_max,omitempty"`
	BodyBatteryHigh    int     `json:"body_battery_high,omitempty"`
	BodyBatteryLow     int     `json:"body_battery_low,omitempty"`
	BodyBatteryCharged int     `json:"body_battery_charged,omitempty"`
	BodyBatteryDrained int     `json:"body_battery_drained,omitempty"`
	AverageRespiration float64 `json:"avg_respiration,omitempty"`
}

// SleepDetail comes from the sleep record.
type SleepDetail struct {
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	LightMinutes int        `json:"light_minutes,omitempty"`
	AwakeMinutes int        `json:"awake_minutes,omitempty"`
}

// NewDailyMetric scores the inputs with engine and returns the row to persist.
func NewDailyMetric(engine scoring.Engine, userID string, date time.Time, in scoring.Inputs) DailyMetric {
	return DailyMetric{
		UserID: userID,
		Date:   Day(date),
		Inputs: in,
		Scores: engine.Score(in),
	}
}

// Activity is one workout pulled from the telemetry provider, keyed by
// (UserID, ExternalID).
type Activity struct {
	ID                 string
	UserID             string
	ExternalID         string
	Name               string
	ActivityType       string
	StartedAt          time.Time
	Duration           time.Duration
	AverageHeartRate   int
	MaxHeartRate       int
	DistanceMeters     float64
	Calories           int
	HRZoneMinutes      [5]float64
	AerobicEffect      float64
	AnaerobicEffect    float64
	TrainingEffect     float64
	StrainContribution float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ActivityCursor models the pagination token for activity listings.
type ActivityCursor struct {
	StartedAt time.Time
	ID        string
}

// Summary aggregates score averages across a date window.
type Summary struct {
	From                    time.Time
	To                      time.Time
	DaysWithData            int
	AverageRecovery         *float64
	AverageStrain           *float64
	AverageSleepPerformance *float64
	AverageSleepHours       *float64
	Latest                  *DailyMetric
}
