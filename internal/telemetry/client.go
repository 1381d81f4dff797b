// Package telemetry adapts the wearable provider behind a small capability
// interface so the orchestrator never sees transport details.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"example.com/healthscore/internal/domain"
)

// ErrPermanent marks a provider failure that retrying cannot fix. It is
// always joined with domain.ErrFetch.
var ErrPermanent = errors.New("permanent provider error")

// Client is the provider capability used by a sync run. Fetch methods return
// (nil, nil) when the provider has no data for the date.
type Client interface {
	Login(ctx context.Context, email, password string) (Session, error)
	FetchDailySummary(ctx context.Context, session Session, date time.Time) (*DailySummary, error)
	FetchSleep(ctx context.Context, session Session, date time.Time) (*Sleep, error)
	FetchActivities(ctx context.Context, session Session, from, to time.Time) ([]Activity, error)
}

// Session is an authenticated provider session.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LogValue hides the session token.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(slog.Time("expires_at", s.ExpiresAt))
}

// DailySummary holds the wellness counters for one calendar date. The bridge
// folds the provider's HRV and pulse oximetry readings into the summary.
type DailySummary struct {
	RestingHeartRate         int     `json:"restingHeartRate"`
	MinHeartRate             int     `json:"minHeartRate"`
	MaxHeartRate             int     `json:"maxHeartRate"`
	BodyBatteryCharged       int     `json:"bodyBatteryChargedValue"`
	BodyBatteryDrained       int     `json:"bodyBatteryDrainedValue"`
	BodyBatteryHighest       int     `json:"bodyBatteryHighestValue"`
	BodyBatteryLowest        int     `json:"bodyBatteryLowestValue"`
	AverageStressLevel       int     `json:"averageStressLevel"`
	MaxStressLevel           int     `json:"maxStressLevel"`
	ModerateIntensityMinutes int     `json:"moderateIntensityMinutes"`
	VigorousIntensityMinutes int     `json:"vigorousIntensityMinutes"`
	ActiveKilocalories       int     `json:"activeKilocalories"`
	TotalKilocalories        float64 `json:"totalKilocalories"`
	TotalSteps               int     `json:"totalSteps"`
	TotalDistanceMeters      float64 `json:"totalDistanceMeters"`
	FloorsAscended           float64 `json:"floorsAscended"`
	AverageRespiration       float64 `json:"avgWakingRespirationValue"`
	HRVLastNight             int     `json:"hrvLastNightAvg"`
	HRVWeeklyAverage         int     `json:"hrvWeeklyAvg"`
	AverageSpO2              int     `json:"averageSpO2"`
	LowestSpO2               int     `json:"lowestSpO2"`
}

// BodyBatteryDelta is the net charge over the day.
func (d DailySummary) BodyBatteryDelta() int {
	return d.BodyBatteryCharged - d.BodyBatteryDrained
}

// IntensityMinutes weights vigorous minutes double, as the provider does
// for its weekly intensity goal.
func (d DailySummary) IntensityMinutes() int {
	return d.ModerateIntensityMinutes + 2*d.VigorousIntensityMinutes
}

// Wellness extracts the readings kept alongside the scores.
func (d DailySummary) Wellness() domain.WellnessDetail {
	return domain.WellnessDetail{
		MinHeartRate:       d.MinHeartRate,
		MaxHeartRate:       d.MaxHeartRate,
		HRVLastNight:       d.HRVLastNight,
		HRVWeeklyAverage:   d.HRVWeeklyAverage,
		AverageSpO2:        d.AverageSpO2,
		LowestSpO2:         d.LowestSpO2,
		Steps:              d.TotalSteps,
		DistanceMeters:     d.TotalDistanceMeters,
		FloorsAscended:     d.FloorsAscended,
		TotalCalories:      int(d.TotalKilocalories),
		StressMax:          d.MaxStressLevel,
		BodyBatteryHigh:    d.BodyBatteryHighest,
		BodyBatteryLow:     d.BodyBatteryLowest,
		BodyBatteryCharged: d.BodyBatteryCharged,
		BodyBatteryDrained: d.BodyBatteryDrained,
		AverageRespiration: d.AverageRespiration,
	}
}

// Sleep is the night of sleep ending on a calendar date.
type Sleep struct {
	SleepSeconds      int        `json:"sleepTimeSeconds"`
	DeepSleepSeconds  int        `json:"deepSleepSeconds"`
	LightSleepSeconds int        `json:"lightSleepSeconds"`
	RemSleepSeconds   int        `json:"remSleepSeconds"`
	AwakeSeconds      int        `json:"awakeSleepSeconds"`
	Start             *time.Time `json:"sleepStart"`
	End               *time.Time `json:"sleepEnd"`
}

func (s Sleep) DurationMinutes() int { return s.SleepSeconds / 60 }
func (s Sleep) DeepMinutes() int     { return s.DeepSleepSeconds / 60 }
func (s Sleep) RemMinutes() int      { return s.RemSleepSeconds / 60 }
func (s Sleep) LightMinutes() int    { return s.LightSleepSeconds / 60 }
func (s Sleep) AwakeMinutes() int    { return s.AwakeSeconds / 60 }

// Detail extracts the sleep readings kept alongside the scores.
func (s Sleep) Detail() domain.SleepDetail {
	d := domain.SleepDetail{LightMinutes: s.LightMinutes(), AwakeMinutes: s.AwakeMinutes()}
	if s.Start != nil {
		start := s.Start.UTC()
		d.Start = &start
	}
	if s.End != nil {
		end := s.End.UTC()
		d.End = &end
	}
	return d
}

// Activity is one recorded workout.
type Activity struct {
	ExternalID              string     `json:"activityId"`
	Name                    string     `json:"activityName"`
	Type                    string     `json:"activityType"`
	StartTime               time.Time  `json:"startTime"`
	DurationSeconds         float64    `json:"duration"`
	DistanceMeters          float64    `json:"distance"`
	Calories                float64    `json:"calories"`
	AverageHeartRate        float64    `json:"averageHR"`
	MaxHeartRate            float64    `json:"maxHR"`
	HRZoneSeconds           [5]float64 `json:"hrTimeInZone"`
	AerobicTrainingEffect   float64    `json:"aerobicTrainingEffect"`
	AnaerobicTrainingEffect float64    `json:"anaerobicTrainingEffect"`
}

// TrainingEffect combines the aerobic and anaerobic effects.
func (a Activity) TrainingEffect() float64 {
	return a.AerobicTrainingEffect + a.AnaerobicTrainingEffect
}

// RoundedMaxHeartRate is the peak heart rate in whole beats per minute.
func (a Activity) RoundedMaxHeartRate() int {
	return int(math.Round(a.MaxHeartRate))
}

// HRZoneMinutes converts the zone durations to minutes.
func (a Activity) HRZoneMinutes() [5]float64 {
	var out [5]float64
	for i, s := range a.HRZoneSeconds {
		out[i] = s / 60
	}
	return out
}
