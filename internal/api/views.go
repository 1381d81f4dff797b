package api

import (
	"time"

	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/scoring"
)

// DailyMetricView is the wire form of a daily metric.
type DailyMetricView struct {
	Date      string             `json:"date"`
	Inputs    scoring.Inputs     `json:"inputs"`
	Scores    scoring.Scores     `json:"scores"`
	// Readings holds provider values that do not feed the scores.
	Readings  domain.DailyDetail `json:"readings"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ListDailyMetricsResponse packages a date range, newest first.
type ListDailyMetricsResponse struct {
	From  string            `json:"from"`
	To    string            `json:"to"`
	Items []DailyMetricView `json:"items"`
}

// SummaryResponse carries score averages over a window.
type SummaryResponse struct {
	From                    string           `json:"from"`
	To                      string           `json:"to"`
	DaysWithData            int              `json:"days_with_data"`
	AverageRecovery         *float64         `json:"average_recovery"`
	AverageStrain           *float64         `json:"average_strain"`
	AverageSleepPerformance *float64         `json:"average_sleep_performance"`
	AverageSleepHours       *float64         `json:"average_sleep_hours"`
	Latest                  *DailyMetricView `json:"latest,omitempty"`
}

// ActivityView exposes one stored workout.
type ActivityView struct {
	ActivityID         string     `json:"activity_id"`
	ExternalID         string     `json:"external_id"`
	Name               string     `json:"name"`
	ActivityType       string     `json:"activity_type"`
	StartedAt          time.Time  `json:"started_at"`
	DurationMinutes    float64    `json:"duration_minutes"`
	AverageHeartRate   int        `json:"average_heart_rate"`
	MaxHeartRate       int        `json:"max_heart_rate,omitempty"`
	DistanceMeters     float64    `json:"distance_meters,omitempty"`
	Calories           int        `json:"calories,omitempty"`
	HRZoneMinutes      [5]float64 `json:"hr_zone_minutes"`
	AerobicEffect      float64    `json:"aerobic_effect"`
	AnaerobicEffect    float64    `json:"anaerobic_effect"`
	TrainingEffect     float64    `json:"training_effect"`
	StrainContribution float64    `json:"strain_contribution"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SyncLogView is the wire form of one sync run.
type SyncLogView struct {
	SyncID            string    `json:"sync_id"`
	Outcome           string    `json:"outcome"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	ErrorDetail       *string   `json:"error_detail,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	DurationMS        int64     `json:"duration_ms"`
	RecordsWritten    int       `json:"records_written"`
	MetricsWritten    int       `json:"metrics_written"`
	ActivitiesWritten int       `json:"activities_written"`
	WindowStart       string    `json:"window_start"`
	WindowEnd         string    `json:"window_end"`
}

// ListSyncLogsResponse packages recent runs, newest first.
type ListSyncLogsResponse struct {
	Items []SyncLogView `json:"items"`
}

func toDailyMetricView(m domain.DailyMetric) DailyMetricView {
	return DailyMetricView{
		Date:      m.Date.Format(domain.DateLayout),
		Inputs:    m.Inputs,
		Scores:    m.Scores,
		Readings:  m.Detail,
		UpdatedAt: m.UpdatedAt,
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:         a.ID,
		ExternalID:         a.ExternalID,
		Name:               a.Name,
		ActivityType:       a.ActivityType,
		StartedAt:          a.StartedAt,
		DurationMinutes:    a.Duration.Minutes(),
		AverageHeartRate:   a.AverageHeartRate,
		MaxHeartRate:       a.MaxHeartRate,
		DistanceMeters:     a.DistanceMeters,
		Calories:           a.Calories,
		HRZoneMinutes:      a.HRZoneMinutes,
		AerobicEffect:      a.AerobicEffect,
		AnaerobicEffect:    a.AnaerobicEffect,
		TrainingEffect:     a.TrainingEffect,
		StrainContribution: a.StrainContribution,
	}
}

func toSyncLogView(l domain.SyncLog) SyncLogView {
	return SyncLogView{
		SyncID:            l.ID,
		Outcome:           string(l.Outcome),
		ErrorKind:         string(l.ErrorKind),
		ErrorDetail:       l.ErrorDetail,
		StartedAt:         l.StartedAt,
		FinishedAt:        l.FinishedAt,
		DurationMS:        l.Duration().Milliseconds(),
		RecordsWritten:    l.RecordsWritten,
		MetricsWritten:    l.MetricsWritten,
		ActivitiesWritten: l.ActivitiesWritten,
		WindowStart:       l.WindowStart.Format(domain.DateLayout),
		WindowEnd:         l.WindowEnd.Format(domain.DateLayout),
	}
}
