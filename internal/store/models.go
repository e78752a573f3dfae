package store

import "time"

// DateFormat is the canonical date form used throughout the database.
const DateFormat = "2006-01-02"

// TimeFormat is the canonical timestamp form used throughout the database.
const TimeFormat = "2006-01-02 15:04:05"

// HealthDay is one day's health metric record. Every metric is independently
// nullable: lighter Garmin API access leaves resting HR, pulse ox and body
// battery empty while still providing sleep data.
type HealthDay struct {
	Date                 time.Time
	SleepScore           *float64
	RestingHR            *float64
	BodyBattery          *float64
	PulseOx              *float64
	Respiration          *float64
	SleepDurationSeconds *float64
	AvgStress            *float64
}

// Activity is a single logged physical activity.
type Activity struct {
	ID              int64
	ActivityType    string
	StartTime       time.Time
	DurationSeconds float64
	Distance        *float64
	Calories        *float64
}

// FactorOverride is one entry of a custom factor's sparse change log.
type FactorOverride struct {
	Date  time.Time
	Value float64
}

// Session is a recorded study session.
type Session struct {
	ID              int64
	Tag             string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int64
	Notes           string
}
