package models

import (
	"strings"
	"time"
)

type DisasterType string

const (
	DisasterTypeEarthquake DisasterType = "earthquake"
	DisasterTypeFlood      DisasterType = "flood"
	DisasterTypeWildfire   DisasterType = "wildfire"
	DisasterTypeCyclone    DisasterType = "cyclone"
	DisasterTypeTsunami    DisasterType = "tsunami"
	DisasterTypeStorm      DisasterType = "storm"
)

// DisasterTypes lists every accepted category in display order.
var DisasterTypes = []DisasterType{
	DisasterTypeEarthquake,
	DisasterTypeFlood,
	DisasterTypeWildfire,
	DisasterTypeCyclone,
	DisasterTypeTsunami,
	DisasterTypeStorm,
}

func ParseDisasterType(s string) (DisasterType, bool) {
	t := DisasterType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DisasterTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

var Severities = []Severity{SeverityLow, SeverityModerate, SeveritySevere}

func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Severities {
		if sev == known {
			return sev, true
		}
	}
	return "", false
}

// Rank orders severities by escalation priority; unknown values rank below low.
func (s Severity) Rank() int {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return 0
	}
}

// Escalates reports whether the severity is high enough to notify subscribers.
func (s Severity) Escalates() bool {
	return s.Rank() >= SeverityModerate.Rank()
}

type DisasterEvent struct {
	ID          int64        `json:"id"`
	UserID      string       `json:"userId,omitempty"`
	Type        DisasterType `json:"type"`
	Title       string       `json:"title"`
	Location    string       `json:"location"`
	Severity    Severity     `json:"severity"`
	Magnitude   *float64     `json:"magnitude"`
	Description *string      `json:"description"`
	Lat         float64      `json:"lat"`
	Lng         float64      `json:"lng"`
	Timestamp   time.Time    `json:"timestamp"` // when the event occurred
	IsActive    bool         `json:"isActive"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
