package models

import (
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

var Channels = []Channel{ChannelEmail, ChannelSMS}

// AlertSubscription is a user's standing request to be told about nearby events.
// Categories and Channels are stored as comma-delimited lists.
type AlertSubscription struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RadiusKm   float64   `json:"radiusKm"`
	Categories string    `json:"categories"`
	Channels   string    `json:"channels"`
	Email      *string   `json:"email"`
	Phone      *string   `json:"phone"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *AlertSubscription) CategorySet() map[string]struct{} {
	return ParseList(s.Categories)
}

func (s *AlertSubscription) ChannelSet() map[string]struct{} {
	return ParseList(s.Channels)
}

func (s *AlertSubscription) WantsCategory(t DisasterType) bool {
	_, ok := s.CategorySet()[strings.ToLower(string(t))]
	return ok
}

func (s *AlertSubscription) WantsChannel(c Channel) bool {
	_, ok := s.ChannelSet()[string(c)]
	return ok
}

// EmailAddress returns the override address, or "" when none is set.
func (s *AlertSubscription) EmailAddress() string {
	if s.Email == nil {
		return ""
	}
	return strings.TrimSpace(*s.Email)
}

func (s *AlertSubscription) PhoneNumber() string {
	if s.Phone == nil {
		return ""
	}
	return strings.TrimSpace(*s.Phone)
}

// ParseList splits a comma-delimited list into a set of trimmed, lower-cased tokens.
// Membership is exact per token, so "storm" never matches "stormwater".
func ParseList(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}

// Message is an alert composed once per event and reused for every recipient.
type Message struct {
	Subject string
	HTML    string
	SMS     string
}
