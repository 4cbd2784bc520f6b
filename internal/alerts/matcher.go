package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/mr1hm/disasterwatch/internal/geo"
	"github.com/mr1hm/disasterwatch/internal/models"
)

// MaxRecipients caps how many subscriptions a single event can notify.
// Past the cap, storage order (ascending id) decides who is kept.
const MaxRecipients = 100

// SubscriptionFinder is the read the matcher needs from storage.
type SubscriptionFinder interface {
	SubscriptionsByCategory(ctx context.Context, category models.DisasterType) ([]models.AlertSubscription, error)
}

// Match is a subscription within range of an event.
type Match struct {
	Subscription models.AlertSubscription
	DistanceKm   float64
}

type Matcher struct {
	subs   SubscriptionFinder
	logger *slog.Logger
}

func NewMatcher(subs SubscriptionFinder, logger *slog.Logger) *Matcher {
	return &Matcher{subs: subs, logger: logger}
}

// FindMatches returns the subscriptions that want the event's type and whose
// radius covers the event location.
func (m *Matcher) FindMatches(ctx context.Context, event *models.DisasterEvent) ([]models.AlertSubscription, error) {
	matches, err := m.Match(ctx, event)
	if err != nil {
		return nil, err
	}
	subs := make([]models.AlertSubscription, len(matches))
	for i, match := range matches {
		subs[i] = match.Subscription
	}
	return subs, nil
}

// Match is FindMatches with the computed distance kept alongside each subscription.
func (m *Matcher) Match(ctx context.Context, event *models.DisasterEvent) ([]Match, error) {
	category := models.DisasterType(strings.ToLower(strings.TrimSpace(string(event.Type))))
	if category == "" || !geo.Valid(event.Lat, event.Lng) {
		return nil, nil
	}

	candidates, err := m.subs.SubscriptionsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("error loading subscriptions for %s: %w", category, err)
	}

	var matches []Match
	for i := range candidates {
		sub := candidates[i]
		if !usable(&sub) || !sub.WantsCategory(category) {
			m.logger.Debug("skipping subscription", "subscription_id", sub.ID)
			continue
		}

		dist := geo.DistanceKm(event.Lat, event.Lng, sub.Lat, sub.Lng)
		if dist > sub.RadiusKm {
			continue
		}

		matches = append(matches, Match{Subscription: sub, DistanceKm: dist})
		if len(matches) == MaxRecipients {
			break
		}
	}
	return matches, nil
}

func usable(sub *models.AlertSubscription) bool {
	if !geo.Valid(sub.Lat, sub.Lng) {
		return false
	}
	return !math.IsNaN(sub.RadiusKm) && !math.IsInf(sub.RadiusKm, 0) && sub.RadiusKm > 0
}
