package api

import (
	"github.com/mr1hm/disasterwatch/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	ID         int64          `json:"id"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lng, lat]
}

func toGeoJSON(disasters []models.DisasterEvent) FeatureCollection {
	features := make([]Feature, 0, len(disasters))

	for _, d := range disasters {
		features = append(features, Feature{
			Type: "Feature",
			ID:   d.ID,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{d.Lng, d.Lat},
			},
			Properties: map[string]any{
				"type":        d.Type,
				"title":       d.Title,
				"location":    d.Location,
				"severity":    d.Severity,
				"magnitude":   d.Magnitude,
				"description": d.Description,
				"timestamp":   d.Timestamp,
				"isActive":    d.IsActive,
			},
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
