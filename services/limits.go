package services

import "civictrack-be/config"

// Limits are the tunable constants of the geo filter and moderation rules.
type Limits struct {
	HideThreshold   int
	MinRadiusKm     float64
	MaxRadiusKm     float64
	DefaultRadiusKm float64
	MaxPageLimit    int
}

func DefaultLimits() Limits {
	return LimitsFromSettings(config.DefaultSettings())
}

func LimitsFromSettings(s config.Settings) Limits {
	return Limits{
		HideThreshold:   s.Moderation.HideThreshold,
		MinRadiusKm:     s.Geo.MinRadiusKm,
		MaxRadiusKm:     s.Geo.MaxRadiusKm,
		DefaultRadiusKm: s.Geo.DefaultRadiusKm,
		MaxPageLimit:    s.Pagination.MaxLimit,
	}
}
