package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Settings holds the service configuration. Values come from the optional
// YAML settings file, then environment variables override them.
type Settings struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	Domain      string `yaml:"domain"`

	MongoURI      string `yaml:"mongoUri"`
	MongoDatabase string `yaml:"mongoDatabase"`

	RedisAddress  string `yaml:"redisAddress"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret     string `yaml:"jwtSecret"`
	TokenTTLHours int    `yaml:"tokenTtlHours"`

	AllowedOrigins []string `yaml:"allowedOrigins"`

	Moderation ModerationSettings `yaml:"moderation"`
	Geo        GeoSettings        `yaml:"geo"`
	Pagination PaginationSettings `yaml:"pagination"`
	RateLimit  RateLimitSettings  `yaml:"rateLimit"`
}

type ModerationSettings struct {
	// HideThreshold is the flag count at which an issue is hidden.
	HideThreshold int `yaml:"hideThreshold"`
}

type GeoSettings struct {
	MinRadiusKm     float64 `yaml:"minRadiusKm"`
	MaxRadiusKm     float64 `yaml:"maxRadiusKm"`
	DefaultRadiusKm float64 `yaml:"defaultRadiusKm"`
}

type PaginationSettings struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

type RateLimitSettings struct {
	QueuePrefix  string `yaml:"queuePrefix"`
	IssuesPerDay int    `yaml:"issuesPerDay"`
	FlagsPerDay  int    `yaml:"flagsPerDay"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Port:          "8080",
		Environment:   "development",
		MongoDatabase: "civictrack",
		TokenTTLHours: 72,
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		Moderation: ModerationSettings{HideThreshold: 3},
		Geo: GeoSettings{
			MinRadiusKm:     0.1,
			MaxRadiusKm:     10,
			DefaultRadiusKm: 5,
		},
		Pagination: PaginationSettings{DefaultLimit: 10, MaxLimit: 50},
		RateLimit: RateLimitSettings{
			QueuePrefix:  "civictrack:limit",
			IssuesPerDay: 10,
			FlagsPerDay:  50,
		},
	}
}

// LoadSettings reads the YAML file at path (skipped when path is empty or the
// file does not exist), applies environment overrides and validates the result.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read settings file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &s); err != nil {
				return nil, fmt.Errorf("parse settings file %s: %w", path, err)
			}
		}
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("PORT", &s.Port)
	setString("GO_ENV", &s.Environment)
	setString("DOMAIN", &s.Domain)
	setString("MONGODB_URI", &s.MongoURI)
	setString("MONGODB_DB", &s.MongoDatabase)
	setString("REDIS_ADDRESS", &s.RedisAddress)
	setString("REDIS_PASSWORD", &s.RedisPassword)
	setString("JWT_SECRET", &s.JWTSecret)
	setString("REDIS_QUEUE_FOR_ISSUE_LIMIT", &s.RateLimit.QueuePrefix)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		s.AllowedOrigins = origins
	}

	ints := map[string]*int{
		"TOKEN_TTL_HOURS":     &s.TokenTTLHours,
		"HIDE_THRESHOLD":      &s.Moderation.HideThreshold,
		"PAGE_LIMIT_DEFAULT":  &s.Pagination.DefaultLimit,
		"PAGE_LIMIT_MAX":      &s.Pagination.MaxLimit,
		"ISSUE_LIMIT_PER_DAY": &s.RateLimit.IssuesPerDay,
		"FLAG_LIMIT_PER_DAY":  &s.RateLimit.FlagsPerDay,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			*dst = n
		}
	}

	floats := map[string]*float64{
		"MIN_RADIUS_KM":     &s.Geo.MinRadiusKm,
		"MAX_RADIUS_KM":     &s.Geo.MaxRadiusKm,
		"DEFAULT_RADIUS_KM": &s.Geo.DefaultRadiusKm,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s must be a number: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}

// Validate checks that the settings are usable. Connection strings are not
// checked here; the connectors report missing values.
func (s *Settings) Validate() error {
	if s.Moderation.HideThreshold < 1 {
		return fmt.Errorf("moderation.hideThreshold must be at least 1, got %d", s.Moderation.HideThreshold)
	}
	if s.Geo.MinRadiusKm <= 0 || s.Geo.MaxRadiusKm < s.Geo.MinRadiusKm {
		return fmt.Errorf("invalid radius range [%v, %v]", s.Geo.MinRadiusKm, s.Geo.MaxRadiusKm)
	}
	if s.Geo.DefaultRadiusKm < s.Geo.MinRadiusKm || s.Geo.DefaultRadiusKm > s.Geo.MaxRadiusKm {
		return fmt.Errorf("geo.defaultRadiusKm %v outside [%v, %v]", s.Geo.DefaultRadiusKm, s.Geo.MinRadiusKm, s.Geo.MaxRadiusKm)
	}
	if s.Pagination.MaxLimit < 1 || s.Pagination.DefaultLimit < 1 || s.Pagination.DefaultLimit > s.Pagination.MaxLimit {
		return fmt.Errorf("invalid pagination limits default=%d max=%d", s.Pagination.DefaultLimit, s.Pagination.MaxLimit)
	}
	if s.RateLimit.IssuesPerDay < 1 || s.RateLimit.FlagsPerDay < 1 {
		return fmt.Errorf("rate limits must be positive, got issues=%d flags=%d", s.RateLimit.IssuesPerDay, s.RateLimit.FlagsPerDay)
	}
	if s.TokenTTLHours < 1 {
		return fmt.Errorf("tokenTtlHours must be positive, got %d", s.TokenTTLHours)
	}
	return nil
}

func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}
