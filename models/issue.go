package models

import (
	"time"

	"civictrack-be/geo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads        IssueCategory = "roads"
	Lighting     IssueCategory = "lighting"
	WaterSupply  IssueCategory = "water_supply"
	Cleanliness  IssueCategory = "cleanliness"
	PublicSafety IssueCategory = "public_safety"
	Obstructions IssueCategory = "obstructions"
)

var IssueCategories = []IssueCategory{Roads, Lighting, WaterSupply, Cleanliness, PublicSafety, Obstructions}

func (c IssueCategory) Valid() bool {
	for _, known := range IssueCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IssueStatus enum
type IssueStatus string

const (
	Reported   IssueStatus = "reported"
	InProgress IssueStatus = "in_progress"
	Resolved   IssueStatus = "resolved"
)

var IssueStatuses = []IssueStatus{Reported, InProgress, Resolved}

func (s IssueStatus) Valid() bool {
	for _, known := range IssueStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Open reports whether the issue still needs work.
func (s IssueStatus) Open() bool {
	return s == Reported || s == InProgress
}

// Issue represents a civic issue reported by a citizen. Location fields are
// stored flat on the document and never change after creation.
type Issue struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Category    IssueCategory       `bson:"category" json:"category"`
	Status      IssueStatus         `bson:"status" json:"status"`
	Latitude    float64             `bson:"latitude" json:"latitude"`
	Longitude   float64             `bson:"longitude" json:"longitude"`
	Address     *string             `bson:"address,omitempty" json:"address,omitempty"`
	ImageURL    *string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ReporterID  *primitive.ObjectID `bson:"reporterId,omitempty" json:"reporterId"`
	FlagCount   int                 `bson:"flagCount" json:"flagCount"`
	IsHidden    bool                `bson:"isHidden" json:"isHidden"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Location returns the issue coordinates as a geo point.
func (i Issue) Location() geo.Point {
	return geo.Point{Latitude: i.Latitude, Longitude: i.Longitude}
}

// ReportedBy reports whether userID authored the issue. Anonymous issues
// have no author.
func (i Issue) ReportedBy(userID primitive.ObjectID) bool {
	return i.ReporterID != nil && *i.ReporterID == userID
}

// IssueWithDistance annotates an issue with its distance from a query center.
type IssueWithDistance struct {
	Issue      `bson:",inline"`
	DistanceKm *float64 `bson:"-" json:"distanceKm,omitempty"`
}
