package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// CategoryCount is the number of issues filed under one category.
type CategoryCount struct {
	Name  IssueCategory `bson:"name" json:"name"`
	Value int64         `bson:"value" json:"value"`
}

// DailyCount is the number of issues created on one calendar day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// FlaggedIssue summarizes an issue for the moderation dashboard.
type FlaggedIssue struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Category  IssueCategory      `bson:"category" json:"category"`
	FlagCount int                `bson:"flagCount" json:"flagCount"`
	IsHidden  bool               `bson:"isHidden" json:"isHidden"`
}

// Analytics is the admin dashboard summary.
type Analytics struct {
	IssuesByCategory []CategoryCount `json:"issuesByCategory"`
	Last7Days        []DailyCount    `json:"last7Days"`
	TopFlaggedIssues []FlaggedIssue  `json:"topFlaggedIssues"`
	TotalIssues      int64           `json:"totalIssues"`
	TotalFlags       int64           `json:"totalFlags"`
	OpenIssues       int64           `json:"openIssues"`
	HiddenIssues     int64           `json:"hiddenIssues"`
}
