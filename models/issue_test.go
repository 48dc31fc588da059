package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueCategoryValid(t *testing.T) {
	for _, c := range IssueCategories {
		if !c.Valid() {
			t.Errorf("expected %q to be valid", c)
		}
	}
	for _, c := range []IssueCategory{"", "Road", "graffiti"} {
		if c.Valid() {
			t.Errorf("expected %q to be invalid", c)
		}
	}
}

func TestIssueStatusOpen(t *testing.T) {
	if !Reported.Open() || !InProgress.Open() || Resolved.Open() {
		t.Error("only reported and in_progress issues are open")
	}
}

func TestIssueReportedBy(t *testing.T) {
	reporter := primitive.NewObjectID()
	issue := Issue{ReporterID: &reporter}
	if !issue.ReportedBy(reporter) || issue.ReportedBy(primitive.NewObjectID()) {
		t.Error("ReportedBy should match only the reporter")
	}

	anonymous := Issue{}
	if anonymous.ReportedBy(reporter) {
		t.Error("anonymous issues have no reporter")
	}
}
