package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civictrack-be/models"
	"civictrack-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxReasonLength = 500

// ShouldHide reports whether an issue with flagCount flags must be hidden.
// Issues move from visible to hidden only; un-hiding is an admin action.
func ShouldHide(flagCount, threshold int) bool {
	return flagCount >= threshold
}

type FlagResult struct {
	IssueID   primitive.ObjectID `json:"issueId"`
	FlagCount int                `json:"flagCount"`
	IsHidden  bool               `json:"isHidden"`
}

type FlagService struct {
	issues    repository.IssueRepository
	flags     repository.FlagRepository
	tx        repository.Transactor
	threshold int
	now       func() time.Time
}

func NewFlagService(issues repository.IssueRepository, flags repository.FlagRepository, tx repository.Transactor, limits Limits) *FlagService {
	return &FlagService{
		issues:    issues,
		flags:     flags,
		tx:        tx,
		threshold: limits.HideThreshold,
		now:       time.Now,
	}
}

// SubmitFlag records userID's flag on an issue. Checks run in order: the
// issue must exist (ErrNotFound), must not be the user's own report
// (ErrForbidden), and must not already be flagged by the user (ErrConflict).
// The flag insert, the counter increment and the hide transition are applied
// as one transaction.
func (s *FlagService) SubmitFlag(ctx context.Context, issueID, userID primitive.ObjectID, reason *string) (*FlagResult, error) {
	if reason != nil {
		trimmed := strings.TrimSpace(*reason)
		if len(trimmed) > maxReasonLength {
			return nil, invalidArgument("reason must be at most %d characters", maxReasonLength)
		}
		if trimmed == "" {
			reason = nil
		} else {
			reason = &trimmed
		}
	}

	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: issue %s", ErrNotFound, issueID.Hex())
		}
		return nil, err
	}

	if issue.ReportedBy(userID) {
		return nil, fmt.Errorf("%w: you cannot flag your own issue", ErrForbidden)
	}

	result := &FlagResult{IssueID: issueID}
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		flag := &models.Flag{
			ID:        primitive.NewObjectID(),
			IssueID:   issueID,
			FlaggedBy: userID,
			Reason:    reason,
			CreatedAt: s.now(),
		}
		if err := s.flags.Insert(ctx, flag); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: you have already flagged this issue", ErrConflict)
			}
			return err
		}

		tally, err := s.issues.AtomicIncrementFlagCount(ctx, issueID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: issue %s", ErrNotFound, issueID.Hex())
			}
			return err
		}

		result.FlagCount = tally.FlagCount
		result.IsHidden = tally.IsHidden
		if ShouldHide(tally.FlagCount, s.threshold) {
			if err := s.issues.SetHidden(ctx, issueID, true); err != nil {
				return err
			}
			result.IsHidden = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
