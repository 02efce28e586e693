// Package store owns all entity persistence. Services depend on the Store
// interface only, so the Postgres-backed implementation can be swapped for
// the in-memory one (tests) without touching business rules.
package store

import (
	"errors"
	"fmt"
	"time"

	"bounty-marketplace-service/models"
)

// ErrNotFound is returned when an entity id does not resolve.
var ErrNotFound = errors.New("record not found")

// BountyFilter narrows ListBounties. Zero values mean "no constraint".
type BountyFilter struct {
	Status        string
	Type          string
	Difficulty    string
	ClaimingModel string
	Search        string // matched against issue title and description
	GithubRepo    string
	IssueNumber   int
	Page          int
	Limit         int
}

// Store is the repository contract. Implementations perform existence checks
// only; per-bounty-per-contributor uniqueness is the caller's job, enforced
// via a prior lookup under the caller's entity lock.
type Store interface {
	CreateBounty(b *models.Bounty) error
	GetBountyByID(id string) (*models.Bounty, error)
	ListBounties(f BountyFilter) ([]models.Bounty, int64, error)
	UpdateBounty(id string, updates map[string]any) (*models.Bounty, error)

	AddApplication(a *models.Application) error
	GetApplicationByID(id string) (*models.Application, error)
	GetApplicationsByBounty(bountyID string) ([]models.Application, error)
	UpdateApplication(id string, updates map[string]any) (*models.Application, error)

	AddSubmission(s *models.Submission) error
	GetSubmissionByID(id string) (*models.Submission, error)
	GetSubmissionsByBounty(bountyID string) ([]models.Submission, error)
	UpdateSubmission(id string, updates map[string]any) (*models.Submission, error)

	AddMilestoneParticipation(p *models.MilestoneParticipation) error
	GetMilestoneParticipationsByBounty(bountyID string) ([]models.MilestoneParticipation, error)
	UpdateMilestoneParticipation(id string, updates map[string]any) (*models.MilestoneParticipation, error)

	AddCompetitionParticipation(p *models.CompetitionParticipation) error
	GetCompetitionParticipationsByBounty(bountyID string) ([]models.CompetitionParticipation, error)
	UpdateCompetitionParticipation(id string, updates map[string]any) (*models.CompetitionParticipation, error)

	EnsureReputation(userID string) (*models.ContributorReputation, error)
	SaveReputation(r *models.ContributorReputation) error
	GetReputationByUser(userID string) (*models.ContributorReputation, error)
	TopReputations(limit, offset int, tier string) ([]models.ContributorReputation, int64, error)
}

// The update appliers below are shared by both implementations so that
// partial-field semantics stay identical across backends. Update maps are
// keyed by column name.

func applyBountyUpdates(b *models.Bounty, updates map[string]any) error {
	for col, v := range updates {
		switch col {
		case "status":
			b.Status = v.(string)
		case "claimed_by":
			b.ClaimedBy = toStringPtr(v)
		case "claimed_at":
			b.ClaimedAt = toTimePtr(v)
		case "claim_expires_at":
			b.ClaimExpiresAt = toTimePtr(v)
		case "last_activity_at":
			b.LastActivityAt = toTimePtr(v)
		case "applicants":
			b.Applicants = v.(models.StringList)
		case "competitors":
			b.Competitors = v.(models.StringList)
		case "members":
			b.Members = v.(models.StringList)
		case "updated_at":
			b.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("bounty update: unknown column %q", col)
		}
	}
	return nil
}

func applyApplicationUpdates(a *models.Application, updates map[string]any) error {
	for col, v := range updates {
		switch col {
		case "status":
			a.Status = v.(string)
		case "feedback":
			a.Feedback = v.(string)
		case "reviewed_at":
			a.ReviewedAt = toTimePtr(v)
		default:
			return fmt.Errorf("application update: unknown column %q", col)
		}
	}
	return nil
}

func applySubmissionUpdates(s *models.Submission, updates map[string]any) error {
	for col, v := range updates {
		switch col {
		case "status":
			s.Status = v.(string)
		case "feedback":
			s.Feedback = v.(string)
		case "attachment_url":
			s.AttachmentURL = v.(string)
		case "reviewed_at":
			s.ReviewedAt = toTimePtr(v)
		default:
			return fmt.Errorf("submission update: unknown column %q", col)
		}
	}
	return nil
}

func applyMilestoneParticipationUpdates(p *models.MilestoneParticipation, updates map[string]any) error {
	for col, v := range updates {
		switch col {
		case "status":
			p.Status = v.(string)
		case "current_milestone":
			p.CurrentMilestone = v.(int)
		case "last_updated_at":
			p.LastUpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("milestone participation update: unknown column %q", col)
		}
	}
	return nil
}

func applyCompetitionParticipationUpdates(p *models.CompetitionParticipation, updates map[string]any) error {
	for col, v := range updates {
		switch col {
		case "status":
			p.Status = v.(string)
		default:
			return fmt.Errorf("competition participation update: unknown column %q", col)
		}
	}
	return nil
}

func toStringPtr(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case *string:
		return t
	case string:
		return &t
	default:
		panic(fmt.Sprintf("expected string value, got %T", v))
	}
}

func toTimePtr(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case *time.Time:
		return t
	case time.Time:
		return &t
	default:
		panic(fmt.Sprintf("expected time value, got %T", v))
	}
}
