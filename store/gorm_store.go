package store

import (
	"errors"
	"strings"
	"time"

	"bounty-marketplace-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) CreateBounty(b *models.Bounty) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		// Milestones are created in the same transaction, like any child rows.
		if err := tx.Omit("Milestones").Create(b).Error; err != nil {
			return err
		}
		for i := range b.Milestones {
			b.Milestones[i].BountyID = b.ID
			if err := tx.Create(&b.Milestones[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) GetBountyByID(id string) (*models.Bounty, error) {
	var b models.Bounty
	err := s.DB.
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"sort_order\" ASC")
		}).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &b, nil
}

func (s *GormStore) ListBounties(f BountyFilter) ([]models.Bounty, int64, error) {
	q := s.DB.Model(&models.Bounty{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Difficulty != "" {
		q = q.Where("difficulty = ?", f.Difficulty)
	}
	if f.ClaimingModel != "" {
		q = q.Where("claiming_model = ?", f.ClaimingModel)
	}
	if f.GithubRepo != "" {
		q = q.Where("github_repo = ?", f.GithubRepo)
	}
	if f.IssueNumber > 0 {
		q = q.Where("issue_number = ?", f.IssueNumber)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(issue_title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		offset := 0
		if f.Page > 1 {
			offset = (f.Page - 1) * f.Limit
		}
		q = q.Limit(f.Limit).Offset(offset)
	}

	var bounties []models.Bounty
	err := q.
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"sort_order\" ASC")
		}).
		Order("created_at DESC").
		Find(&bounties).Error
	if err != nil {
		return nil, 0, err
	}
	return bounties, total, nil
}

func (s *GormStore) UpdateBounty(id string, updates map[string]any) (*models.Bounty, error) {
	var b models.Bounty
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&b, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if err := applyBountyUpdates(&b, updates); err != nil {
			return err
		}
		// Full save so nil claim fields actually clear their columns.
		return tx.Omit("Milestones").Save(&b).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetBountyByID(id)
}

func (s *GormStore) AddApplication(a *models.Application) error {
	return s.DB.Create(a).Error
}

func (s *GormStore) GetApplicationByID(id string) (*models.Application, error) {
	var a models.Application
	if err := s.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (s *GormStore) GetApplicationsByBounty(bountyID string) ([]models.Application, error) {
	var apps []models.Application
	err := s.DB.Where("bounty_id = ?", bountyID).
		Order("submitted_at ASC").
		Find(&apps).Error
	return apps, err
}

func (s *GormStore) UpdateApplication(id string, updates map[string]any) (*models.Application, error) {
	var a models.Application
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if err := applyApplicationUpdates(&a, updates); err != nil {
			return err
		}
		return tx.Save(&a).Error
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) AddSubmission(sub *models.Submission) error {
	return s.DB.Create(sub).Error
}

func (s *GormStore) GetSubmissionByID(id string) (*models.Submission, error) {
	var sub models.Submission
	if err := s.DB.First(&sub, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &sub, nil
}

func (s *GormStore) GetSubmissionsByBounty(bountyID string) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.DB.Where("bounty_id = ?", bountyID).
		Order("submitted_at ASC").
		Find(&subs).Error
	return subs, err
}

func (s *GormStore) UpdateSubmission(id string, updates map[string]any) (*models.Submission, error) {
	var sub models.Submission
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if err := applySubmissionUpdates(&sub, updates); err != nil {
			return err
		}
		return tx.Save(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *GormStore) AddMilestoneParticipation(p *models.MilestoneParticipation) error {
	return s.DB.Create(p).Error
}

func (s *GormStore) GetMilestoneParticipationsByBounty(bountyID string) ([]models.MilestoneParticipation, error) {
	var parts []models.MilestoneParticipation
	err := s.DB.Where("bounty_id = ?", bountyID).
		Order("joined_at ASC").
		Find(&parts).Error
	return parts, err
}

func (s *GormStore) UpdateMilestoneParticipation(id string, updates map[string]any) (*models.MilestoneParticipation, error) {
	var p models.MilestoneParticipation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if err := applyMilestoneParticipationUpdates(&p, updates); err != nil {
			return err
		}
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) AddCompetitionParticipation(p *models.CompetitionParticipation) error {
	return s.DB.Create(p).Error
}

func (s *GormStore) GetCompetitionParticipationsByBounty(bountyID string) ([]models.CompetitionParticipation, error) {
	var parts []models.CompetitionParticipation
	err := s.DB.Where("bounty_id = ?", bountyID).
		Order("registered_at ASC").
		Find(&parts).Error
	return parts, err
}

func (s *GormStore) UpdateCompetitionParticipation(id string, updates map[string]any) (*models.CompetitionParticipation, error) {
	var p models.CompetitionParticipation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return translateErr(err)
		}
		if err := applyCompetitionParticipationUpdates(&p, updates); err != nil {
			return err
		}
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureReputation ensures a ContributorReputation row exists (idempotent).
func (s *GormStore) EnsureReputation(userID string) (*models.ContributorReputation, error) {
	var rep models.ContributorReputation
	err := s.DB.Where("user_id = ?", userID).First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rep = models.ContributorReputation{
			ID:     uuid.NewString(),
			UserID: userID,
			Tier:   models.TierNewcomer,
		}
		if err := s.DB.Create(&rep).Error; err != nil {
			return nil, err
		}
		return &rep, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (s *GormStore) SaveReputation(r *models.ContributorReputation) error {
	r.UpdatedAt = time.Now()
	return s.DB.Save(r).Error
}

func (s *GormStore) GetReputationByUser(userID string) (*models.ContributorReputation, error) {
	var rep models.ContributorReputation
	if err := s.DB.Where("user_id = ?", userID).First(&rep).Error; err != nil {
		return nil, translateErr(err)
	}
	return &rep, nil
}

func (s *GormStore) TopReputations(limit, offset int, tier string) ([]models.ContributorReputation, int64, error) {
	q := s.DB.Model(&models.ContributorReputation{})
	if tier != "" {
		q = q.Where("tier = ?", tier)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reps []models.ContributorReputation
	err := q.Order("total_score DESC").
		Limit(limit).Offset(offset).
		Find(&reps).Error
	return reps, total, err
}
