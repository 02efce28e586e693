package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"bounty-marketplace-service/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// Records are copied on the way in and out so callers never share memory
// with the store.
type MemoryStore struct {
	mu sync.RWMutex

	bounties     map[string]*models.Bounty
	applications map[string]*models.Application
	submissions  map[string]*models.Submission
	milestones   map[string]*models.MilestoneParticipation
	competitions map[string]*models.CompetitionParticipation
	reputations  map[string]*models.ContributorReputation // keyed by user id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bounties:     make(map[string]*models.Bounty),
		applications: make(map[string]*models.Application),
		submissions:  make(map[string]*models.Submission),
		milestones:   make(map[string]*models.MilestoneParticipation),
		competitions: make(map[string]*models.CompetitionParticipation),
		reputations:  make(map[string]*models.ContributorReputation),
	}
}

func cloneBounty(b *models.Bounty) *models.Bounty {
	c := *b
	c.Tags = append(models.StringList(nil), b.Tags...)
	c.Applicants = append(models.StringList(nil), b.Applicants...)
	c.Competitors = append(models.StringList(nil), b.Competitors...)
	c.Members = append(models.StringList(nil), b.Members...)
	c.Milestones = append([]models.Milestone(nil), b.Milestones...)
	return &c
}

func (s *MemoryStore) CreateBounty(b *models.Bounty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	for i := range b.Milestones {
		b.Milestones[i].BountyID = b.ID
	}
	s.bounties[b.ID] = cloneBounty(b)
	return nil
}

func (s *MemoryStore) GetBountyByID(id string) (*models.Bounty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bounties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBounty(b), nil
}

func (s *MemoryStore) ListBounties(f BountyFilter) ([]models.Bounty, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Bounty
	for _, b := range s.bounties {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.Type != "" && b.Type != f.Type {
			continue
		}
		if f.Difficulty != "" && b.Difficulty != f.Difficulty {
			continue
		}
		if f.ClaimingModel != "" && b.ClaimingModel != f.ClaimingModel {
			continue
		}
		if f.GithubRepo != "" && b.GithubRepo != f.GithubRepo {
			continue
		}
		if f.IssueNumber > 0 && b.IssueNumber != f.IssueNumber {
			continue
		}
		if f.Search != "" {
			lower := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(b.IssueTitle), lower) &&
				!strings.Contains(strings.ToLower(b.Description), lower) {
				continue
			}
		}
		matched = append(matched, *cloneBounty(b))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Limit > 0 {
		offset := 0
		if f.Page > 1 {
			offset = (f.Page - 1) * f.Limit
		}
		if offset >= len(matched) {
			return []models.Bounty{}, total, nil
		}
		end := offset + f.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}
	return matched, total, nil
}

func (s *MemoryStore) UpdateBounty(id string, updates map[string]any) (*models.Bounty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bounties[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyBountyUpdates(b, updates); err != nil {
		return nil, err
	}
	if _, ok := updates["updated_at"]; !ok {
		b.UpdatedAt = time.Now()
	}
	return cloneBounty(b), nil
}

func (s *MemoryStore) AddApplication(a *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}
	cp := *a
	s.applications[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetApplicationByID(id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetApplicationsByBounty(bountyID string) ([]models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var apps []models.Application
	for _, a := range s.applications {
		if a.BountyID == bountyID {
			apps = append(apps, *a)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].SubmittedAt.Before(apps[j].SubmittedAt) })
	return apps, nil
}

func (s *MemoryStore) UpdateApplication(id string, updates map[string]any) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyApplicationUpdates(a, updates); err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) AddSubmission(sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now()
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSubmissionByID(id string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) GetSubmissionsByBounty(bountyID string) ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var subs []models.Submission
	for _, sub := range s.submissions {
		if sub.BountyID == bountyID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (s *MemoryStore) UpdateSubmission(id string, updates map[string]any) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applySubmissionUpdates(sub, updates); err != nil {
		return nil, err
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) AddMilestoneParticipation(p *models.MilestoneParticipation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	if p.LastUpdatedAt.IsZero() {
		p.LastUpdatedAt = now
	}
	cp := *p
	s.milestones[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMilestoneParticipationsByBounty(bountyID string) ([]models.MilestoneParticipation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parts []models.MilestoneParticipation
	for _, p := range s.milestones {
		if p.BountyID == bountyID {
			parts = append(parts, *p)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].JoinedAt.Before(parts[j].JoinedAt) })
	return parts, nil
}

func (s *MemoryStore) UpdateMilestoneParticipation(id string, updates map[string]any) (*models.MilestoneParticipation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.milestones[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyMilestoneParticipationUpdates(p, updates); err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) AddCompetitionParticipation(p *models.CompetitionParticipation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	cp := *p
	s.competitions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCompetitionParticipationsByBounty(bountyID string) ([]models.CompetitionParticipation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parts []models.CompetitionParticipation
	for _, p := range s.competitions {
		if p.BountyID == bountyID {
			parts = append(parts, *p)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].RegisteredAt.Before(parts[j].RegisteredAt) })
	return parts, nil
}

func (s *MemoryStore) UpdateCompetitionParticipation(id string, updates map[string]any) (*models.CompetitionParticipation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.competitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := applyCompetitionParticipationUpdates(p, updates); err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) EnsureReputation(userID string) (*models.ContributorReputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rep, ok := s.reputations[userID]; ok {
		cp := *rep
		return &cp, nil
	}
	rep := &models.ContributorReputation{
		ID:     uuid.NewString(),
		UserID: userID,
		Tier:   models.TierNewcomer,
	}
	rep.CreatedAt = time.Now()
	rep.UpdatedAt = rep.CreatedAt
	s.reputations[userID] = rep
	cp := *rep
	return &cp, nil
}

func (s *MemoryStore) SaveReputation(r *models.ContributorReputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.UpdatedAt = time.Now()
	cp := *r
	s.reputations[r.UserID] = &cp
	return nil
}

func (s *MemoryStore) GetReputationByUser(userID string) (*models.ContributorReputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rep, ok := s.reputations[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rep
	return &cp, nil
}

func (s *MemoryStore) TopReputations(limit, offset int, tier string) ([]models.ContributorReputation, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reps []models.ContributorReputation
	for _, r := range s.reputations {
		if tier != "" && r.Tier != tier {
			continue
		}
		reps = append(reps, *r)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].TotalScore > reps[j].TotalScore })
	total := int64(len(reps))
	if offset >= len(reps) {
		return []models.ContributorReputation{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(reps) {
		end = len(reps)
	}
	return reps[offset:end], total, nil
}
