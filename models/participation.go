package models

import "time"

const (
	MilestoneActive    = "active"
	MilestoneAdvanced  = "advanced"
	MilestoneCompleted = "completed"
)

// MilestoneParticipation tracks one contributor's progress through a
// milestone-model bounty. CurrentMilestone is a 1-based index that only moves
// forward and never exceeds the milestone count; once completed, no further
// advance is permitted.
type MilestoneParticipation struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	BountyID         string    `json:"bounty_id" gorm:"index;not null"`
	ContributorID    string    `json:"contributor_id" gorm:"index;not null"`
	ContributorName  string    `json:"contributor_name,omitempty"`
	CurrentMilestone int       `json:"current_milestone" gorm:"default:1"`
	Status           string    `json:"status" gorm:"type:varchar(16);default:'active'"`
	JoinedAt         time.Time `json:"joined_at" gorm:"autoCreateTime"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
	// Cached override of the bounty's milestone count.
	TotalMilestones *int `json:"total_milestones,omitempty"`
}

const (
	CompetitionRegistered   = "registered"
	CompetitionQualified    = "qualified"
	CompetitionDisqualified = "disqualified"
	CompetitionWinner       = "winner"
)

// CompetitionParticipation is one contributor's entry into a
// competition-model bounty. At most one per (bounty, contributor).
type CompetitionParticipation struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	BountyID      string    `json:"bounty_id" gorm:"index;not null"`
	ContributorID string    `json:"contributor_id" gorm:"index;not null"`
	Status        string    `json:"status" gorm:"type:varchar(16);default:'registered'"`
	RegisteredAt  time.Time `json:"registered_at" gorm:"autoCreateTime"`
}
