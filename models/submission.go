package models

import "time"

const (
	SubmissionPending  = "pending"
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
)

// Submission is a contributor's work product. Accepted for every claiming
// model except pure milestone bounties, which track progress through
// MilestoneParticipation instead. At most one per (bounty, contributor).
type Submission struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	BountyID        string     `json:"bounty_id" gorm:"index;not null"`
	ContributorID   string     `json:"contributor_id" gorm:"index;not null"`
	ContributorName string     `json:"contributor_name,omitempty"`
	Content         string     `json:"content" gorm:"type:text;not null"` // URL or text description
	AttachmentURL   string     `json:"attachment_url,omitempty"`
	Status          string     `json:"status" gorm:"type:varchar(16);default:'pending'"`
	SubmittedAt     time.Time  `json:"submitted_at" gorm:"autoCreateTime"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	Feedback        string     `json:"feedback,omitempty" gorm:"type:text"`
}
