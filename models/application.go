package models

import "time"

const (
	ApplicationPending  = "pending"
	ApplicationApproved = "approved"
	ApplicationRejected = "rejected"
)

// Application is a contributor's pitch for an application-model bounty.
// At most one per (bounty, applicant) — duplicates are rejected upstream.
type Application struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	BountyID      string     `json:"bounty_id" gorm:"index;not null"`
	ApplicantID   string     `json:"applicant_id" gorm:"index;not null"`
	ApplicantName string     `json:"applicant_name,omitempty"`
	CoverLetter   string     `json:"cover_letter" gorm:"type:text;not null"`
	PortfolioURL  string     `json:"portfolio_url,omitempty"`
	Status        string     `json:"status" gorm:"type:varchar(16);default:'pending'"`
	SubmittedAt   time.Time  `json:"submitted_at" gorm:"autoCreateTime"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	Feedback      string     `json:"feedback,omitempty" gorm:"type:text"`
}
