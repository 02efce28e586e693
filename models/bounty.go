package models

import (
	"time"
)

const (
	BountyTypeFeature       = "feature"
	BountyTypeBug           = "bug"
	BountyTypeDocumentation = "documentation"
	BountyTypeRefactor      = "refactor"
	BountyTypeOther         = "other"
)

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

const (
	StatusOpen    = "open"
	StatusClaimed = "claimed"
	StatusClosed  = "closed"
)

// Claiming model is fixed at creation and never changes.
const (
	ModelSingleClaim = "single-claim"
	ModelApplication = "application"
	ModelCompetition = "competition"
	ModelMilestone   = "milestone"
	ModelMultiWinner = "multi-winner"
)

// StringList is stored as a JSON column. Used for tags and the denormalized
// participant rosters.
type StringList []string

// Bounty represents a funded unit of work tied to an external GitHub issue.
type Bounty struct {
	ID         string `json:"id" gorm:"primaryKey"`
	Type       string `json:"type" gorm:"type:varchar(24);not null;default:'other'"`
	Difficulty string `json:"difficulty,omitempty" gorm:"type:varchar(16)"`

	// Project / issue linkage
	ProjectID      string `json:"project_id" gorm:"index;not null"`
	ProjectName    string `json:"project_name"`
	ProjectSlug    string `json:"project_slug" gorm:"index"`
	ProjectLogoURL string `json:"project_logo_url,omitempty"`
	IssueTitle     string `json:"issue_title" gorm:"not null"`
	IssueNumber    int    `json:"issue_number"`
	GithubRepo     string `json:"github_repo" gorm:"index"` // owner/repo
	GithubIssueURL string `json:"github_issue_url"`

	Description string     `json:"description" gorm:"type:text"`
	Tags        StringList `json:"tags" gorm:"serializer:json"`

	// Economics
	RewardAmount   *float64 `json:"reward_amount" gorm:"check:reward_amount >= 0"`
	RewardCurrency string   `json:"reward_currency" gorm:"type:varchar(16);default:'USDC'"`

	// Lifecycle
	Status        string `json:"status" gorm:"type:varchar(16);default:'open';index"`
	ClaimingModel string `json:"claiming_model" gorm:"type:varchar(24);not null;index"`

	// Claim bookkeeping — meaningful only for single-claim.
	// Invariant: status=claimed implies ClaimedBy and ClaimExpiresAt are set;
	// status=open implies all four are nil.
	ClaimedBy      *string    `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	// Milestone-model bounties carry an ordered milestone plan whose
	// percentages sum to 100.
	Milestones []Milestone `json:"milestones,omitempty" gorm:"foreignKey:BountyID"`

	// Denormalized rosters for cheap "have I already joined" checks.
	// The participation tables stay authoritative.
	Applicants  StringList `json:"applicants,omitempty" gorm:"serializer:json"`
	Competitors StringList `json:"competitors,omitempty" gorm:"serializer:json"`
	Members     StringList `json:"members,omitempty" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Milestone is one step of a milestone-model bounty's plan.
type Milestone struct {
	ID          string `json:"id" gorm:"primaryKey"`
	BountyID    string `json:"bounty_id" gorm:"not null;index"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description"`
	Percentage  int    `json:"percentage" gorm:"not null"`
	SortOrder   int    `json:"sort_order" gorm:"column:sort_order;default:0"`
}

// InRoster reports whether userID is already present in a roster list.
func InRoster(roster StringList, userID string) bool {
	for _, id := range roster {
		if id == userID {
			return true
		}
	}
	return false
}
