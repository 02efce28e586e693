package models

import (
	"time"

	"gorm.io/gorm"
)

// Reputation tiers, lowest to highest.
const (
	TierNewcomer    = "NEWCOMER"
	TierRising      = "RISING"
	TierEstablished = "ESTABLISHED"
	TierExpert      = "EXPERT"
	TierLegend      = "LEGEND"
)

// ContributorReputation tracks per-contributor marketplace standing
// (denormalized for cheap leaderboard reads).
type ContributorReputation struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"`

	// Core standing
	TotalScore int64  `json:"total_score" gorm:"default:0"`
	Tier       string `json:"tier" gorm:"type:varchar(16);default:'NEWCOMER'"`

	// Score breakdown by bounty type
	FeaturePoints  int64 `json:"feature_points" gorm:"default:0"`
	BugPoints      int64 `json:"bug_points" gorm:"default:0"`
	DocPoints      int64 `json:"doc_points" gorm:"default:0"`
	RefactorPoints int64 `json:"refactor_points" gorm:"default:0"`
	OtherPoints    int64 `json:"other_points" gorm:"default:0"`

	// Activity counters
	TotalCompleted   int64   `json:"total_completed" gorm:"default:0"`
	TotalEarnings    float64 `json:"total_earnings" gorm:"default:0"`
	EarningsCurrency string  `json:"earnings_currency" gorm:"type:varchar(16);default:'USDC'"`

	LastActiveAt *time.Time `json:"last_active_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
