package services

import (
	"time"

	"bounty-marketplace-service/models"
)

// Anti-squatting thresholds (in days).
const (
	// InactivityThresholdDays releases a claim after strictly more than this
	// many whole days without activity.
	InactivityThresholdDays = 7
	// ClaimWindowDays is how long a single claim lasts.
	ClaimWindowDays = 7
)

// inactivityThreshold as a duration. Exactly 7 days of inactivity does not
// release; one second past it does.
const inactivityThreshold = InactivityThresholdDays * 24 * time.Hour

// ProcessBountyStatus computes the effective state of a bounty as of now,
// without an external scheduler:
//   - a single-claim bounty whose claim window expired reverts to open;
//   - a single-claim bounty inactive for more than InactivityThresholdDays
//     whole days reverts to open.
//
// Both checks are evaluated against the input bounty, not cascaded; either
// one triggers the release. The input is never mutated — callers get a copy.
// Closed bounties and every other claiming model pass through unchanged.
//
// Called before any write transition (so a stale claim reads as open) and on
// every list/detail read (so the UI sees auto-releases without a background
// sweep persisting them first).
func ProcessBountyStatus(bounty models.Bounty, now time.Time) models.Bounty {
	if bounty.Status != models.StatusClaimed && bounty.Status != models.StatusOpen {
		return bounty
	}

	if bounty.ClaimingModel != models.ModelSingleClaim || bounty.Status != models.StatusClaimed {
		return bounty
	}

	release := false

	if bounty.ClaimExpiresAt != nil && bounty.ClaimExpiresAt.Before(now) {
		release = true
	}

	if bounty.LastActivityAt != nil && now.Sub(*bounty.LastActivityAt) > inactivityThreshold {
		release = true
	}

	if release {
		bounty.Status = models.StatusOpen
		bounty.ClaimedBy = nil
		bounty.ClaimedAt = nil
		bounty.ClaimExpiresAt = nil
		// The activity clock belongs to the released claim. Leaving it set
		// would instantly re-release the next claim.
		bounty.LastActivityAt = nil
	}
	return bounty
}

// releaseUpdates is the column set that persists an auto-release detected by
// ProcessBountyStatus.
func releaseUpdates(now time.Time) map[string]any {
	return map[string]any{
		"status":           models.StatusOpen,
		"claimed_by":       nil,
		"claimed_at":       nil,
		"claim_expires_at": nil,
		"last_activity_at": nil,
		"updated_at":       now,
	}
}
