// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"

	"github.com/go-co-op/gocron/v2"
)

// StartClaimSweeper reconciles storage with the lifecycle rules once a
// minute: claims that ProcessBountyStatus would already report as released
// get their stored status flipped back to open. Reads stay correct without
// it — the sweep just keeps the persisted rows from drifting.
func (s *BountyService) StartClaimSweeper() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.SweepExpiredClaims(time.Now().UTC())
		}),
	)
}

// SweepExpiredClaims persists auto-releases for every stale single-claim
// bounty as of now. The candidate list is only a hint: each bounty is
// re-loaded and re-projected under its lock before anything is written, so
// a claim landing after the list is never clobbered.
func (s *BountyService) SweepExpiredClaims(now time.Time) {
	claimed, _, err := s.Store.ListBounties(store.BountyFilter{
		Status:        models.StatusClaimed,
		ClaimingModel: models.ModelSingleClaim,
	})
	if err != nil {
		log.Printf("[Sweeper] store error: %v", err)
		return
	}

	for _, candidate := range claimed {
		s.sweepOne(candidate.ID, now)
	}
}

func (s *BountyService) sweepOne(bountyID string, now time.Time) {
	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	b, err := s.Store.GetBountyByID(bountyID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[Sweeper] failed to load bounty %s: %v", bountyID, err)
		}
		return
	}

	effective := ProcessBountyStatus(*b, now)
	if b.Status != models.StatusClaimed || effective.Status != models.StatusOpen {
		return
	}

	if _, err := s.Store.UpdateBounty(bountyID, releaseUpdates(now)); err != nil {
		log.Printf("[Sweeper] failed to release bounty %s: %v", bountyID, err)
		return
	}
	log.Printf("✅ Auto-released bounty: %s", bountyID)
}
