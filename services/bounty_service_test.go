package services

import (
	"testing"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"
	"bounty-marketplace-service/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBountyService() (*BountyService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return NewBountyService(st, utils.NewKeyedMutex()), st
}

func seedBounty(t *testing.T, st *store.MemoryStore, b *models.Bounty) {
	t.Helper()
	if b.Status == "" {
		b.Status = models.StatusOpen
	}
	require.NoError(t, st.CreateBounty(b))
}

func TestClaim_OpenSingleClaimSucceeds(t *testing.T) {
	svc, st := newTestBountyService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-1",
		ProjectID:     "p-1",
		IssueTitle:    "Add pagination",
		ClaimingModel: models.ModelSingleClaim,
	})

	updated, err := svc.Claim("b-1", "alice")
	require.NoError(t, err)

	assert.Equal(t, models.StatusClaimed, updated.Status)
	require.NotNil(t, updated.ClaimedBy)
	assert.Equal(t, "alice", *updated.ClaimedBy)
	require.NotNil(t, updated.ClaimedAt)
	require.NotNil(t, updated.ClaimExpiresAt)
	assert.WithinDuration(t,
		updated.ClaimedAt.Add(ClaimWindowDays*24*time.Hour),
		*updated.ClaimExpiresAt, time.Second)
}

func TestClaim_AlreadyClaimedConflicts(t *testing.T) {
	svc, st := newTestBountyService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-1",
		ProjectID:     "p-1",
		IssueTitle:    "Add pagination",
		ClaimingModel: models.ModelSingleClaim,
	})

	_, err := svc.Claim("b-1", "alice")
	require.NoError(t, err)

	_, err = svc.Claim("b-1", "bob")
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, CodeConflict, derr.Code)

	// First claimant still holds it.
	b, err := st.GetBountyByID("b-1")
	require.NoError(t, err)
	require.NotNil(t, b.ClaimedBy)
	assert.Equal(t, "alice", *b.ClaimedBy)
}

func TestClaim_ExpiredClaimIsReclaimable(t *testing.T) {
	svc, st := newTestBountyService()
	alice := "alice"
	past := time.Now().UTC().Add(-10 * 24 * time.Hour)
	expired := time.Now().UTC().Add(-3 * 24 * time.Hour)
	seedBounty(t, st, &models.Bounty{
		ID:             "b-1",
		ProjectID:      "p-1",
		IssueTitle:     "Add pagination",
		ClaimingModel:  models.ModelSingleClaim,
		Status:         models.StatusClaimed,
		ClaimedBy:      &alice,
		ClaimedAt:      &past,
		ClaimExpiresAt: &expired,
		LastActivityAt: &past,
	})

	updated, err := svc.Claim("b-1", "bob")
	require.NoError(t, err)
	require.NotNil(t, updated.ClaimedBy)
	assert.Equal(t, "bob", *updated.ClaimedBy)
	assert.Equal(t, models.StatusClaimed, updated.Status)
}

func TestClaim_ReclaimAfterInactivityReleaseSticks(t *testing.T) {
	svc, st := newTestBountyService()
	alice := "alice"
	now := time.Now().UTC()
	stale := now.Add(-10 * 24 * time.Hour)
	stillValid := now.Add(2 * 24 * time.Hour)
	seedBounty(t, st, &models.Bounty{
		ID:             "b-1",
		ProjectID:      "p-1",
		IssueTitle:     "Add pagination",
		ClaimingModel:  models.ModelSingleClaim,
		Status:         models.StatusClaimed,
		ClaimedBy:      &alice,
		ClaimedAt:      &stale,
		ClaimExpiresAt: &stillValid,
		LastActivityAt: &stale, // inactive long enough to release
	})

	updated, err := svc.Claim("b-1", "bob")
	require.NoError(t, err)
	require.NotNil(t, updated.ClaimedBy)
	assert.Equal(t, "bob", *updated.ClaimedBy)

	// The stale activity clock must not survive the release: the fresh
	// claim projects as claimed, not as instantly re-released.
	effective := ProcessBountyStatus(*updated, time.Now().UTC())
	assert.Equal(t, models.StatusClaimed, effective.Status)
	require.NotNil(t, effective.ClaimedBy)
	assert.Equal(t, "bob", *effective.ClaimedBy)
}

func TestClaim_WrongModelRejected(t *testing.T) {
	svc, st := newTestBountyService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-comp",
		ProjectID:     "p-1",
		IssueTitle:    "UI challenge",
		ClaimingModel: models.ModelCompetition,
	})

	_, err := svc.Claim("b-comp", "alice")
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, CodeInvalidModel, derr.Code)
}

func TestClaim_UnknownBountyNotFound(t *testing.T) {
	svc, _ := newTestBountyService()

	_, err := svc.Claim("nope", "alice")
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, CodeNotFound, derr.Code)
}

func TestClaim_ClosedBountyConflicts(t *testing.T) {
	svc, st := newTestBountyService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-done",
		ProjectID:     "p-1",
		IssueTitle:    "Shipped already",
		ClaimingModel: models.ModelSingleClaim,
		Status:        models.StatusClosed,
	})

	_, err := svc.Claim("b-done", "alice")
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, CodeConflict, derr.Code)
}
