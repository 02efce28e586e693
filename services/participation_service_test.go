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

func newTestParticipationService() (*ParticipationService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	locks := utils.NewKeyedMutex()
	rep := NewReputationService(st)
	return NewParticipationService(st, locks, rep), st
}

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var derr *DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, code, derr.Code)
}

// ---- Application model ----

func TestApply_CreatesPendingApplication(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-app",
		ProjectID:     "p-1",
		IssueTitle:    "Rework onboarding",
		ClaimingModel: models.ModelApplication,
	})

	app, err := svc.Apply("b-app", "alice", "I built the previous onboarding flow", "https://alice.dev")
	require.NoError(t, err)

	assert.Equal(t, models.ApplicationPending, app.Status)
	assert.Equal(t, "b-app", app.BountyID)
	assert.Nil(t, app.ReviewedAt)

	// Applicant lands in the denormalized roster too.
	b, err := st.GetBountyByID("b-app")
	require.NoError(t, err)
	assert.True(t, models.InRoster(b.Applicants, "alice"))
}

func TestApply_DuplicateConflictsEvenAfterRejection(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-app",
		ProjectID:     "p-1",
		IssueTitle:    "Rework onboarding",
		ClaimingModel: models.ModelApplication,
	})

	app, err := svc.Apply("b-app", "alice", "cover", "")
	require.NoError(t, err)

	_, err = svc.ReviewApplication(app.ID, "rejected", "not this time")
	require.NoError(t, err)

	_, err = svc.Apply("b-app", "alice", "second try", "")
	assertCode(t, err, CodeConflict)
}

func TestApply_MissingFieldsRejected(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-app",
		ProjectID:     "p-1",
		IssueTitle:    "Rework onboarding",
		ClaimingModel: models.ModelApplication,
	})

	_, err := svc.Apply("b-app", "", "cover", "")
	assertCode(t, err, CodeBadRequest)

	_, err = svc.Apply("b-app", "alice", "", "")
	assertCode(t, err, CodeBadRequest)
}

func TestReviewApplication_ApproveAndRejectVocabulary(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-app",
		ProjectID:     "p-1",
		IssueTitle:    "Rework onboarding",
		ClaimingModel: models.ModelApplication,
	})

	app, err := svc.Apply("b-app", "alice", "cover", "")
	require.NoError(t, err)

	// "accepted" normalizes to the application vocabulary.
	reviewed, err := svc.ReviewApplication(app.ID, "accepted", "welcome aboard")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, reviewed.Status)
	assert.Equal(t, "welcome aboard", reviewed.Feedback)
	require.NotNil(t, reviewed.ReviewedAt)
}

func TestReviewApplication_IsOneWay(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-app",
		ProjectID:     "p-1",
		IssueTitle:    "Rework onboarding",
		ClaimingModel: models.ModelApplication,
	})

	app, err := svc.Apply("b-app", "alice", "cover", "")
	require.NoError(t, err)

	_, err = svc.ReviewApplication(app.ID, "approved", "")
	require.NoError(t, err)

	_, err = svc.ReviewApplication(app.ID, "rejected", "changed my mind")
	assertCode(t, err, CodeConflict)
}

func TestReviewApplication_InvalidStatusRejected(t *testing.T) {
	svc, _ := newTestParticipationService()

	_, err := svc.ReviewApplication("a-1", "maybe", "")
	assertCode(t, err, CodeBadRequest)
}

// ---- Competition model ----

func TestJoinCompetition_RegistersOnce(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-comp",
		ProjectID:     "p-1",
		IssueTitle:    "Logo contest",
		ClaimingModel: models.ModelCompetition,
	})

	p, err := svc.JoinCompetition("b-comp", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.CompetitionRegistered, p.Status)

	_, err = svc.JoinCompetition("b-comp", "alice")
	assertCode(t, err, CodeConflict)

	_, err = svc.JoinCompetition("b-comp", "bob")
	require.NoError(t, err)

	b, err := st.GetBountyByID("b-comp")
	require.NoError(t, err)
	assert.True(t, models.InRoster(b.Competitors, "alice"))
	assert.True(t, models.InRoster(b.Competitors, "bob"))
}

func TestJoinCompetition_WrongModelRejected(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-single",
		ProjectID:     "p-1",
		IssueTitle:    "Fix a bug",
		ClaimingModel: models.ModelSingleClaim,
	})

	_, err := svc.JoinCompetition("b-single", "alice")
	assertCode(t, err, CodeInvalidModel)
}

func TestJoinCompetition_ClosedBountyConflicts(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-done",
		ProjectID:     "p-1",
		IssueTitle:    "Old contest",
		ClaimingModel: models.ModelCompetition,
		Status:        models.StatusClosed,
	})

	_, err := svc.JoinCompetition("b-done", "alice")
	assertCode(t, err, CodeConflict)
}

// ---- Milestone model ----

func seedMilestoneBounty(t *testing.T, st *store.MemoryStore, id string, steps int) {
	t.Helper()
	var plan []models.Milestone
	for i := 0; i < steps; i++ {
		plan = append(plan, models.Milestone{
			ID:         id + "-m" + string(rune('1'+i)),
			Title:      "Step",
			Percentage: 100 / steps,
			SortOrder:  i,
		})
	}
	seedBounty(t, st, &models.Bounty{
		ID:            id,
		ProjectID:     "p-1",
		IssueTitle:    "Phased migration",
		ClaimingModel: models.ModelMilestone,
		Milestones:    plan,
	})
}

func TestJoinMilestone_StartsAtStepOne(t *testing.T) {
	svc, st := newTestParticipationService()
	seedMilestoneBounty(t, st, "b-mile", 3)

	p, err := svc.JoinMilestone("b-mile", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentMilestone)
	assert.Equal(t, models.MilestoneActive, p.Status)

	_, err = svc.JoinMilestone("b-mile", "alice")
	assertCode(t, err, CodeConflict)

	b, err := st.GetBountyByID("b-mile")
	require.NoError(t, err)
	assert.True(t, models.InRoster(b.Members, "alice"))
}

func TestAdvanceMilestone_CapsAtPlanLength(t *testing.T) {
	svc, st := newTestParticipationService()
	seedMilestoneBounty(t, st, "b-mile", 3)

	_, err := svc.JoinMilestone("b-mile", "alice")
	require.NoError(t, err)

	p, err := svc.AdvanceMilestone("b-mile", "alice", "advance")
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentMilestone)
	assert.Equal(t, models.MilestoneAdvanced, p.Status)

	p, err = svc.AdvanceMilestone("b-mile", "alice", "advance")
	require.NoError(t, err)
	assert.Equal(t, 3, p.CurrentMilestone)

	// At the last milestone: advancing again conflicts.
	_, err = svc.AdvanceMilestone("b-mile", "alice", "advance")
	assertCode(t, err, CodeConflict)
}

func TestAdvanceMilestone_CompleteIsPermissiveAndFinal(t *testing.T) {
	svc, st := newTestParticipationService()
	seedMilestoneBounty(t, st, "b-mile", 3)

	_, err := svc.JoinMilestone("b-mile", "alice")
	require.NoError(t, err)

	// Completing from milestone 1 is allowed.
	p, err := svc.AdvanceMilestone("b-mile", "alice", "complete")
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneCompleted, p.Status)
	assert.Equal(t, 1, p.CurrentMilestone)

	_, err = svc.AdvanceMilestone("b-mile", "alice", "advance")
	assertCode(t, err, CodeConflict)

	_, err = svc.AdvanceMilestone("b-mile", "alice", "complete")
	assertCode(t, err, CodeConflict)

	// Completion earns reputation.
	rep, err := st.GetReputationByUser("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rep.TotalCompleted)
	assert.Greater(t, rep.TotalScore, int64(0))
}

func TestAdvanceMilestone_UnknownParticipantAndAction(t *testing.T) {
	svc, st := newTestParticipationService()
	seedMilestoneBounty(t, st, "b-mile", 2)

	_, err := svc.AdvanceMilestone("b-mile", "ghost", "advance")
	assertCode(t, err, CodeNotFound)

	_, err = svc.JoinMilestone("b-mile", "alice")
	require.NoError(t, err)

	_, err = svc.AdvanceMilestone("b-mile", "alice", "teleport")
	assertCode(t, err, CodeBadRequest)

	_, err = svc.AdvanceMilestone("b-mile", "alice", "remove")
	assertCode(t, err, CodeBadRequest)
}

func TestAdvanceMilestone_TotalOverrideWins(t *testing.T) {
	svc, st := newTestParticipationService()
	seedMilestoneBounty(t, st, "b-mile", 5)

	_, err := svc.JoinMilestone("b-mile", "alice")
	require.NoError(t, err)

	// Cache a shorter plan on the participation row.
	parts, err := st.GetMilestoneParticipationsByBounty("b-mile")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	two := 2
	parts[0].TotalMilestones = &two
	require.NoError(t, st.AddMilestoneParticipation(&parts[0]))

	p, err := svc.AdvanceMilestone("b-mile", "alice", "advance")
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentMilestone)

	_, err = svc.AdvanceMilestone("b-mile", "alice", "advance")
	assertCode(t, err, CodeConflict)
}

// ---- Submissions ----

func TestSubmit_RecordsWorkOnce(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-sub",
		ProjectID:     "p-1",
		IssueTitle:    "Write migration guide",
		ClaimingModel: models.ModelMultiWinner,
	})

	sub, err := svc.Submit("b-sub", "alice", "https://github.com/acme/repo/pull/42", "")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPending, sub.Status)

	_, err = svc.Submit("b-sub", "alice", "second attempt", "")
	assertCode(t, err, CodeConflict)

	_, err = svc.Submit("b-sub", "bob", "my take", "")
	require.NoError(t, err)
}

func TestSubmit_MilestoneModelRejected(t *testing.T) {
	svc, st := newTestParticipationService()
	seedMilestoneBounty(t, st, "b-mile", 2)

	_, err := svc.Submit("b-mile", "alice", "work", "")
	assertCode(t, err, CodeInvalidModel)
}

func TestSubmit_ClaimantRefreshesActivityClock(t *testing.T) {
	svc, st := newTestParticipationService()
	alice := "alice"
	claimedAt := time.Now().UTC().Add(-3 * 24 * time.Hour)
	expires := claimedAt.Add(7 * 24 * time.Hour)
	seedBounty(t, st, &models.Bounty{
		ID:             "b-single",
		ProjectID:      "p-1",
		IssueTitle:     "Fix cache stampede",
		ClaimingModel:  models.ModelSingleClaim,
		Status:         models.StatusClaimed,
		ClaimedBy:      &alice,
		ClaimedAt:      &claimedAt,
		ClaimExpiresAt: &expires,
		LastActivityAt: &claimedAt,
	})

	_, err := svc.Submit("b-single", "alice", "PR is up", "")
	require.NoError(t, err)

	b, err := st.GetBountyByID("b-single")
	require.NoError(t, err)
	require.NotNil(t, b.LastActivityAt)
	assert.True(t, b.LastActivityAt.After(claimedAt))

	// A non-claimant submission does not touch the clock.
	before := *b.LastActivityAt
	_, err = svc.Submit("b-single", "bob", "drive-by patch", "")
	require.NoError(t, err)

	b, err = st.GetBountyByID("b-single")
	require.NoError(t, err)
	assert.True(t, b.LastActivityAt.Equal(before))
}

func TestSelectSubmission_AcceptClosesSingleClaimBounty(t *testing.T) {
	svc, st := newTestParticipationService()
	alice := "alice"
	now := time.Now().UTC()
	expires := now.Add(4 * 24 * time.Hour)
	reward := 250.0
	seedBounty(t, st, &models.Bounty{
		ID:             "b-single",
		ProjectID:      "p-1",
		IssueTitle:     "Fix cache stampede",
		Type:           models.BountyTypeBug,
		ClaimingModel:  models.ModelSingleClaim,
		Status:         models.StatusClaimed,
		ClaimedBy:      &alice,
		ClaimedAt:      &now,
		ClaimExpiresAt: &expires,
		LastActivityAt: &now,
		RewardAmount:   &reward,
		RewardCurrency: "USDC",
	})

	sub, err := svc.Submit("b-single", "alice", "PR merged", "")
	require.NoError(t, err)

	reviewed, err := svc.SelectSubmission(sub.ID, "accepted", "great work")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionAccepted, reviewed.Status)

	b, err := st.GetBountyByID("b-single")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, b.Status)

	rep, err := st.GetReputationByUser("alice")
	require.NoError(t, err)
	assert.Equal(t, DefaultScoreWeights.BugPoints, rep.TotalScore)
	assert.Equal(t, reward, rep.TotalEarnings)
}

func TestSelectSubmission_AcceptCrownsCompetitionWinner(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-comp",
		ProjectID:     "p-1",
		IssueTitle:    "Logo contest",
		ClaimingModel: models.ModelCompetition,
	})

	_, err := svc.JoinCompetition("b-comp", "alice")
	require.NoError(t, err)
	_, err = svc.JoinCompetition("b-comp", "bob")
	require.NoError(t, err)

	sub, err := svc.Submit("b-comp", "alice", "final design", "")
	require.NoError(t, err)

	_, err = svc.SelectSubmission(sub.ID, "accepted", "")
	require.NoError(t, err)

	parts, err := st.GetCompetitionParticipationsByBounty("b-comp")
	require.NoError(t, err)
	byUser := map[string]string{}
	for _, p := range parts {
		byUser[p.ContributorID] = p.Status
	}
	assert.Equal(t, models.CompetitionWinner, byUser["alice"])
	assert.Equal(t, models.CompetitionRegistered, byUser["bob"])
}

func TestSelectSubmission_IsOneWay(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-sub",
		ProjectID:     "p-1",
		IssueTitle:    "Write migration guide",
		ClaimingModel: models.ModelMultiWinner,
	})

	sub, err := svc.Submit("b-sub", "alice", "draft", "")
	require.NoError(t, err)

	_, err = svc.SelectSubmission(sub.ID, "rejected", "incomplete")
	require.NoError(t, err)

	_, err = svc.SelectSubmission(sub.ID, "accepted", "on second thought")
	assertCode(t, err, CodeConflict)
}

func TestSelectSubmission_RejectAwardsNothing(t *testing.T) {
	svc, st := newTestParticipationService()
	seedBounty(t, st, &models.Bounty{
		ID:            "b-sub",
		ProjectID:     "p-1",
		IssueTitle:    "Write migration guide",
		ClaimingModel: models.ModelMultiWinner,
	})

	sub, err := svc.Submit("b-sub", "alice", "draft", "")
	require.NoError(t, err)

	_, err = svc.SelectSubmission(sub.ID, "rejected", "")
	require.NoError(t, err)

	_, err = st.GetReputationByUser("alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
