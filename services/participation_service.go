package services

import (
	"errors"
	"log"
	"path/filepath"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"
	"bounty-marketplace-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ParticipationService owns the per-claiming-model transitions: apply/review,
// competition join, milestone join/advance, submit/select. Each operation
// runs its read-check-write under the entity lock for its key.
type ParticipationService struct {
	Store      store.Store
	Locks      *utils.KeyedMutex
	Reputation *ReputationService
}

func NewParticipationService(st store.Store, locks *utils.KeyedMutex, rep *ReputationService) *ParticipationService {
	return &ParticipationService{Store: st, Locks: locks, Reputation: rep}
}

// ---- Application model ----

// Apply creates a pending Application. One per (bounty, applicant): a second
// attempt conflicts even if the first was rejected.
func (s *ParticipationService) Apply(bountyID, applicantID, coverLetter, portfolioURL string) (*models.Application, error) {
	if applicantID == "" || coverLetter == "" {
		return nil, badRequest("Missing required fields")
	}

	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	b, err := loadBounty(s.Store, bountyID)
	if err != nil {
		return nil, err
	}

	existing, err := s.Store.GetApplicationsByBounty(bountyID)
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		if a.ApplicantID == applicantID {
			return nil, conflict("Application already exists")
		}
	}

	app := &models.Application{
		ID:           uuid.NewString(),
		BountyID:     bountyID,
		ApplicantID:  applicantID,
		CoverLetter:  coverLetter,
		PortfolioURL: portfolioURL,
		Status:       models.ApplicationPending,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.Store.AddApplication(app); err != nil {
		return nil, err
	}

	// Denormalized roster; participation rows stay authoritative.
	if !models.InRoster(b.Applicants, applicantID) {
		_, err = s.Store.UpdateBounty(bountyID, map[string]any{
			"applicants": append(b.Applicants, applicantID),
			"updated_at": time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}
	return app, nil
}

// normalizeReviewDecision maps the caller's vocabulary onto the entity's own.
// Applications are approved/rejected; submissions are accepted/rejected.
func normalizeReviewDecision(decision, approvedWord, acceptedWord string) (string, bool) {
	switch decision {
	case approvedWord, acceptedWord:
		return approvedWord, true
	case "rejected":
		return "rejected", true
	default:
		return "", false
	}
}

// ReviewApplication records the maintainer's decision. Review is a one-way
// transition: a second review conflicts instead of silently overwriting.
func (s *ParticipationService) ReviewApplication(appID, decision, feedback string) (*models.Application, error) {
	status, ok := normalizeReviewDecision(decision, models.ApplicationApproved, "accepted")
	if !ok {
		return nil, badRequest("Invalid status")
	}

	unlock := s.Locks.Lock("application:" + appID)
	defer unlock()

	app, err := s.Store.GetApplicationByID(appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Application not found")
		}
		return nil, err
	}
	if app.ReviewedAt != nil {
		return nil, conflict("Application already reviewed")
	}

	now := time.Now().UTC()
	return s.Store.UpdateApplication(appID, map[string]any{
		"status":      status,
		"feedback":    feedback,
		"reviewed_at": now,
	})
}

// ---- Competition model ----

// JoinCompetition registers a contributor for a competition-model bounty.
func (s *ParticipationService) JoinCompetition(bountyID, contributorID string) (*models.CompetitionParticipation, error) {
	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	b, err := loadBounty(s.Store, bountyID)
	if err != nil {
		return nil, err
	}
	if b.ClaimingModel != models.ModelCompetition {
		return nil, invalidModel("Invalid claiming model for this action")
	}

	effective := ProcessBountyStatus(*b, time.Now().UTC())
	if effective.Status != models.StatusOpen {
		return nil, conflict("Bounty is not open for registration")
	}

	existing, err := s.Store.GetCompetitionParticipationsByBounty(bountyID)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.ContributorID == contributorID {
			return nil, conflict("Already joined this competition")
		}
	}

	participation := &models.CompetitionParticipation{
		ID:            uuid.NewString(),
		BountyID:      bountyID,
		ContributorID: contributorID,
		Status:        models.CompetitionRegistered,
		RegisteredAt:  time.Now().UTC(),
	}
	if err := s.Store.AddCompetitionParticipation(participation); err != nil {
		return nil, err
	}

	if !models.InRoster(b.Competitors, contributorID) {
		_, err = s.Store.UpdateBounty(bountyID, map[string]any{
			"competitors": append(b.Competitors, contributorID),
			"updated_at":  time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}
	return participation, nil
}

// ---- Milestone model ----

// JoinMilestone enrolls a contributor in a milestone-model bounty at
// milestone 1.
func (s *ParticipationService) JoinMilestone(bountyID, contributorID string) (*models.MilestoneParticipation, error) {
	if contributorID == "" {
		return nil, badRequest("Missing contributorId")
	}

	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	b, err := loadBounty(s.Store, bountyID)
	if err != nil {
		return nil, err
	}
	if b.ClaimingModel != models.ModelMilestone {
		return nil, invalidModel("Invalid claiming model")
	}

	existing, err := s.Store.GetMilestoneParticipationsByBounty(bountyID)
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.ContributorID == contributorID {
			return nil, conflict("Already joined this bounty")
		}
	}

	now := time.Now().UTC()
	participation := &models.MilestoneParticipation{
		ID:               uuid.NewString(),
		BountyID:         bountyID,
		ContributorID:    contributorID,
		CurrentMilestone: 1,
		Status:           models.MilestoneActive,
		JoinedAt:         now,
		LastUpdatedAt:    now,
	}
	if err := s.Store.AddMilestoneParticipation(participation); err != nil {
		return nil, err
	}

	if !models.InRoster(b.Members, contributorID) {
		_, err = s.Store.UpdateBounty(bountyID, map[string]any{
			"members":    append(b.Members, contributorID),
			"updated_at": now,
		})
		if err != nil {
			return nil, err
		}
	}
	return participation, nil
}

// AdvanceMilestone applies one of the milestone actions:
//   - advance: +1 milestone, capped at the plan length;
//   - complete: mark done at the current index (no last-milestone requirement);
//   - remove: reserved, always rejected.
func (s *ParticipationService) AdvanceMilestone(bountyID, contributorID, action string) (*models.MilestoneParticipation, error) {
	if contributorID == "" || action == "" {
		return nil, badRequest("Missing required fields")
	}
	if action != "advance" && action != "complete" && action != "remove" {
		return nil, badRequest("Invalid action")
	}

	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	participations, err := s.Store.GetMilestoneParticipationsByBounty(bountyID)
	if err != nil {
		return nil, err
	}
	var participation *models.MilestoneParticipation
	for i := range participations {
		if participations[i].ContributorID == contributorID {
			participation = &participations[i]
			break
		}
	}
	if participation == nil {
		return nil, notFound("Participation not found")
	}

	b, err := loadBounty(s.Store, bountyID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"last_updated_at": time.Now().UTC(),
	}

	totalMilestones := len(b.Milestones)
	if participation.TotalMilestones != nil && *participation.TotalMilestones > 0 {
		totalMilestones = *participation.TotalMilestones
	}

	switch action {
	case "advance":
		if participation.Status == models.MilestoneCompleted {
			return nil, conflict("Cannot advance completed participation")
		}
		if totalMilestones == 0 {
			return nil, serverError("Cannot determine total milestones")
		}
		if participation.CurrentMilestone >= totalMilestones {
			return nil, conflict("Already at last milestone")
		}
		updates["current_milestone"] = participation.CurrentMilestone + 1
		updates["status"] = models.MilestoneAdvanced
	case "complete":
		if participation.Status == models.MilestoneCompleted {
			return nil, conflict("Already completed")
		}
		updates["status"] = models.MilestoneCompleted
	case "remove":
		return nil, badRequest("Remove action not supported yet")
	}

	updated, err := s.Store.UpdateMilestoneParticipation(participation.ID, updates)
	if err != nil {
		return nil, err
	}

	if action == "complete" && s.Reputation != nil {
		if err := s.Reputation.RecordCompletion(contributorID, b); err != nil {
			log.Printf("WARN reputation update failed for %s: %v", contributorID, err)
		}
	}
	return updated, nil
}

// ---- Submissions (single-claim / competition / multi-winner / application) ----

var submissionModels = map[string]bool{
	models.ModelSingleClaim: true,
	models.ModelCompetition: true,
	models.ModelMultiWinner: true,
	models.ModelApplication: true,
}

// Submit records a contributor's work product. Milestone bounties track
// progress through their own mechanism and reject submissions.
func (s *ParticipationService) Submit(bountyID, contributorID, content, attachmentURL string) (*models.Submission, error) {
	if contributorID == "" || content == "" {
		return nil, badRequest("Missing required fields")
	}

	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	b, err := loadBounty(s.Store, bountyID)
	if err != nil {
		return nil, err
	}
	if !submissionModels[b.ClaimingModel] {
		return nil, invalidModel("Submission not allowed for this bounty type")
	}

	existing, err := s.Store.GetSubmissionsByBounty(bountyID)
	if err != nil {
		return nil, err
	}
	for _, sub := range existing {
		if sub.ContributorID == contributorID {
			return nil, conflict("Duplicate submission")
		}
	}

	now := time.Now().UTC()
	submission := &models.Submission{
		ID:            uuid.NewString(),
		BountyID:      bountyID,
		ContributorID: contributorID,
		Content:       content,
		AttachmentURL: attachmentURL,
		Status:        models.SubmissionPending,
		SubmittedAt:   now,
	}
	if err := s.Store.AddSubmission(submission); err != nil {
		return nil, err
	}

	// Submitting counts as activity for the anti-squatting clock.
	if b.ClaimingModel == models.ModelSingleClaim && b.ClaimedBy != nil && *b.ClaimedBy == contributorID {
		_, err = s.Store.UpdateBounty(bountyID, map[string]any{
			"last_activity_at": now,
			"updated_at":       now,
		})
		if err != nil {
			return nil, err
		}
	}
	return submission, nil
}

// SelectSubmission records the maintainer's accept/reject decision.
// One-way like application review. Acceptance cascades: the claimant's
// accepted submission closes a single-claim bounty, a competitor's flips
// their participation to winner, and either way the contributor earns
// reputation.
func (s *ParticipationService) SelectSubmission(subID, decision, feedback string) (*models.Submission, error) {
	status, ok := normalizeReviewDecision(decision, models.SubmissionAccepted, "approved")
	if !ok {
		return nil, badRequest("Invalid status")
	}

	unlock := s.Locks.Lock("submission:" + subID)
	defer unlock()

	sub, err := s.Store.GetSubmissionByID(subID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Submission not found")
		}
		return nil, err
	}
	if sub.ReviewedAt != nil {
		return nil, conflict("Submission already reviewed")
	}

	now := time.Now().UTC()
	updated, err := s.Store.UpdateSubmission(subID, map[string]any{
		"status":      status,
		"feedback":    feedback,
		"reviewed_at": now,
	})
	if err != nil {
		return nil, err
	}

	if status == models.SubmissionAccepted {
		if err := s.acceptCascade(updated, now); err != nil {
			log.Printf("WARN accept cascade failed for submission %s: %v", subID, err)
		}
	}
	return updated, nil
}

func (s *ParticipationService) acceptCascade(sub *models.Submission, now time.Time) error {
	unlock := s.Locks.Lock("bounty:" + sub.BountyID)
	defer unlock()

	b, err := s.Store.GetBountyByID(sub.BountyID)
	if err != nil {
		return err
	}

	switch b.ClaimingModel {
	case models.ModelSingleClaim:
		if b.ClaimedBy != nil && *b.ClaimedBy == sub.ContributorID {
			if _, err := s.Store.UpdateBounty(b.ID, map[string]any{
				"status":     models.StatusClosed,
				"updated_at": now,
			}); err != nil {
				return err
			}
			log.Printf("🏁 [BOUNTY] %s closed — submission by %s accepted", b.ID, sub.ContributorID)
		}
	case models.ModelCompetition:
		parts, err := s.Store.GetCompetitionParticipationsByBounty(b.ID)
		if err != nil {
			return err
		}
		for _, p := range parts {
			if p.ContributorID == sub.ContributorID {
				if _, err := s.Store.UpdateCompetitionParticipation(p.ID, map[string]any{
					"status": models.CompetitionWinner,
				}); err != nil {
					return err
				}
				break
			}
		}
	}

	if s.Reputation != nil {
		return s.Reputation.RecordCompletion(sub.ContributorID, b)
	}
	return nil
}

// ---- Fiber handlers ----

// firstOf returns the first non-empty value. Clients send either camelCase
// or snake_case body keys; both are accepted.
func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *ParticipationService) ApplyToBounty(c *fiber.Ctx) error {
	type Req struct {
		ApplicantID       string `json:"applicant_id"`
		ApplicantIDCamel  string `json:"applicantId"`
		CoverLetter       string `json:"cover_letter"`
		CoverLetterCamel  string `json:"coverLetter"`
		PortfolioURL      string `json:"portfolio_url"`
		PortfolioURLCamel string `json:"portfolioUrl"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	app, err := s.Apply(c.Params("id"),
		firstOf(req.ApplicantID, req.ApplicantIDCamel),
		firstOf(req.CoverLetter, req.CoverLetterCamel),
		firstOf(req.PortfolioURL, req.PortfolioURLCamel))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, app)
}

func (s *ParticipationService) ReviewApplicationHandler(c *fiber.Ctx) error {
	type Req struct {
		Status   string `json:"status"`
		Feedback string `json:"feedback,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	app, err := s.ReviewApplication(c.Params("id"), req.Status, req.Feedback)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, app)
}

func (s *ParticipationService) JoinCompetitionHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	participation, err := s.JoinCompetition(c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, participation)
}

func (s *ParticipationService) JoinMilestoneHandler(c *fiber.Ctx) error {
	type Req struct {
		ContributorID      string `json:"contributor_id"`
		ContributorIDCamel string `json:"contributorId"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	participation, err := s.JoinMilestone(c.Params("id"), firstOf(req.ContributorID, req.ContributorIDCamel))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, participation)
}

func (s *ParticipationService) AdvanceMilestoneHandler(c *fiber.Ctx) error {
	type Req struct {
		ContributorID      string `json:"contributor_id"`
		ContributorIDCamel string `json:"contributorId"`
		Action             string `json:"action"` // advance | complete | remove
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	participation, err := s.AdvanceMilestone(c.Params("id"), firstOf(req.ContributorID, req.ContributorIDCamel), req.Action)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, participation)
}

// SubmitWorkHandler accepts either a JSON body or a multipart form with an
// optional attachment uploaded to R2.
func (s *ParticipationService) SubmitWorkHandler(c *fiber.Ctx) error {
	var contributorID, content, attachmentURL string

	if form, err := c.MultipartForm(); err == nil && form != nil {
		contributorID = firstOf(c.FormValue("contributor_id"), c.FormValue("contributorId"))
		content = c.FormValue("content")
		if attachment, err := c.FormFile("attachment"); err == nil && attachment.Size > 0 {
			ext := filepath.Ext(attachment.Filename)
			key := "bounties/submissions/" + uuid.NewString() + ext
			url, err := utils.UploadFileToR2(attachment, key)
			if err != nil {
				return c.Status(500).JSON(fiber.Map{"error": "failed to upload attachment"})
			}
			attachmentURL = url
		}
	} else {
		type Req struct {
			ContributorID      string `json:"contributor_id"`
			ContributorIDCamel string `json:"contributorId"`
			Content            string `json:"content"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
		}
		contributorID = firstOf(req.ContributorID, req.ContributorIDCamel)
		content = req.Content
	}

	submission, err := s.Submit(c.Params("id"), contributorID, content, attachmentURL)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, submission)
}

func (s *ParticipationService) SelectSubmissionHandler(c *fiber.Ctx) error {
	type Req struct {
		Status   string `json:"status"`
		Feedback string `json:"feedback,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	sub, err := s.SelectSubmission(c.Params("id"), req.Status, req.Feedback)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, sub)
}

func (s *ParticipationService) GetBountyApplications(c *fiber.Ctx) error {
	bountyID := c.Params("id")
	if _, err := loadBounty(s.Store, bountyID); err != nil {
		return respondError(c, err)
	}
	apps, err := s.Store.GetApplicationsByBounty(bountyID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, apps)
}

func (s *ParticipationService) GetBountySubmissions(c *fiber.Ctx) error {
	bountyID := c.Params("id")
	if _, err := loadBounty(s.Store, bountyID); err != nil {
		return respondError(c, err)
	}
	subs, err := s.Store.GetSubmissionsByBounty(bountyID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, subs)
}

// GetBountyParticipants returns both participation kinds for a bounty.
func (s *ParticipationService) GetBountyParticipants(c *fiber.Ctx) error {
	bountyID := c.Params("id")
	if _, err := loadBounty(s.Store, bountyID); err != nil {
		return respondError(c, err)
	}
	milestoneParts, err := s.Store.GetMilestoneParticipationsByBounty(bountyID)
	if err != nil {
		return respondError(c, err)
	}
	competitionParts, err := s.Store.GetCompetitionParticipationsByBounty(bountyID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, fiber.Map{
		"milestone_participations":   milestoneParts,
		"competition_participations": competitionParts,
	})
}
