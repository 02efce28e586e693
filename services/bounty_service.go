package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"
	"bounty-marketplace-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type BountyService struct {
	Store store.Store
	Locks *utils.KeyedMutex
}

func NewBountyService(st store.Store, locks *utils.KeyedMutex) *BountyService {
	return &BountyService{Store: st, Locks: locks}
}

var claimingModels = map[string]bool{
	models.ModelSingleClaim: true,
	models.ModelApplication: true,
	models.ModelCompetition: true,
	models.ModelMilestone:   true,
	models.ModelMultiWinner: true,
}

var bountyTypes = map[string]bool{
	models.BountyTypeFeature:       true,
	models.BountyTypeBug:           true,
	models.BountyTypeDocumentation: true,
	models.BountyTypeRefactor:      true,
	models.BountyTypeOther:         true,
}

// Claim executes the single-claim transition. Preconditions in order: bounty
// exists, model is single-claim, effective status is open. A stale claim
// (expired or inactive) counts as open — the new claim overwrites it.
func (s *BountyService) Claim(bountyID, actorID string) (*models.Bounty, error) {
	unlock := s.Locks.Lock("bounty:" + bountyID)
	defer unlock()

	b, err := s.Store.GetBountyByID(bountyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Bounty not found")
		}
		return nil, err
	}

	if b.ClaimingModel != models.ModelSingleClaim {
		return nil, invalidModel("Invalid claiming model for this action")
	}

	now := time.Now().UTC()
	effective := ProcessBountyStatus(*b, now)
	if effective.Status != models.StatusOpen {
		return nil, conflict("Bounty is not available")
	}

	expires := now.Add(ClaimWindowDays * 24 * time.Hour)
	updated, err := s.Store.UpdateBounty(bountyID, map[string]any{
		"status":           models.StatusClaimed,
		"claimed_by":       actorID,
		"claimed_at":       now,
		"claim_expires_at": expires,
		// A stale predecessor's activity clock must not carry over; the new
		// claimant's clock starts on their first activity.
		"last_activity_at": nil,
		"updated_at":       now,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🪙 [BOUNTY] %s claimed by %s (expires %s)", bountyID, actorID, expires.Format(time.RFC3339))
	return updated, nil
}

// ClaimBounty handles POST /bounties/:id/claim.
func (s *BountyService) ClaimBounty(c *fiber.Ctx) error {
	bountyID := c.Params("id")
	userID := c.Locals("user_id").(string)

	type Req struct {
		ContributorID      string `json:"contributor_id"`
		ContributorIDCamel string `json:"contributorId"`
	}
	var req Req
	// Body is optional for claim; the authenticated identity wins.
	_ = c.BodyParser(&req)

	if bodyID := firstOf(req.ContributorID, req.ContributorIDCamel); bodyID != "" && bodyID != userID {
		return respondError(c, forbidden("Contributor ID mismatch"))
	}

	updated, err := s.Claim(bountyID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, updated)
}

// CreateBounty handles POST /bounties (multipart form, optional project logo).
func (s *BountyService) CreateBounty(c *fiber.Ctx) error {
	bountyType := c.FormValue("type", models.BountyTypeOther)
	difficulty := c.FormValue("difficulty")
	projectID := c.FormValue("project_id")
	projectName := c.FormValue("project_name")
	issueTitle := c.FormValue("issue_title")
	issueNumberStr := c.FormValue("issue_number")
	githubRepo := c.FormValue("github_repo")
	githubIssueURL := c.FormValue("github_issue_url")
	description := c.FormValue("description")
	rewardAmountStr := c.FormValue("reward_amount")
	rewardCurrency := c.FormValue("reward_currency", "USDC")
	claimingModel := c.FormValue("claiming_model")
	tagsStr := c.FormValue("tags")            // comma-separated
	milestonesJSON := c.FormValue("milestones") // JSON array for milestone-model bounties

	if projectID == "" || issueTitle == "" || claimingModel == "" {
		return c.Status(400).JSON(fiber.Map{"error": "project_id, issue_title, and claiming_model are required"})
	}
	if !claimingModels[claimingModel] {
		return c.Status(400).JSON(fiber.Map{"error": "unknown claiming_model"})
	}
	if !bountyTypes[bountyType] {
		return c.Status(400).JSON(fiber.Map{"error": "unknown bounty type"})
	}
	if difficulty != "" &&
		difficulty != models.DifficultyBeginner &&
		difficulty != models.DifficultyIntermediate &&
		difficulty != models.DifficultyAdvanced {
		return c.Status(400).JSON(fiber.Map{"error": "unknown difficulty"})
	}

	issueNumber := 0
	if issueNumberStr != "" {
		n, err := strconv.Atoi(issueNumberStr)
		if err != nil || n < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "issue_number must be a non-negative integer"})
		}
		issueNumber = n
	}

	var rewardAmount *float64
	if rewardAmountStr != "" {
		f, err := strconv.ParseFloat(rewardAmountStr, 64)
		if err != nil || f < 0 {
			return c.Status(400).JSON(fiber.Map{"error": "reward_amount must be a non-negative number"})
		}
		rewardAmount = &f
	}

	var tags models.StringList
	for _, t := range strings.Split(tagsStr, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}

	var milestones []models.Milestone
	if milestonesJSON != "" {
		type MilestoneReq struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Percentage  int    `json:"percentage"`
		}
		var reqs []MilestoneReq
		if err := json.Unmarshal([]byte(milestonesJSON), &reqs); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid milestones JSON"})
		}
		sum := 0
		for i, m := range reqs {
			if m.Title == "" {
				return c.Status(400).JSON(fiber.Map{"error": "every milestone needs a title"})
			}
			sum += m.Percentage
			milestones = append(milestones, models.Milestone{
				ID:          uuid.NewString(),
				Title:       m.Title,
				Description: m.Description,
				Percentage:  m.Percentage,
				SortOrder:   i,
			})
		}
		if sum != 100 {
			return c.Status(400).JSON(fiber.Map{"error": "milestone percentages must sum to 100"})
		}
	}
	if claimingModel == models.ModelMilestone && len(milestones) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "milestone bounties require a milestones plan"})
	}

	// Optional project logo → R2
	var logoURL string
	if logo, err := c.FormFile("project_logo"); err == nil && logo.Size > 0 {
		ext := filepath.Ext(logo.Filename)
		if ext == "" {
			ext = ".png"
		}
		key := "bounties/logos/" + uuid.NewString() + ext
		url, err := utils.UploadFileToR2(logo, key)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to upload project logo"})
		}
		logoURL = url
	}

	bounty := &models.Bounty{
		ID:             uuid.NewString(),
		Type:           bountyType,
		Difficulty:     difficulty,
		ProjectID:      projectID,
		ProjectName:    projectName,
		ProjectSlug:    slug.Make(projectName),
		ProjectLogoURL: logoURL,
		IssueTitle:     issueTitle,
		IssueNumber:    issueNumber,
		GithubRepo:     githubRepo,
		GithubIssueURL: githubIssueURL,
		Description:    description,
		Tags:           tags,
		RewardAmount:   rewardAmount,
		RewardCurrency: rewardCurrency,
		Status:         models.StatusOpen,
		ClaimingModel:  claimingModel,
		Milestones:     milestones,
	}

	if err := s.Store.CreateBounty(bounty); err != nil {
		log.Printf("ERROR creating bounty: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}

	created, err := s.Store.GetBountyByID(bounty.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "DB insert failed"})
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "data": created})
}

// GetAllBounties handles GET /bounties with status/type/difficulty/search
// filters. Every row passes through ProcessBountyStatus with one consistent
// "now", so expired claims read as open without a background sweep.
func (s *BountyService) GetAllBounties(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := store.BountyFilter{
		Status:     c.Query("status"),
		Type:       c.Query("type"),
		Difficulty: c.Query("difficulty"),
		Search:     c.Query("search"),
		Page:       page,
		Limit:      limit,
	}

	bounties, total, err := s.Store.ListBounties(filter)
	if err != nil {
		log.Printf("ERROR fetching bounties: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch bounties"})
	}

	now := time.Now().UTC()
	projected := make([]models.Bounty, 0, len(bounties))
	for _, b := range bounties {
		eb := ProcessBountyStatus(b, now)
		// The stored row matched the filter but the projection moved it
		// (e.g. status=claimed on an expired claim). Drop it rather than
		// return a row contradicting the requested status. The inverse gap
		// — an expired claim missing from status=open — closes when the
		// sweeper persists the release, within a minute.
		if filter.Status != "" && eb.Status != filter.Status {
			continue
		}
		projected = append(projected, eb)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return c.JSON(fiber.Map{
		"success": true,
		"data":    projected,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// GetBountyByID handles GET /bounties/:id (projected through the lifecycle
// rules, like the list endpoint).
func (s *BountyService) GetBountyByID(c *fiber.Ctx) error {
	b, err := s.Store.GetBountyByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, notFound("Bounty not found"))
		}
		return respondError(c, err)
	}
	effective := ProcessBountyStatus(*b, time.Now().UTC())
	return respondData(c, effective)
}

// loadBounty is the shared exists-check used by participation handlers.
func loadBounty(st store.Store, bountyID string) (*models.Bounty, error) {
	b, err := st.GetBountyByID(bountyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Bounty not found")
		}
		return nil, fmt.Errorf("fetching bounty %s: %w", bountyID, err)
	}
	return b, nil
}
