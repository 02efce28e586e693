package services

import (
	"errors"
	"log"
	"strconv"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ScoreWeights define relative point values per bounty type (tunable via
// config/env later)
type ScoreWeights struct {
	FeaturePoints  int64
	BugPoints      int64
	DocPoints      int64
	RefactorPoints int64
	OtherPoints    int64
}

var DefaultScoreWeights = ScoreWeights{
	FeaturePoints:  500,
	BugPoints:      300,
	DocPoints:      150,
	RefactorPoints: 250,
	OtherPoints:    100,
}

// TierThresholds: minimum total score per tier.
var TierThresholds = []struct {
	Tier     string
	MinScore int64
}{
	{models.TierLegend, 10000},
	{models.TierExpert, 4000},
	{models.TierEstablished, 1500},
	{models.TierRising, 500},
	{models.TierNewcomer, 0},
}

func determineTier(score int64) string {
	for _, t := range TierThresholds {
		if score >= t.MinScore {
			return t.Tier
		}
	}
	return models.TierNewcomer
}

func pointsForBountyType(bountyType string) int64 {
	switch bountyType {
	case models.BountyTypeFeature:
		return DefaultScoreWeights.FeaturePoints
	case models.BountyTypeBug:
		return DefaultScoreWeights.BugPoints
	case models.BountyTypeDocumentation:
		return DefaultScoreWeights.DocPoints
	case models.BountyTypeRefactor:
		return DefaultScoreWeights.RefactorPoints
	default:
		return DefaultScoreWeights.OtherPoints
	}
}

type ReputationService struct {
	Store store.Store

	// Locale-aware number formatting for earnings display.
	printer *message.Printer
}

func NewReputationService(st store.Store) *ReputationService {
	return &ReputationService{
		Store:   st,
		printer: message.NewPrinter(language.English),
	}
}

// RecordCompletion credits a contributor for a completed bounty: type-weighted
// points, earnings, counters, tier recompute.
func (s *ReputationService) RecordCompletion(userID string, bounty *models.Bounty) error {
	rep, err := s.Store.EnsureReputation(userID)
	if err != nil {
		return err
	}

	points := pointsForBountyType(bounty.Type)
	switch bounty.Type {
	case models.BountyTypeFeature:
		rep.FeaturePoints += points
	case models.BountyTypeBug:
		rep.BugPoints += points
	case models.BountyTypeDocumentation:
		rep.DocPoints += points
	case models.BountyTypeRefactor:
		rep.RefactorPoints += points
	default:
		rep.OtherPoints += points
	}
	rep.TotalScore += points
	rep.TotalCompleted++
	if bounty.RewardAmount != nil {
		rep.TotalEarnings += *bounty.RewardAmount
		if bounty.RewardCurrency != "" {
			rep.EarningsCurrency = bounty.RewardCurrency
		}
	}
	now := time.Now().UTC()
	rep.LastActiveAt = &now
	rep.Tier = determineTier(rep.TotalScore)

	if err := s.Store.SaveReputation(rep); err != nil {
		return err
	}
	log.Printf("🏆 [REPUTATION] %s → score=%d tier=%s (bounty %s)", userID, rep.TotalScore, rep.Tier, bounty.ID)
	return nil
}

func (s *ReputationService) leaderboardEntry(rank int, rep models.ContributorReputation) fiber.Map {
	return fiber.Map{
		"rank":             rank,
		"user_id":          rep.UserID,
		"total_score":      rep.TotalScore,
		"tier":             rep.Tier,
		"total_completed":  rep.TotalCompleted,
		"total_earnings":   rep.TotalEarnings,
		"earnings_display": s.printer.Sprintf("%.2f %s", rep.TotalEarnings, rep.EarningsCurrency),
		"last_active_at":   rep.LastActiveAt,
		"feature_points":   rep.FeaturePoints,
		"bug_points":       rep.BugPoints,
		"doc_points":       rep.DocPoints,
		"refactor_points":  rep.RefactorPoints,
		"other_points":     rep.OtherPoints,
	}
}

// GetLeaderboard handles GET /leaderboard?page=&limit=&tier=
func (s *ReputationService) GetLeaderboard(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	tier := c.Query("tier")

	reps, total, err := s.Store.TopReputations(limit, (page-1)*limit, tier)
	if err != nil {
		log.Printf("ERROR fetching leaderboard: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}

	entries := make([]fiber.Map, 0, len(reps))
	for i, rep := range reps {
		entries = append(entries, s.leaderboardEntry((page-1)*limit+i+1, rep))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"entries":         entries,
			"total_count":     total,
			"last_updated_at": time.Now().UTC(),
		},
	})
}

// GetUserReputation handles GET /reputation/:user_id
func (s *ReputationService) GetUserReputation(c *fiber.Ctx) error {
	rep, err := s.Store.GetReputationByUser(c.Params("user_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, notFound("Reputation not found"))
		}
		return respondError(c, err)
	}
	return respondData(c, rep)
}

// GetMyReputation handles GET /reputation/me for the authenticated user.
// Creates the record on first read, so new contributors start at NEWCOMER.
func (s *ReputationService) GetMyReputation(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	rep, err := s.Store.EnsureReputation(userID)
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, rep)
}
