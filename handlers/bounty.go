package handlers

import (
	"bounty-marketplace-service/middleware"
	"bounty-marketplace-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService, participationService *services.ParticipationService) {
	// 🔓 Public reads
	app.Get("/bounties", bountyService.GetAllBounties)
	app.Get("/bounties/:id", bountyService.GetBountyByID)
	app.Get("/bounties/:id/applications", participationService.GetBountyApplications)
	app.Get("/bounties/:id/submissions", participationService.GetBountySubmissions)
	app.Get("/bounties/:id/participants", participationService.GetBountyParticipants)

	// 🔐 Claim and competition join act as the authenticated user
	app.Post("/bounties/:id/claim", middleware.UserContextMiddleware(), bountyService.ClaimBounty)
	app.Post("/bounties/:id/competition/join", middleware.UserContextMiddleware(), participationService.JoinCompetitionHandler)

	// Contributor-side transitions (identity comes in the request body,
	// forwarded by the gateway)
	app.Post("/bounties/:id/apply", participationService.ApplyToBounty)
	app.Post("/bounties/:id/join", participationService.JoinMilestoneHandler)
	app.Post("/bounties/:id/milestones/advance", participationService.AdvanceMilestoneHandler)
	app.Post("/bounties/:id/submit", participationService.SubmitWorkHandler)

	// Maintainer-side review/selection
	app.Post("/applications/:id/review", participationService.ReviewApplicationHandler)
	app.Post("/submissions/:id/select", participationService.SelectSubmissionHandler)

	// Bounty creation (sponsors/maintainers)
	app.Post("/bounties", middleware.UserContextMiddleware(), bountyService.CreateBounty)
}
