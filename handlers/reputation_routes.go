// handlers/reputation_routes.go
package handlers

import (
	"bounty-marketplace-service/middleware"
	"bounty-marketplace-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupReputationRoutes(app *fiber.App, reputationService *services.ReputationService) {
	app.Get("/leaderboard", reputationService.GetLeaderboard)
	app.Get("/reputation/me", middleware.UserContextMiddleware(), reputationService.GetMyReputation)
	app.Get("/reputation/:user_id", reputationService.GetUserReputation)
}
