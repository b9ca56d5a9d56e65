// handlers/score.go
package handlers

import (
	"miniapp-game-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupScoreRoutes(app *fiber.App, submitService *services.SubmitService, scoreService *services.ScoreService) {
	app.Post("/score/nonce", submitService.IssueNonce)
	app.Post("/score/submit", submitService.SubmitScore)
	app.Get("/score/energy/:address", submitService.GetEnergy)
	app.Get("/score/leaderboard", scoreService.GetLeaderboard)
}
