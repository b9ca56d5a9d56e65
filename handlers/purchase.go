// handlers/purchase.go
package handlers

import (
	"miniapp-game-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPurchaseRoutes(app *fiber.App, purchaseService *services.PurchaseService, rewardService *services.RewardService) {
	app.Post("/reward/claim", rewardService.ClaimReward)

	app.Post("/purchase/init", purchaseService.InitPurchase)
	app.Post("/purchase/confirm", purchaseService.ConfirmPurchase)
}
