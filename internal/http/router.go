package http

import (
	"time"

	"github.com/escrow-platform/backend/internal/config"
	"github.com/escrow-platform/backend/internal/http/handlers"
	"github.com/escrow-platform/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	walletHandler *handlers.WalletHandler,
	escrowHandler *handlers.EscrowHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public): TON Connect proof exchange
	api.Post("/auth/proof-payload", authHandler.GenerateProofPayload)
	api.Post("/auth/wallet", authHandler.WalletAuth)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/roles", metaHandler.GetRoles)
	api.Get("/meta/statuses", metaHandler.GetStatuses)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Put("/me", userHandler.UpdateProfile)
	protected.Post("/me/ping", userHandler.Ping)

	// Wallet (TON Connect + Proof)
	protected.Get("/me/wallet", walletHandler.GetWallet)
	protected.Delete("/me/wallet", walletHandler.DisconnectWallet)

	// Contracts
	protected.Post("/contracts", escrowHandler.CreateContract)
	protected.Get("/contracts", escrowHandler.ListContracts)
	protected.Get("/contracts/:id", escrowHandler.GetContract)
	protected.Post("/contracts/:id/escrow-address", escrowHandler.AgreeOnEscrowAddress)
	protected.Post("/contracts/:id/fund", escrowHandler.SendFunds)
	protected.Post("/contracts/:id/fund/add", escrowHandler.AddMoreFunds)
	protected.Post("/contracts/:id/request-payment", escrowHandler.RequestPayment)
	protected.Post("/contracts/:id/release", escrowHandler.ReleaseFunds)
	protected.Post("/contracts/:id/release-to-buyer", escrowHandler.ReleaseFundsToBuyer)
	protected.Post("/contracts/:id/refund", escrowHandler.Refund)
	protected.Post("/contracts/:id/pay", escrowHandler.Pay)
	protected.Post("/contracts/:id/review", escrowHandler.Review)
	protected.Get("/contracts/:id/reviews", escrowHandler.GetReviews)
	protected.Get("/contracts/:id/events", escrowHandler.GetContractEvents)
	protected.Get("/contracts/:id/transfers", escrowHandler.GetContractTransfers)
	protected.Get("/contracts/:id/deposit-info", escrowHandler.GetDepositInfo)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
