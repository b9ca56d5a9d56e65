package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"miniapp-game-backend/handlers"
	"miniapp-game-backend/middleware"
	"miniapp-game-backend/models"
	"miniapp-game-backend/services"
	"miniapp-game-backend/utils"
	"miniapp-game-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		// top-level boundary: anything a handler did not classify becomes a
		// generic 500, full detail only in logs
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			log.Printf("❌ Unhandled error on %s: %v", c.Path(), err)
			return c.Status(code).JSON(fiber.Map{"error": "internal error"})
		},
	})

	app.Use(recover.New())

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// 🚦 Per-IP token bucket, checked before any state-mutating work
	rpm, _ := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPM"), 64)
	burst, _ := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	limiter := middleware.NewIPRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: rpm,
		Burst:             burst,
	})
	app.Use(limiter.Middleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	originsList := strings.Split(allowedOrigins, ",")
	for i, origin := range originsList {
		originsList[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(originsList, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Device-ID, X-Real-IP",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	// --- Verifier configuration (required — confirmation cannot run without it) ---
	verifierBaseURL := os.Getenv("VERIFIER_BASE_URL")
	if verifierBaseURL == "" {
		log.Fatal("VERIFIER_BASE_URL environment variable not set")
	}
	verifierAppID := os.Getenv("VERIFIER_APP_ID")
	if verifierAppID == "" {
		log.Fatal("VERIFIER_APP_ID environment variable not set")
	}
	verifierAPIKey := os.Getenv("VERIFIER_API_KEY")
	if verifierAPIKey == "" {
		log.Fatal("VERIFIER_API_KEY environment variable not set")
	}

	freePerDay, _ := strconv.Atoi(os.Getenv("FREE_ENERGY_PER_DAY"))
	tsWindowMs, _ := strconv.ParseInt(os.Getenv("SCORE_TS_WINDOW_MS"), 10, 64)
	draftTTLHours, _ := strconv.Atoi(os.Getenv("DRAFT_TTL_HOURS"))

	var riskClient services.IPRiskClient = services.NoopIPRiskClient{}
	if base := os.Getenv("IP_RISK_BASE_URL"); base != "" {
		riskClient = services.NewHTTPIPRiskClient(base, os.Getenv("IP_RISK_API_KEY"))
	}

	nonceService := services.NewNonceService(db)
	energyService := services.NewEnergyService(db, freePerDay)
	scoreService := services.NewScoreService(db)
	cooldownService := services.NewCooldownService(db)
	engine := services.NewAntiCheatEngine(db, services.NewBaselineValidator(scoreService))
	submitService := services.NewSubmitService(
		db, nonceService, energyService, scoreService,
		engine, services.EthereumVerifier{}, riskClient, tsWindowMs,
	)
	rewardService := services.NewRewardService(db, cooldownService, riskClient)
	verifierClient := services.NewVerificationClient(verifierBaseURL, verifierAppID, verifierAPIKey)
	purchaseService := services.NewPurchaseService(
		db, verifierClient, rewardService,
		time.Duration(draftTTLHours)*time.Hour,
	)

	purchaseService.StartMaintenanceScheduler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if utils.R2Enabled() {
		archiver := workers.NewAuditArchiver(db)
		go workers.PollIntegrityEvents(ctx, archiver, 5*time.Minute)
		log.Println("✅ Integrity audit archiver running (every 5m)")
	} else {
		log.Println("⚠️  R2 not configured — integrity audit archiving disabled")
	}

	handlers.SetupScoreRoutes(app, submitService, scoreService)
	handlers.SetupPurchaseRoutes(app, purchaseService, rewardService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Println("✅ Draft expiry sweep running (every 10m)")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
