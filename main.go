package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"rejection-therapy/config"
	"rejection-therapy/handlers"
	"rejection-therapy/middleware"
	"rejection-therapy/services"
	"rejection-therapy/store"
	"rejection-therapy/utils"
	"rejection-therapy/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	db, err := store.OpenPostgres(cfg.Database.URL)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	rows := store.NewGorm(db)
	timeout := cfg.Database.StoreTimeout

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var board services.LeaderboardCache = services.NoopLeaderboard{}
	if cfg.RedisURL != "" {
		rdb, err := services.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, leaderboard served from database: %v", err)
		} else {
			defer rdb.Close()
			board = services.NewRedisLeaderboard(rdb)
		}
	}

	var uploader services.VideoUploader
	r2cfg := utils.R2Config{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		AccessKeySecret: cfg.R2.AccessKeySecret,
		Bucket:          cfg.R2.Bucket,
		CDNBaseURL:      cfg.CDNBaseURL,
	}
	if r2cfg.Enabled() {
		r2, err := utils.NewR2Uploader(ctx, r2cfg)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		uploader = r2
	} else {
		log.Println("⚠️  R2 not configured, video file uploads disabled")
	}

	var auth services.Authenticator
	switch {
	case cfg.Auth.UsesJWT():
		auth = services.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience)
	case cfg.Auth.ServiceURL != "":
		auth = services.NewAuthServiceClient(cfg.Auth.ServiceURL, cfg.Auth.ServiceKey)
	default:
		log.Fatal("either AUTH_JWT_SECRET or AUTH_SERVICE_URL must be set")
	}

	ledger := services.DefaultLedger()
	xpService := services.NewXPService(rows, ledger, timeout, board)
	reconciliationService := services.NewReconciliationService(rows, ledger, timeout, board)
	winnerService := services.NewWinnerService(rows, xpService, timeout)
	dailyLimitService := services.NewDailyLimitService(rows, cfg.Limits.MaxDailySubmissions, timeout)
	submissionService := services.NewSubmissionService(rows, xpService, dailyLimitService, uploader, timeout)
	challengeService := services.NewChallengeService(rows, timeout)
	profileService := services.NewProfileService(rows, ledger.Ranks, timeout)
	leaderboardService := services.NewLeaderboardService(rows, board, ledger.Ranks, timeout)

	app := fiber.New(fiber.Config{
		BodyLimit:    services.MaxVideoBytes + 1<<20,
		ErrorHandler: middleware.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	allowedOrigins := strings.Join(origins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Unauthenticated and service-token routes are registered before the
	// user-auth group so its middleware never runs for them.
	handlers.SetupHealthRoutes(app, rows)
	if cfg.Server.ServiceToken != "" {
		handlers.SetupInternalRoutes(app, cfg.Server.ServiceToken, winnerService, profileService, leaderboardService)
	} else {
		log.Println("⚠️  SERVICE_TOKEN not set, /internal job routes disabled")
	}

	secured := app.Group("/", middleware.AuthMiddleware(auth, rows.Profiles(), timeout))
	handlers.SetupXPRoutes(secured, xpService)
	handlers.SetupSubmissionRoutes(secured, submissionService, reconciliationService, dailyLimitService)
	handlers.SetupChallengeRoutes(secured, challengeService, winnerService)
	handlers.SetupProfileRoutes(secured, profileService, leaderboardService)

	go workers.PollPendingAwards(ctx, winnerService, cfg.Jobs.AwardRetryInterval)
	if _, ok := board.(services.NoopLeaderboard); !ok {
		go workers.NewLeaderboardSyncWorker(leaderboardService, cfg.Jobs.LeaderboardSyncInterval).Start(ctx)
	}

	sched, err := profileService.StartRankRepairScheduler(cfg.Jobs.RankRepairInterval)
	if err != nil {
		log.Fatal("failed to start rank repair scheduler:", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Server.Port)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.Printf("⚠️  scheduler shutdown: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("⚠️  server shutdown: %v", err)
	}
}
