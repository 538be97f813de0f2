package server

import (
	"net/http"
	"strings"
	"time"

	"anoa.com/alumnidirectory/internal/access"
	"anoa.com/alumnidirectory/internal/config"
	"anoa.com/alumnidirectory/internal/middleware"
	"anoa.com/alumnidirectory/pkg/logger"
	"anoa.com/alumnidirectory/pkg/mailer"
	"anoa.com/alumnidirectory/pkg/queue"
	"anoa.com/alumnidirectory/pkg/ratelimiter"
	"anoa.com/alumnidirectory/pkg/storage"
	"anoa.com/alumnidirectory/pkg/validator"

	alumniHttp "anoa.com/alumnidirectory/internal/modules/alumni/delivery/http"
	alumniRepo "anoa.com/alumnidirectory/internal/modules/alumni/repository"
	alumniService "anoa.com/alumnidirectory/internal/modules/alumni/service"

	approvalHttp "anoa.com/alumnidirectory/internal/modules/approval/delivery/http"
	approvalService "anoa.com/alumnidirectory/internal/modules/approval/service"

	authHttp "anoa.com/alumnidirectory/internal/modules/auth/delivery/http"
	authService "anoa.com/alumnidirectory/internal/modules/auth/service"

	botHttp "anoa.com/alumnidirectory/internal/modules/botcheck/delivery/http"
	botService "anoa.com/alumnidirectory/internal/modules/botcheck/service"

	notifHttp "anoa.com/alumnidirectory/internal/modules/notification/delivery/http"
	notifService "anoa.com/alumnidirectory/internal/modules/notification/service"

	profileHttp "anoa.com/alumnidirectory/internal/modules/profile/delivery/http"
	profileService "anoa.com/alumnidirectory/internal/modules/profile/service"

	searchService "anoa.com/alumnidirectory/internal/modules/search/service"

	userRepo "anoa.com/alumnidirectory/internal/modules/user/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	producer    *queue.Producer
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.RegisterCustomRules()

	admins := access.NewAdminSet(cfg.AdminEmails)
	if admins.Len() == 0 {
		logger.Warn().Msg("ADMIN_EMAILS is empty; nobody can approve applications")
	}

	userRepo := userRepo.NewUserRepository(db)
	alumniRepo := alumniRepo.NewAlumniRepository(db)

	var searchSvc searchService.AlumniSearchService
	if cfg.MeiliSearchHost != "" {
		meiliHost := cfg.MeiliSearchHost
		if !strings.HasPrefix(meiliHost, "http") {
			meiliHost = "http://" + meiliHost + ":7700"
		}
		meiliClient := meilisearch.New(meiliHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		searchSvc = searchService.NewAlumniSearchService(meiliClient)
	} else {
		logger.Info().Msg("MEILISEARCH_HOST not set, directory search uses the database")
	}

	var imageStorage storage.ImageStorage
	if st, err := storage.NewCloudinaryStorage(cfg.CloudinaryCloudName); err != nil {
		logger.Warn().Err(err).Msg("cloudinary not configured, photo uploads are disabled")
	} else {
		imageStorage = st
	}

	mail := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	}, logger.WithField("component", "mailer"))

	directoryURL := cfg.AppBaseURL + "/directory"

	var (
		dispatcher notifService.Dispatcher
		producer   *queue.Producer
	)
	if cfg.KafkaBroker != "" {
		producer = queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword)
		dispatcher = notifService.NewQueueDispatcher(producer)
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("welcome emails go through kafka")
	} else {
		dispatcher = notifService.NewMailDispatcher(mail, directoryURL)
	}

	feed := notifService.NewFeed(redisClient)

	var (
		signups    authService.SignupCache
		usedTokens authService.UsedTokenStore
	)
	if redisClient != nil {
		signups = authService.NewRedisSignupCache(redisClient)
		usedTokens = authService.NewRedisUsedTokenStore(redisClient)
	} else {
		logger.Warn().Msg("REDIS_URL not set, signup cache and used magic links are kept in memory")
		signups = authService.NewMemorySignupCache()
		usedTokens = authService.NewMemoryUsedTokenStore()
	}

	var authLimiter ratelimiter.Limiter = ratelimiter.NewRedisLimiter(redisClient, cfg.AuthRateLimit, cfg.AuthRateWindow, "auth")

	botSvc := botService.NewBotCheckService(botService.Config{
		Secret:    cfg.RecaptchaSecret,
		VerifyURL: cfg.RecaptchaVerifyURL,
		Bypass:    cfg.BotCheckBypassed(),
	})
	botHandler := botHttp.NewBotCheckHandler(botSvc)

	tokens := authService.NewTokenManager(cfg.JWTSecret, cfg.MagicLinkTTL, cfg.JWTTTL)

	approvalSvc := approvalService.NewApprovalService(alumniRepo, admins, dispatcher, feed, searchSvc)
	approvalHandler := approvalHttp.NewApprovalHandler(approvalSvc)

	authSvc := authService.NewAuthService(
		userRepo,
		alumniRepo,
		approvalSvc,
		botSvc,
		authLimiter,
		mail,
		signups,
		usedTokens,
		tokens,
		admins,
		authService.Options{
			BaseURL:        cfg.AppBaseURL,
			MagicLinkTTL:   cfg.MagicLinkTTL,
			SignupCacheTTL: cfg.SignupCacheTTL,
		},
	)
	authHandler := authHttp.NewAuthHandler(authSvc)

	profileSvc := profileService.NewProfileService(alumniRepo, imageStorage, searchSvc, cfg.CloudinaryUploadFolder)
	profileHandler := profileHttp.NewProfileHandler(profileSvc)

	alumniSvc := alumniService.NewAlumniService(alumniRepo, admins, searchSvc)
	alumniHandler := alumniHttp.NewAlumniHandler(alumniSvc)

	origins := allowedOrigins(cfg.AllowedOrigins)
	notificationHandler := notifHttp.NewNotificationHandler(feed, origins)

	router := gin.New()

	setupCORS(router, origins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMiddleware := middleware.NewAuthMiddleware(userRepo, tokens, admins)

	api := router.Group("/api")

	// Public routes (no auth required)
	api.POST("/verify-recaptcha", botHandler.Verify)
	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/confirm", authHandler.Confirm)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/auth/me", authHandler.Me)

		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.GET("/applications", approvalHandler.Dashboard)
			adminGroup.GET("/applications/ws", notificationHandler.StreamApplications)
			adminGroup.POST("/approve", approvalHandler.Approve)
			adminGroup.POST("/reject", approvalHandler.Reject)
		}

		protected.GET("/profile/me", profileHandler.GetMine)
		protected.PUT("/profile", profileHandler.Update)
		protected.POST("/profile/photo", profileHandler.UploadPhoto)

		protected.GET("/alumni", alumniHandler.List)
		protected.GET("/alumni/search", alumniHandler.Search)
		protected.GET("/alumni/stats", alumniHandler.Stats)
		protected.GET("/alumni/:id", alumniHandler.Get)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		producer:    producer,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Close releases the kafka writer and the redis client; the database is closed by main.
func (s *Server) Close() error {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close kafka producer")
		}
	}
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}

func allowedOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
