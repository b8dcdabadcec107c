package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "apiverse/internal/app"
	"apiverse/internal/bootstrap"
	"apiverse/internal/cache"
	"apiverse/internal/platform/rabbitmq"
	"apiverse/internal/repository"
	"apiverse/internal/transport/http/handler"
	"apiverse/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	keyRepo := repository.NewAPIKeyRepository(app.MySQL)
	kbRepo := repository.NewKnowledgeBaseRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	queryRepo := repository.NewSearchQueryRepository(app.MySQL)

	quotaCache := cache.NewQuotaUsageCache(app.Redis, time.Duration(app.Config.Redis.QuotaUsageTTLSeconds)*time.Second)
	usagePublisher := rabbitmq.NewUsageLogPublisher(app.MQConn, app.Config.RabbitMQ.UsageLogQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	keyService := appsvc.NewAPIKeyService(keyRepo, userRepo)
	quotaService := appsvc.NewQuotaService(queryRepo, quotaCache, app.Config.Quota.SearchLimit)
	kbService := appsvc.NewKnowledgeBaseService(kbRepo, docRepo, app.Gemini)
	docService := appsvc.NewDocumentService(
		kbService,
		docRepo,
		app.Gemini,
		time.Duration(app.Config.Gemini.FileTTLHours)*time.Hour,
	)
	searchService := appsvc.NewSearchService(quotaService, kbService, docService, app.Gemini, usagePublisher)

	authHandler := handler.NewAuthHandler(authService)
	keyHandler := handler.NewAPIKeyHandler(keyService)
	fileSearchHandler := handler.NewFileSearchHandler(kbService, docService, searchService)
	widgetHandler := handler.NewWidgetHandler(keyService, kbService, searchService)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	keyGroup := v1.Group("/keys")
	keyGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	keyGroup.POST("", keyHandler.Create)
	keyGroup.GET("", keyHandler.List)
	keyGroup.DELETE("/:id", keyHandler.Delete)

	fsGroup := v1.Group("/file-search")
	fsGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	fsGroup.POST("/knowledge-bases", fileSearchHandler.CreateKnowledgeBase)
	fsGroup.GET("/knowledge-bases", fileSearchHandler.ListKnowledgeBases)
	fsGroup.DELETE("/knowledge-bases/:id", fileSearchHandler.DeleteKnowledgeBase)
	fsGroup.POST("/knowledge-bases/:id/documents", fileSearchHandler.UploadDocument)
	fsGroup.GET("/knowledge-bases/:id/documents", fileSearchHandler.ListDocuments)
	fsGroup.DELETE("/knowledge-bases/:id/documents/:docID", fileSearchHandler.DeleteDocument)
	fsGroup.POST("/query", fileSearchHandler.Search)
	fsGroup.POST("/query/stream", fileSearchHandler.SearchStream)
	fsGroup.GET("/quota", fileSearchHandler.GetQuota)

	widgetGroup := v1.Group("/widget")
	widgetGroup.GET("/config/:apiKey", widgetHandler.Config)
	widgetGroup.POST("/search", middleware.AuthAPIKey(keyService), widgetHandler.Search)
	widgetGroup.POST("/search/stream", middleware.AuthAPIKey(keyService), widgetHandler.SearchStream)

	return router
}
