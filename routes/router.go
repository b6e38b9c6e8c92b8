package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/controllers"
	"github.com/cppla/myblog/middleware"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/realtime"
	"github.com/cppla/myblog/storage"
	"github.com/cppla/myblog/utils"
)

// SetupRouter builds the engine: access logging, CORS, static files and the /api/v1 tree.
func SetupRouter(db *gorm.DB, st storage.Storage, hub *realtime.Hub) *gin.Engine {
	cfg := config.Get()
	gin.SetMode(ginMode(cfg.GinMode))

	r := gin.New()
	if access, err := utils.NewAccessLogger(cfg); err == nil {
		r.Use(utils.Ginzap(access, time.RFC3339, true), utils.RecoveryWithZap(access, false))
	} else {
		utils.Sugar.Warnf("access log disabled: %v", err)
		r.Use(gin.Recovery())
	}
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	if strings.HasPrefix(cfg.UploadBaseURL, "/") {
		r.Use(inertUploads(cfg.UploadBaseURL))
	}

	r.Static("/static", "./static")
	if _, local := st.(*storage.Local); local && servesOwnUploads(cfg.UploadBaseURL) {
		r.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}
	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "ws_clients": hub.Clients()})
	})

	registerAPI(r.Group("/api/v1"), db, st, hub, cfg.RateLimitPerMinute)

	r.NoRoute(notFound)
	return r
}

func registerAPI(api *gin.RouterGroup, db *gorm.DB, st storage.Storage, hub *realtime.Hub, perMinute int) {
	auth := controllers.NewAuthController(db)
	posts := controllers.NewPostController(db, st, hub)
	comments := controllers.NewCommentController(db, st, hub)
	uploads := controllers.NewUploadController(db, st)

	// Sign-in endpoints get their own bucket so guessing passwords cannot starve writes.
	a := api.Group("/auth", middleware.RateLimit(perMinute))
	a.POST("/register", auth.Register)
	a.POST("/login", auth.Login)
	a.GET("/oauth/:provider/login", auth.OAuthRedirect)
	a.GET("/oauth/:provider/callback", auth.OAuthCallback)
	a.POST("/logout", middleware.AuthRequired(db), auth.Logout)
	a.GET("/me", middleware.AuthRequired(db), auth.Me)

	api.GET("/posts", posts.ListPosts)
	api.GET("/posts/page/:page", posts.ListPosts)
	api.GET("/posts/:id", posts.GetPost)
	api.GET("/posts/:id/comments", comments.ListComments)
	api.GET("/ws", middleware.OptionalAuth(db), controllers.Live(hub))

	member := api.Group("", middleware.AuthRequired(db), middleware.RateLimit(perMinute))
	member.POST("/upload", uploads.Upload)
	member.GET("/flash", controllers.Flashes)
	member.POST("/posts/:id/comments", comments.CreateComment)
	member.DELETE("/comments/:id", comments.DeleteComment)

	admin := member.Group("", middleware.RequireRole(models.RoleAdmin))
	admin.POST("/posts", posts.CreatePost)
	admin.PUT("/posts/:id", posts.UpdatePost)
	admin.DELETE("/posts/:id", posts.DeletePost)
}

func ginMode(name string) string {
	switch strings.ToLower(name) {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	}
	return gin.ReleaseMode
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// servesOwnUploads reports whether a local upload URL falls outside /static and needs its own route.
func servesOwnUploads(baseURL string) bool {
	return strings.HasPrefix(baseURL, "/") && !strings.HasPrefix(baseURL, "/static/")
}

// inertUploads stops browsers from running anything served under the upload
// prefix, whatever type they would sniff for it.
func inertUploads(prefix string) gin.HandlerFunc {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	return func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, prefix) {
			ctx.Header("X-Content-Type-Options", "nosniff")
			ctx.Header("Content-Security-Policy", "default-src 'none'; sandbox")
		}
		ctx.Next()
	}
}

// notFound answers unknown API paths with the envelope and hands everything
// else to the single-page frontend.
func notFound(ctx *gin.Context) {
	path := ctx.Request.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/"):
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	case strings.HasPrefix(path, "/static/"):
		utils.Error(ctx, http.StatusNotFound, 40400, "static asset not found")
	default:
		ctx.File("./static/index.html")
	}
}
