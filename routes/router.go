package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bible-memorize/server/controllers"
	"github.com/bible-memorize/server/middleware"
	"github.com/bible-memorize/server/models"
	"github.com/bible-memorize/server/observability"
	"github.com/bible-memorize/server/services"
	"github.com/bible-memorize/server/store"
	"github.com/bible-memorize/server/utils"
)

// Deps is everything the router hands to controllers and middleware.
type Deps struct {
	GinMode        string
	AccessLog      *zap.Logger
	AllowedOrigins []string
	RatePerMinute  int
	MaxUploadBytes int64
	// StaticDir holds the built web client; empty disables static serving.
	StaticDir string

	Store     *store.Store
	Checkins  *services.CheckinService
	Ledger    *services.Ledger
	Accounts  *services.AccountService
	Plans     *services.PlanService
	Issuer    *utils.TokenIssuer
	Blacklist *utils.TokenBlacklist
	Cache     *utils.Cache
	Guard     *utils.RegistrationGuard
	Metrics   *observability.Metrics
	Settings  controllers.ClientSettings
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	switch strings.ToLower(d.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	access := d.AccessLog
	if access == nil {
		access = utils.Logger
	}
	r.Use(utils.Ginzap(access))
	r.Use(utils.RecoveryWithZap(access))
	if d.Metrics != nil {
		r.Use(middleware.RequestMetrics(d.Metrics))
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(d.AllowedOrigins) == 0 || (len(d.AllowedOrigins) == 1 && d.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = d.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	authController := controllers.NewAuthController(d.Accounts, d.Issuer, d.Blacklist, d.Guard)
	userController := controllers.NewUserController(d.Accounts)
	recordingController := controllers.NewRecordingController(d.Checkins, d.MaxUploadBytes)
	approvalController := controllers.NewApprovalController(d.Checkins)
	checkinController := controllers.NewCheckinController(d.Checkins)
	pointsController := controllers.NewPointsController(d.Ledger, d.Checkins, d.Cache)
	d.Accounts.AfterChange(pointsController.InvalidateRanking)
	planController := controllers.NewPlanController(d.Plans)
	statsController := controllers.NewStatsController(d.Store, d.Checkins, d.Metrics)
	configController := controllers.NewConfigController(d.Settings, d.Checkins)

	r.GET("/health", statsController.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	// audio elements cannot send bearer headers; refs are unguessable uuids
	r.GET("/storage/:filename", recordingController.Stream)

	limiter := middleware.NewRateLimiter(d.RatePerMinute)
	authRequired := middleware.AuthRequired(d.Issuer, d.Blacklist, d.Accounts)
	privileged := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleParent)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group("/api")
	api.Use(limiter.Middleware())

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)

	protected := api.Group("")
	protected.Use(authRequired)

	protected.GET("/config", configController.GetSettings)
	protected.GET("/stats", privileged, statsController.GetStats)
	protected.GET("/reports/weekly", statsController.WeeklyReport)

	users := protected.Group("/users")
	users.GET("", adminOnly, userController.List)
	users.DELETE("/:id", adminOnly, userController.Delete)

	recordings := protected.Group("/recordings")
	recordings.POST("", recordingController.Upload)
	recordings.GET("", recordingController.List)
	recordings.DELETE("/:id", recordingController.Delete)

	approvals := protected.Group("/approvals")
	approvals.POST("", approvalController.Approve)
	approvals.POST("/reject", approvalController.Reject)
	approvals.GET("/student/:studentId", approvalController.ForStudent)
	approvals.GET("/check/:studentId/:date", approvalController.Check)
	approvals.GET("/students", userController.Students)

	checkins := protected.Group("/checkins")
	checkins.POST("", checkinController.Create)
	checkins.GET("", checkinController.Week)
	checkins.GET("/all", checkinController.All)
	checkins.GET("/today", checkinController.Today)

	points := protected.Group("/points")
	points.GET("/me", pointsController.Me)
	points.GET("/student/:studentId", pointsController.Student)
	points.POST("/adjust", pointsController.Adjust)
	points.POST("/check-daily", pointsController.CheckDaily)
	points.GET("/students", pointsController.Ranking)

	plans := protected.Group("/scripture-plans")
	plans.GET("", planController.Get)
	plans.GET("/list", planController.List)
	plans.POST("", planController.Upsert)

	index := ""
	if d.StaticDir != "" {
		index = filepath.Join(d.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			r.Static("/assets", filepath.Join(d.StaticDir, "assets"))
		} else {
			index = ""
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || index == "" || ctx.Request.Method != http.MethodGet {
			utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
			return
		}
		// client-side routes fall back to the SPA entry
		ctx.File(index)
	})

	return r
}
