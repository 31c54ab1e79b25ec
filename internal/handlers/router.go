package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"raffle-engine/internal/auth"
	"raffle-engine/internal/database"
	"raffle-engine/internal/metrics"
	"raffle-engine/internal/middleware"
)

// RouterConfig carries everything the HTTP surface is built from
type RouterConfig struct {
	DB             *gorm.DB
	AllowedOrigins []string
	Raffles        *RaffleHandler
	Admin          *AdminHandler
	Auth           *AuthHandler
	Participation  *middleware.RateLimiter
	Log            *zap.Logger
}

// NewRouter builds the gin engine with every route registered
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())

	corsCfg := cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		if cfg.DB != nil {
			if err := database.Ping(c.Request.Context(), cfg.DB); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/api/raffles/:id", cfg.Raffles.GetRaffle)

	authGroup := router.Group("/auth")
	{
		authGroup.GET("/message", cfg.Auth.LoginMessage)
		authGroup.POST("/wallet", cfg.Auth.WalletLogin)
	}

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(cfg.Log))
	{
		api.GET("/me", cfg.Auth.Me)

		raffles := api.Group("/raffles/:id")
		{
			raffles.GET("/entries", cfg.Raffles.MyEntries)
			if cfg.Participation != nil {
				raffles.POST("/participate", cfg.Participation.Handler(), cfg.Raffles.Participate)
			} else {
				raffles.POST("/participate", cfg.Raffles.Participate)
			}
			raffles.POST("/reveal", cfg.Raffles.Reveal)
			raffles.POST("/reveal-all", cfg.Raffles.RevealAll)
		}

		admin := api.Group("/admin")
		admin.Use(auth.RequireRole(auth.RoleAdmin))
		{
			admin.POST("/raffles", cfg.Admin.CreateRaffle)
			admin.PUT("/raffles/:id/prizes", cfg.Admin.ReplacePrizes)
			admin.POST("/raffles/:id/draw", cfg.Admin.DrawAll)
			admin.POST("/raffles/:id/distribute", cfg.Admin.Distribute)
			admin.GET("/raffles/:id/winners", cfg.Admin.ListWinners)
			admin.POST("/raffles/:id/winners/requeue", cfg.Admin.RequeueFailed)
			admin.GET("/raffles/:id/reconcile", cfg.Admin.Reconcile)
			admin.GET("/diagnostics/solana", cfg.Admin.SolanaDiagnostics)
		}
	}

	return router
}
