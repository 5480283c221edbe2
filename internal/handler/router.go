package handler

import (
	"coinwallet/internal/config"
	"coinwallet/internal/infrastructure/lock"
	"coinwallet/internal/storage"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires middleware and routes.
func SetupRouter(store storage.Store, locker lock.Locker, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(store, locker, cfg)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		authed := api.Group("")
		authed.Use(AuthMiddleware(cfg.JWT.Secret))
		{
			account := authed.Group("/account")
			{
				account.GET("/snapshot", h.GetSnapshot)
				account.POST("/pix-key", h.SetPixKey)
				account.GET("/lookup/:cpf", h.Lookup)
			}

			wallet := authed.Group("/wallet")
			{
				wallet.POST("/deposit", h.Deposit)
				wallet.POST("/withdraw", h.Withdraw)
				wallet.POST("/transfer", h.Transfer)
				wallet.GET("/transactions", h.ListTransactions)
			}
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
