package v1

import (
	"net/http"

	"github.com/bookflow/bookflow/internal/domain"
	"github.com/bookflow/bookflow/pkg/auth"
	"github.com/bookflow/bookflow/pkg/metrics"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Auth          *AuthHandler
	Availability  *AvailabilityHandler
	Booking       *BookingHandler
	Notifications *NotificationHandler

	JWTManager *auth.JWTManager
	Collector  *metrics.Collector
}

func RegisterRoutes(engine *gin.Engine, deps RouterDeps) {
	engine.Use(MetricsMiddleware(deps.Collector))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := engine.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", deps.Auth.Register)
		authGroup.POST("/login", deps.Auth.Login)
		authGroup.POST("/refresh", deps.Auth.Refresh)
	}

	authed := api.Group("")
	authed.Use(AuthMiddleware(deps.JWTManager))
	{
		authed.GET("/users/me", deps.Auth.Me)
		authed.GET("/providers", deps.Auth.ListProviders)

		// Slot browsing is open to any authenticated user; what it shows
		// is advisory and may be stale by the time a claim lands.
		authed.GET("/providers/:id/availability", deps.Availability.ListSlots)

		providerOnly := RequireRole(domain.RoleProvider, domain.RoleAdmin)

		authed.POST("/providers/:id/availability", providerOnly, deps.Availability.Publish)
		authed.DELETE("/availability/:id", providerOnly, deps.Availability.Withdraw)

		appts := authed.Group("/appointments")
		{
			appts.POST("", RequireRole(domain.RoleClient, domain.RoleAdmin), deps.Booking.Claim)
			appts.GET("", deps.Booking.List)
			appts.GET("/:id", deps.Booking.Get)
			appts.POST("/:id/confirm", providerOnly, deps.Booking.Confirm)
			appts.POST("/:id/cancel", deps.Booking.Cancel)
			appts.POST("/:id/complete", providerOnly, deps.Booking.Complete)
			appts.POST("/:id/no-show", providerOnly, deps.Booking.MarkNoShow)
			appts.POST("/:id/rating", RequireRole(domain.RoleClient, domain.RoleAdmin), deps.Booking.Rate)
		}

		notifs := authed.Group("/notifications")
		{
			notifs.GET("", deps.Notifications.List)
			notifs.PUT("/:id/read", deps.Notifications.MarkRead)
		}
	}
}
