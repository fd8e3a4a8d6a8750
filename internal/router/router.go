package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/parkline/tonpark/internal/config"
	"github.com/parkline/tonpark/internal/handler"
	"github.com/parkline/tonpark/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently it exposes only a health
// check, used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated read endpoints: the
// space list the bot renders its map from, single-space lookups and
// deep-link validation.  These are the hot read paths, so they sit
// behind the Redis response cache and an IP-keyed rate limit.
func RegisterPublic(e *echo.Echo, s *handler.SpaceHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	g.GET("/spaces", s.ListSpaces)
	g.GET("/spaces/:id", s.GetSpace)
	g.GET("/deeplink/validate", s.ValidateDeepLink)
}

// RegisterReservations registers the authenticated transition routes.
// Callers are backend services holding an HS256 token with an
// "operator" or "admin" scope; every route below mutates space state
// except the session lookup, which still requires auth because it
// exposes plate data.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireScope("operator", "admin"))
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	g.POST("/spaces/:id/reserve", r.Reserve)
	g.POST("/spaces/:id/occupy", r.Occupy)
	g.POST("/spaces/:id/complete", r.Complete)
	g.POST("/spaces/:id/cancel", r.Cancel)
	g.GET("/sessions/:plate", r.GetSession)
}
