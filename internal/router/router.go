// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// Deps is everything the routes need.  Redis may be nil, which disables the
// response cache and the rate limiter.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Reservations *handler.ReservationHandler
	Restaurants  *handler.RestaurantHandler
	Redis        *redis.Client
	Gatherer     prometheus.Gatherer
	Ready        map[string]handler.Pinger
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Logger)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Logger))

	RegisterOps(e, d)
	RegisterPublic(e, d)
	RegisterReservations(e, d)
	return e
}

// RegisterOps exposes liveness, readiness and Prometheus metrics.
func RegisterOps(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(d.Ready))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// RegisterPublic registers the unauthenticated browse and availability
// routes.  Only the directory is cached; availability changes with every
// booking.
func RegisterPublic(e *echo.Echo, d Deps) {
	cache := middleware.ResponseCache(d.Config.Cache, d.Redis, d.Logger)
	e.GET("/v1/restaurants", d.Restaurants.Search, cache)
	e.GET("/v1/restaurants/:id", d.Restaurants.Get, cache)
	e.GET("/v1/restaurants/:id/availability", d.Reservations.Availability)
}

// RegisterReservations registers the authenticated booking routes behind
// the JWT check and the token bucket.
func RegisterReservations(e *echo.Echo, d Deps) {
	g := e.Group("/v1",
		middleware.JWTAuth(d.Config.JWT.Secret, d.Logger),
		middleware.RateLimit(d.Config.RateLimit, d.Redis, d.Logger),
	)
	g.POST("/reservations", d.Reservations.Book)
	g.GET("/reservations", d.Reservations.ListMine)
	g.GET("/reservations/:id", d.Reservations.Get)
	g.PATCH("/reservations/:id/cancel", d.Reservations.Cancel)
	g.DELETE("/reservations/:id", d.Reservations.Delete)

	g.GET("/restaurants/:id/reservations", d.Reservations.ListForRestaurant,
		middleware.RequireRole(model.RoleOwner, model.RoleAdmin))
	g.GET("/admin/reservations", d.Reservations.ListAll,
		middleware.RequireRole(model.RoleAdmin))
}
