// Package httpapi HTTP API записи на обслуживание
package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/repository"
	"github.com/Freeeeeet/booking_api/internal/service"
)

// Handler обработчики HTTP API
type Handler struct {
	appointments *service.AppointmentService
	queries      *service.QueryService
	ratings      *service.RatingService
	users        repository.UserDirectory
	tokens       TokenParser
	logger       *zap.Logger
}

func NewHandler(
	appointments *service.AppointmentService,
	queries *service.QueryService,
	ratings *service.RatingService,
	users repository.UserDirectory,
	tokens TokenParser,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		appointments: appointments,
		queries:      queries,
		ratings:      ratings,
		users:        users,
		tokens:       tokens,
		logger:       logger,
	}
}

// Options настройки роутера
type Options struct {
	// CORSOrigins пустой список или "*" разрешают любой origin
	CORSOrigins []string
	// Limiter nil отключает ограничение частоты запросов
	Limiter     Limiter
	ReadyChecks []ReadyCheck
}

// NewRouter собирает gin.Engine со всеми маршрутами
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(h.logger))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if opts.Limiter != nil {
		r.Use(RateLimit(opts.Limiter, h.logger))
	}

	r.GET("/healthz", Healthz)
	r.GET("/readyz", Readyz(opts.ReadyChecks...))

	api := r.Group("/api")
	api.Use(Auth(h.tokens, h.users, h.logger))
	{
		api.GET("/services", h.ListServices)
		api.GET("/user/bookings", h.UserBookings)
		api.POST("/bookings", RequireRole(model.RoleCustomer), h.CreateBooking)

		api.GET("/ratings", h.ListRatings)
		api.POST("/ratings", h.CreateRating)

		api.GET("/technicians/:id/appointments", h.TechnicianAppointments)
	}

	admin := api.Group("")
	admin.Use(RequireRole(model.RoleAdmin))
	{
		admin.GET("/appointments", h.AllAppointments)
		admin.POST("/appointments/:id/update-status", h.UpdateStatus)
		admin.POST("/appointments/:id/change-technician", h.ChangeTechnician)
		admin.GET("/technicians", h.ListTechnicians)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}

	var allowed []string
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowed = nil
			break
		}
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowed
		cfg.AllowCredentials = true
	}
	return cfg
}
