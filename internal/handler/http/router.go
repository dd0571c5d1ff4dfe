package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/user"
	"github.com/cmlabs-hris/hris-retropay/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/idempotency"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	AllowedOrigins []string
	Env            string
	LogLevel       slog.Level
	// Idempotency is optional; without it POST requests are not deduplicated.
	Idempotency *idempotency.Store
}

func NewRouter(JWTService jwt.Service, retroPayHandler RetroPayHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       opts.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-retropay"),
		slog.String("version", "v1.0.0"),
		slog.String("env", opts.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", middleware.IdempotencyKeyHeader},
		ExposedHeaders:   []string{"Link", middleware.IdempotencyReplayedHeader},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  opts.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequireCompany)

			r.Route("/retro-pay", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionRetroPayView))
					r.Get("/", retroPayHandler.List)
					r.Get("/stats", retroPayHandler.GetStats)
					r.Get("/employees/{employeeId}", retroPayHandler.ListByEmployee)
					r.Get("/groups/{groupId}", retroPayHandler.ListByGroup)
					r.Get("/{id}", retroPayHandler.GetByID)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionRetroPayCreate))
					if opts.Idempotency != nil {
						r.Use(middleware.Idempotency(opts.Idempotency))
					}
					r.Post("/", retroPayHandler.Create)
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionRetroPayApprove))
					r.Patch("/groups/{groupId}/approve", retroPayHandler.ApproveGroup)
					r.Patch("/groups/{groupId}/cancel", retroPayHandler.CancelGroup)
					r.Post("/pay-period", retroPayHandler.PayPeriod)
					r.Patch("/{id}/approve", retroPayHandler.Approve)
					r.Patch("/{id}/pay", retroPayHandler.MarkPaid)
					r.Patch("/{id}/cancel", retroPayHandler.Cancel)
				})
			})
		})
	})
	return r
}
