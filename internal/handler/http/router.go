package http

import (
	"log/slog"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, payrollHandler PayrollHandler, notificationHandler NotificationHandler) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	if cfg.Logger != nil {
		r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api/v1", func(r chi.Router) {

		// EventSource cannot send an Authorization header; the stream
		// authenticates with a short-lived token in the query string.
		r.Get("/notifications/stream", notificationHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.With(middleware.RequirePermission(user.PermissionNotificationView)).
				Post("/notifications/sse-token", notificationHandler.GetSSEToken)

			r.Route("/payroll", func(r chi.Router) {
				r.Use(middleware.RequireSchool)

				r.Route("/config", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.GetConfig)
					r.With(middleware.RequirePermission(user.PermissionPayrollManage)).Put("/", payrollHandler.UpsertConfig)
				})

				r.Route("/periods", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollManage)).Post("/", payrollHandler.CreatePeriod)

					r.Route("/{periodID}", func(r chi.Router) {
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionPayrollView))
							r.Get("/", payrollHandler.GetPeriod)
							r.Get("/preview", payrollHandler.PreviewPeriod)
							r.Get("/items", payrollHandler.ListItems)
						})

						r.With(middleware.RequirePermission(user.PermissionPayrollProcess)).Post("/process", payrollHandler.ProcessPeriod)

						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionPayrollExport))
							r.Get("/items/{employeeID}/payslip", payrollHandler.DownloadPayslip)
							r.Get("/export", payrollHandler.ExportRegister)
						})
					})
				})
			})
		})
	})
	return r
}
