package routes

import (
	"net/http"

	"hrms-service/config"
	"hrms-service/handlers"
	"hrms-service/middleware"
	"hrms-service/models"
	"hrms-service/store"

	"github.com/gorilla/mux"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Employees  *handlers.EmployeeHandler
	Attendance *handlers.AttendanceHandler
}

// SetupRoutes registers every endpoint with its access policy. revocations
// may be nil.
func SetupRoutes(cfg config.AuthConfig, revocations store.TokenRevocations, h Handlers) *mux.Router {
	authenticate := middleware.AuthMiddleware(cfg, revocations)
	requireAdmin := middleware.RoleMiddleware(models.RoleAdmin)

	public := func(handler middleware.AppHandler) http.Handler {
		return middleware.ErrorHandler(handler)
	}
	authed := func(handler middleware.AppHandler) http.Handler {
		return authenticate(middleware.ErrorHandler(handler))
	}
	admin := func(handler middleware.AppHandler) http.Handler {
		return authenticate(requireAdmin(middleware.ErrorHandler(handler)))
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.HealthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.Handle("/auth/register", public(h.Auth.RegisterHandler)).Methods(http.MethodPost)
	api.Handle("/auth/login", public(h.Auth.LoginHandler)).Methods(http.MethodPost)
	api.Handle("/auth/me", authed(h.Auth.MeHandler)).Methods(http.MethodGet)

	api.Handle("/employees", admin(h.Employees.ListHandler)).Methods(http.MethodGet)
	api.Handle("/employees", admin(h.Employees.CreateHandler)).Methods(http.MethodPost)
	api.Handle("/employees/{id}", admin(h.Employees.GetHandler)).Methods(http.MethodGet)
	api.Handle("/employees/{id}", admin(h.Employees.UpdateHandler)).Methods(http.MethodPut)
	api.Handle("/employees/{id}", admin(h.Employees.DeleteHandler)).Methods(http.MethodDelete)

	api.Handle("/attendance/check-in", authed(h.Attendance.CheckInHandler)).Methods(http.MethodPost)
	api.Handle("/attendance/check-out", authed(h.Attendance.CheckOutHandler)).Methods(http.MethodPost)
	api.Handle("/attendance/my", authed(h.Attendance.MyAttendanceHandler)).Methods(http.MethodGet)
	api.Handle("/attendance/today", authed(h.Attendance.TodayHandler)).Methods(http.MethodGet)
	api.Handle("/attendance/report", admin(h.Attendance.ReportHandler)).Methods(http.MethodGet)
	api.Handle("/attendance/report/export", admin(h.Attendance.ExportHandler)).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Route not found")
	})
	return router
}
