package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/classpod/classpod/internal/api/handler"
	"github.com/classpod/classpod/internal/api/middleware"
	"github.com/classpod/classpod/internal/api/ws"
	"github.com/classpod/classpod/internal/config"
	"github.com/classpod/classpod/internal/container"
	"github.com/classpod/classpod/internal/k8s"
	"github.com/classpod/classpod/internal/lti"
	"github.com/classpod/classpod/internal/session"
	"github.com/classpod/classpod/internal/user"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Sessions    *session.Store
	Platforms   *config.File
	Verifier    lti.Verifier
	Directory   *user.Directory
	Catalog     *container.Catalog
	Hub         *ws.Hub
	K8sChecker  k8s.HealthChecker
	DBPinger    handler.DBPinger
	AppTitle    string
	VLEURL      string
	BaseURL     string
	FrontendDir string
	Version     string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
// The LTI endpoints are exempt from the CSRF check: they are reached
// cross-site by design and carry their own state round-trip instead.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(middleware.CSRF("/lti", "/lti/login"))

	ltiHandler := handler.NewLTIHandler(deps.Sessions, deps.Platforms, deps.Verifier, deps.Directory, deps.BaseURL)
	r.Post("/lti/login", ltiHandler.LoginStart)
	r.Post("/lti", ltiHandler.Launch)

	logoutHandler := handler.NewLogoutHandler(deps.Sessions, deps.Hub, deps.VLEURL)
	r.Get("/logout", logoutHandler.ServeHTTP)

	healthHandler := handler.NewHealthHandler(deps.K8sChecker, deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	gateway := ws.NewGateway(deps.Sessions, deps.Directory, deps.Catalog, deps.Hub, deps.AppTitle, deps.VLEURL)
	r.Get("/api", gateway.ServeHTTP)

	frontendHandler := handler.NewFrontendHandler(deps.FrontendDir)
	r.Get("/app", frontendHandler.ServeHTTP)
	r.Get("/app/*", frontendHandler.ServeHTTP)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app", http.StatusFound)
	})

	return r
}
