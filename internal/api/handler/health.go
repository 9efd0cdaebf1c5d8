package handler

import (
	"context"
	"net/http"

	"github.com/classpod/classpod/internal/api/middleware"
	"github.com/classpod/classpod/internal/api/response"
	"github.com/classpod/classpod/internal/k8s"
)

// DBPinger verifies database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	k8sChecker k8s.HealthChecker
	dbPinger   DBPinger
	version    string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker k8s.HealthChecker, dbPinger DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		k8sChecker: checker,
		dbPinger:   dbPinger,
		version:    version,
	}
}

type kubernetesStatus struct {
	Connected bool    `json:"connected"`
	Version   *string `json:"version"`
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Database   databaseStatus   `json:"database"`
	Kubernetes kubernetesStatus `json:"kubernetes"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"

	dbConnected := h.dbPinger != nil && h.dbPinger.Ping(r.Context()) == nil
	if !dbConnected {
		status = "degraded"
	}

	var k8sVersion *string
	k8sConnected := false
	if h.k8sChecker != nil {
		connectivity := h.k8sChecker.CheckConnectivity(r.Context())
		k8sConnected = connectivity.Connected
		if connectivity.Connected {
			k8sVersion = &connectivity.Version
		}
	}

	data := healthData{
		Status:     status,
		Version:    h.version,
		Database:   databaseStatus{Connected: dbConnected},
		Kubernetes: kubernetesStatus{Connected: k8sConnected, Version: k8sVersion},
	}

	response.Success(w, http.StatusOK, data, requestID)
}
