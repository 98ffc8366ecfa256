package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saransh1220/wardrobe/internal/gateway/middleware"
	notification_http "github.com/saransh1220/wardrobe/internal/modules/notification/interfaces/http"
)

// RouterConfig holds all the handlers and middleware needed for routing
type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleWare
	NotificationHandler *notification_http.NotificationHandler
	AllowedOrigins      string
}

// SetupRoutes creates and configures all application routes
func SetupRoutes(config RouterConfig) *Router {
	cors := func(next http.Handler) http.Handler {
		return middleware.CORSMiddleware(next, config.AllowedOrigins)
	}
	router := NewRouter(cors, middleware.PrometheusMiddleware)
	auth := config.AuthMiddleware.RequireAuth

	// Health Check
	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus Metrics Endpoint
	router.Handle("GET /metrics", promhttp.Handler())

	// Notification Routes
	h := config.NotificationHandler
	router.HandleFunc("GET /notifications", h.ListNotifications, auth)
	router.HandleFunc("DELETE /notifications/{id}", h.DeleteNotification, auth)
	router.HandleFunc("GET /notifications/subscribe", h.Subscribe, auth)
	router.HandleFunc("GET /ws", h.SubscribeWS, auth)

	return router
}
