package api

import (
	"github.com/gorilla/mux"

	"github.com/gilchrisn/connectome-service/backend/metrics"
)

func SetupRoutes(router *mux.Router, handlers *Handlers, reg *metrics.Registry) {
	// API version prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Session management endpoints
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.HandleFunc("", handlers.ListSessions).Methods("GET")
	sessions.HandleFunc("", handlers.CreateSession).Methods("POST")
	sessions.HandleFunc("/{sessionId}", handlers.GetSession).Methods("GET")
	sessions.HandleFunc("/{sessionId}", handlers.DeleteSession).Methods("DELETE")
	sessions.HandleFunc("/{sessionId}/clone", handlers.CloneSession).Methods("POST")

	// Analysis endpoints
	sessions.HandleFunc("/{sessionId}/threshold", handlers.Threshold).Methods("POST")
	sessions.HandleFunc("/{sessionId}/modules", handlers.DetectModules).Methods("POST")
	sessions.HandleFunc("/{sessionId}/hubs", handlers.IdentifyHubs).Methods("POST")
	sessions.HandleFunc("/{sessionId}/degenerate", handlers.Degenerate).Methods("POST")
	sessions.HandleFunc("/{sessionId}/graph", handlers.GetGraph).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	router.Handle("/metrics", reg.Handler()).Methods("GET")
}
