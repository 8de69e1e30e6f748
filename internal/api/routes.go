package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Engine control
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.HandleFunc("/status", handler.GetStatus).Methods("GET")
	r.HandleFunc("/start", handler.StartEngine).Methods("POST")
	r.HandleFunc("/stop", handler.StopEngine).Methods("POST")

	// Trading data
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/trades/active", handler.GetActiveTrades).Methods("GET")
	api.HandleFunc("/trades/today", handler.GetTodayTrades).Methods("GET")
	api.HandleFunc("/decisions/today", handler.GetTodayDecisions).Methods("GET")
	api.HandleFunc("/risk/summary", handler.GetRiskSummary).Methods("GET")

	return r
}
