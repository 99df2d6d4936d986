package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"matchmaker-backend/internal/config"
	"matchmaker-backend/internal/handlers"
)

type Server struct {
	httpServer *http.Server
	config     *config.Config
}

func NewServer(cfg *config.Config, queueHandler *handlers.QueueHandler, joinHandler *handlers.JoinHandler) *Server {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/queue", queueHandler.CreateQueue).Methods("POST")
	api.HandleFunc("/queue", queueHandler.ListQueues).Methods("GET")
	api.HandleFunc("/queue/{name}", queueHandler.GetQueue).Methods("GET")
	api.HandleFunc("/queue/{name}/join", joinHandler.HandleJoin)
	api.HandleFunc("/finder", queueHandler.UpdateFinderSettings).Methods("PUT")
	api.HandleFunc("/matches", queueHandler.GetMatches).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// CORS middleware
	router.Use(corsMiddleware)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		config:     cfg,
	}
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
