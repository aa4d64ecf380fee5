// Package api serves presets and simulation runs over HTTP.
package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/san-kum/thermsim/internal/storage"
)

// maxBody caps request documents.
const maxBody = 1 << 20

type Server struct {
	store *storage.Store
	log   *slog.Logger
}

// NewServer serves saved runs from store; a nil store disables the run
// endpoints and the save query.
func NewServer(store *storage.Store, log *slog.Logger) *Server {
	return &Server{store: store, log: log}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/presets", s.listPresets).Methods("GET")
	v1.HandleFunc("/presets/{name}", s.getPreset).Methods("GET")
	v1.HandleFunc("/presets/{name}/simulate", s.simulatePreset).Methods("POST")
	v1.HandleFunc("/presets/{name}/chart.{format:png|svg}", s.presetChart).Methods("GET")
	v1.HandleFunc("/simulate", s.simulate).Methods("POST")

	v1.HandleFunc("/runs", s.listRuns).Methods("GET")
	v1.HandleFunc("/runs/{id}", s.getRun).Methods("GET")
	v1.HandleFunc("/runs/{id}/samples.csv", s.runSamples).Methods("GET")

	return r
}

// Handler wraps the router with access logging to accessLog, permissive CORS
// and panic recovery.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	h := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(s.Router())
	h = handlers.LoggingHandler(accessLog, h)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
}
