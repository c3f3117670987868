package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// registerAPIRoutes registers all API endpoints on the given router
func registerAPIRoutes(r *mux.Router, h *Handler) {
	// Conversion
	r.HandleFunc("/api/convert/{kind}", h.Convert).Methods(http.MethodPost)
	r.HandleFunc("/api/output-path", h.OutputPath).Methods(http.MethodPost)

	// File picker, options and dialog filters
	r.HandleFunc("/api/browse", h.Browse).Methods(http.MethodGet)
	r.HandleFunc("/api/formats", h.Formats).Methods(http.MethodGet)
	r.HandleFunc("/api/filters", h.Filters).Methods(http.MethodGet)
	r.HandleFunc("/api/save-filters", h.SaveFilters).Methods(http.MethodGet)

	// Jobs and events
	r.HandleFunc("/api/events", h.Events).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs", h.ListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", h.CancelJob).Methods(http.MethodDelete)

	// Configuration
	r.HandleFunc("/api/config", h.GetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", h.UpdateConfig).Methods(http.MethodPut)
}

// NewRouter creates the API router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	registerAPIRoutes(r, h)
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mediaconv API"))
	}).Methods(http.MethodGet)
	return r
}

// NewServerHandler wraps the router with CORS for the given browser origins.
func NewServerHandler(h *Handler, origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(NewRouter(h))
}
