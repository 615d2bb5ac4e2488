package api

import (
	"net/http"
	"strings"

	"github.com/garnizeh/flyaway/internal/achievement"
	"github.com/garnizeh/flyaway/internal/config"
	"github.com/garnizeh/flyaway/internal/location"
	"github.com/garnizeh/flyaway/pkg/repository"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Store      repository.TxStore
	Submitter  Submitter
	Locations  *location.Service
	Engine     *achievement.Engine
	Files      FileRemover
	Classifier HealthChecker
	Gatherer   prometheus.Gatherer
}

func SetupRoutes(cfg *config.Config, version, buildTime string, d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{Classifier: d.Classifier}
	authHandler := NewAuthHandler(d.Store, cfg.JWTSecret, cfg.TokenDuration)
	userHandler := NewUserHandler(d.Store, d.Engine, d.Locations)
	locationsHandler := NewLocationsHandler(d.Submitter, d.Locations, cfg.Uploads.MaxImageBytes, cfg.Uploads.MaxImages)
	speciesHandler := NewSpeciesHandler(d.Store, d.Files)
	habitatsHandler := NewHabitatsHandler(d.Store)
	typesHandler := NewSpeciesTypesHandler(d.Store)
	achievementsHandler := NewAchievementsHandler(d.Store, d.Engine)
	leaderboardHandler := NewLeaderboardHandler(d.Store)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	r.PathPrefix("/storage/").Handler(http.StripPrefix("/storage/", fileOnly(http.FileServer(http.Dir(cfg.Uploads.Dir))))).Methods("GET")
	r.HandleFunc("/v1/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/v1/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/v1/level", leaderboardHandler.Level).Methods("GET")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	admin := func(h http.HandlerFunc) http.Handler { return AdminOnly(h) }

	// Auth endpoints
	apiV1.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")

	// Current user
	apiV1.HandleFunc("/user", userHandler.Profile).Methods("GET")
	apiV1.HandleFunc("/user", userHandler.Update).Methods("PUT")
	apiV1.HandleFunc("/user", userHandler.Delete).Methods("DELETE")
	apiV1.HandleFunc("/user/achievements", userHandler.Achievements).Methods("GET")
	apiV1.HandleFunc("/user/my-locations", locationsHandler.Mine).Methods("GET")

	// Locations
	apiV1.HandleFunc("/locations", locationsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/locations", locationsHandler.List).Methods("GET")
	apiV1.HandleFunc("/locations/{id:[0-9]+}", locationsHandler.Show).Methods("GET")
	apiV1.HandleFunc("/locations/{id:[0-9]+}", locationsHandler.Update).Methods("PUT")
	apiV1.HandleFunc("/locations/{id:[0-9]+}", locationsHandler.Delete).Methods("DELETE")

	// Species
	apiV1.HandleFunc("/species", speciesHandler.List).Methods("GET")
	apiV1.HandleFunc("/species/dropdown", speciesHandler.Dropdown).Methods("GET")
	apiV1.HandleFunc("/species/{id:[0-9]+}", speciesHandler.Show).Methods("GET")
	apiV1.Handle("/species", admin(speciesHandler.Create)).Methods("POST")
	apiV1.Handle("/species/{id:[0-9]+}", admin(speciesHandler.Update)).Methods("PUT")
	apiV1.Handle("/species/{id:[0-9]+}", admin(speciesHandler.Delete)).Methods("DELETE")

	// Species types
	apiV1.HandleFunc("/species-types", typesHandler.List).Methods("GET")
	apiV1.HandleFunc("/species-types/dropdown", typesHandler.Dropdown).Methods("GET")
	apiV1.HandleFunc("/species-types/{id:[0-9]+}", typesHandler.Show).Methods("GET")
	apiV1.Handle("/species-types", admin(typesHandler.Create)).Methods("POST")
	apiV1.Handle("/species-types/{id:[0-9]+}", admin(typesHandler.Update)).Methods("PUT")
	apiV1.Handle("/species-types/{id:[0-9]+}", admin(typesHandler.Delete)).Methods("DELETE")

	// Habitats
	apiV1.HandleFunc("/habitats", habitatsHandler.List).Methods("GET")
	apiV1.HandleFunc("/habitats/dropdown", habitatsHandler.Dropdown).Methods("GET")
	apiV1.HandleFunc("/habitats/{id:[0-9]+}", habitatsHandler.Show).Methods("GET")
	apiV1.Handle("/habitats", admin(habitatsHandler.Create)).Methods("POST")
	apiV1.Handle("/habitats/{id:[0-9]+}", admin(habitatsHandler.Update)).Methods("PUT")
	apiV1.Handle("/habitats/{id:[0-9]+}", admin(habitatsHandler.Delete)).Methods("DELETE")

	// Achievements
	apiV1.HandleFunc("/achievements", achievementsHandler.List).Methods("GET")
	apiV1.HandleFunc("/achievements/{id:[0-9]+}", achievementsHandler.Show).Methods("GET")
	apiV1.Handle("/achievements", admin(achievementsHandler.Create)).Methods("POST")
	apiV1.Handle("/achievements/{id:[0-9]+}", admin(achievementsHandler.Update)).Methods("PUT")
	apiV1.Handle("/achievements/{id:[0-9]+}", admin(achievementsHandler.Delete)).Methods("DELETE")
	apiV1.Handle("/admin/achievement-points", admin(achievementsHandler.AssignPoints)).Methods("POST")

	// Leaderboard
	apiV1.HandleFunc("/leaderboard", leaderboardHandler.Leaderboard).Methods("GET")

	return r
}

// fileOnly hides directory listings; directory paths end in "/" by the
// time http.FileServer lists them.
func fileOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
