package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"collabmatch_sync/cache"
	"collabmatch_sync/config"
	"collabmatch_sync/models"
	"collabmatch_sync/routes"
	"collabmatch_sync/services"
	"collabmatch_sync/socket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	// Initialize the cache and the upstream API client
	log.Println("Initializing cache store...")
	store := cache.NewStore()
	defer store.Close()
	store.EnableAutoRevalidate(models.ClassNotifications, 60*time.Second)
	store.EnableAutoRevalidate(models.ClassUnreadCount, 60*time.Second)

	client := services.NewRemoteClient(cfg.APIBaseURL, func() string { return cfg.APIToken })

	// Initialize Services
	filterService := services.NewFilterService()
	suggestionService := &services.SuggestionService{Cache: store, Client: client, Filters: filterService}
	mutationService := services.NewMutationService(store, client)
	scoreService := &services.ScoreService{Cache: store, Client: client}
	notificationService := &services.NotificationService{Cache: store, Client: client}

	// Initialize the realtime relay and the push bridge
	relay := socket.NewRelay()
	bridge := socket.NewBridge(cfg.PushURL, func() string { return cfg.APIToken }, store, notificationService)
	bridge.Relay = relay
	if cfg.PushURL != "" {
		relay.OnFirstSubscriber = func() {
			bridge.Connect(context.Background())
		}
	}
	defer bridge.Close()

	go func() {
		if err := relay.Serve(); err != nil {
			log.Println("Socket server stopped:", err)
		}
	}()
	defer relay.Close()

	// Initialize the router
	r := mux.NewRouter()
	r.Handle("/socket.io/", relay.Handler())

	// Register routes
	routes.RegisterRoutes(r)
	routes.RegisterSuggestionRoutes(r, suggestionService)
	routes.RegisterActionRoutes(r, mutationService)
	routes.RegisterScoreRoutes(r, scoreService)
	routes.RegisterNotificationRoutes(r, notificationService)
	routes.RegisterFilterRoutes(r, filterService)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, corsHandler))
}
