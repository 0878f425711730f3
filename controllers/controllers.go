package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"collabmatch_sync/cache"
	"collabmatch_sync/services"
)

// WriteJSONResponse writes a JSON payload with the given status code.
func WriteJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Println("Failed to encode JSON response:", err)
	}
}

// WriteServiceError maps a service-layer error onto an HTTP status.
func WriteServiceError(w http.ResponseWriter, err error) {
	var authErr *services.AuthError
	var validationErr *services.ValidationError
	var conflictErr *services.ConflictError

	switch {
	case errors.As(err, &authErr):
		WriteJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.As(err, &validationErr):
		WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &conflictErr):
		WriteJSONResponse(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Println("Upstream request failed:", err)
		WriteJSONResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

type entryEnvelope struct {
	Data         any       `json:"data"`
	FetchedAt    time.Time `json:"fetchedAt"`
	Stale        bool      `json:"stale"`
	RefreshError string    `json:"refreshError,omitempty"`
}

// WriteEntry writes a cache entry with its freshness metadata, so clients
// can render stale data immediately and show a refresh indicator.
func WriteEntry(w http.ResponseWriter, entry cache.Entry) {
	envelope := entryEnvelope{
		Data:      entry.Data,
		FetchedAt: entry.FetchedAt,
		Stale:     entry.Stale,
	}
	if entry.Err != nil {
		envelope.RefreshError = entry.Err.Error()
	}
	WriteJSONResponse(w, http.StatusOK, envelope)
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Server is running!"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the CollabMatch sync API."})
}
