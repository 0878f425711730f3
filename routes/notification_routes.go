package routes

import (
	"collabmatch_sync/controllers"
	"collabmatch_sync/services"

	"github.com/gorilla/mux"
)

// RegisterNotificationRoutes sets up routes for notifications under /api/notifications
func RegisterNotificationRoutes(r *mux.Router, notificationService *services.NotificationService) {
	controller := controllers.NewNotificationController(notificationService)

	notificationRouter := r.PathPrefix("/api/notifications").Subrouter()

	notificationRouter.HandleFunc("", controller.HandleList).Methods("GET")
	notificationRouter.HandleFunc("/unread-count", controller.HandleUnreadCount).Methods("GET")
	notificationRouter.HandleFunc("/read-all", controller.HandleMarkAllRead).Methods("POST")
	notificationRouter.HandleFunc("/{id}", controller.HandleGet).Methods("GET")
	notificationRouter.HandleFunc("/{id}/read", controller.HandleMarkRead).Methods("PATCH")
	notificationRouter.HandleFunc("/{id}", controller.HandleDelete).Methods("DELETE")
}
