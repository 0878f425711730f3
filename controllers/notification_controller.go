package controllers

import (
	"net/http"

	"collabmatch_sync/services"
	"collabmatch_sync/utils"

	"github.com/gorilla/mux"
)

// NotificationController handles HTTP requests for notifications
type NotificationController struct {
	NotificationService *services.NotificationService
}

// NewNotificationController creates a new NotificationController instance
func NewNotificationController(notificationService *services.NotificationService) *NotificationController {
	return &NotificationController{NotificationService: notificationService}
}

// HandleList serves one page of notifications
func (nc *NotificationController) HandleList(w http.ResponseWriter, r *http.Request) {
	page := utils.ParseIntParam(r, "page", 1)
	limit := utils.ParseIntParam(r, "limit", 20)
	unreadOnly := utils.ParseBoolParam(r, "unreadOnly")

	entry, err := nc.NotificationService.List(r.Context(), page, limit, unreadOnly)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}

// HandleGet serves one notification's detail view
func (nc *NotificationController) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, err := nc.NotificationService.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteEntry(w, entry)
}

// HandleUnreadCount serves the unread badge count
func (nc *NotificationController) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := nc.NotificationService.UnreadCount(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]int{"unreadCount": count})
}

// HandleMarkRead marks one notification as read
func (nc *NotificationController) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	notification, err := nc.NotificationService.MarkRead(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, notification)
}

// HandleMarkAllRead marks every notification as read
func (nc *NotificationController) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := nc.NotificationService.MarkAllRead(r.Context()); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}

// HandleDelete removes one notification
func (nc *NotificationController) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := nc.NotificationService.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Notification deleted", "id": id})
}
