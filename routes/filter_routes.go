package routes

import (
	"collabmatch_sync/controllers"
	"collabmatch_sync/services"

	"github.com/gorilla/mux"
)

// RegisterFilterRoutes sets up routes for feed filters under /api/filters
func RegisterFilterRoutes(r *mux.Router, filterService *services.FilterService) {
	controller := controllers.NewFilterController(filterService)

	filterRouter := r.PathPrefix("/api/filters").Subrouter()

	filterRouter.HandleFunc("", controller.HandleGetFilters).Methods("GET")
	filterRouter.HandleFunc("", controller.HandleUpdateFilters).Methods("PUT")
	filterRouter.HandleFunc("", controller.HandleResetFilters).Methods("DELETE")
	filterRouter.HandleFunc("/search", controller.HandleSearch).Methods("POST")
}
