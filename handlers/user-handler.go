package handlers

import (
	"net/http"

	"task-manager/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GetUsers lists member users with their task counts. Admin only.
func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.GetMembers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUserByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetUserDetails returns a user together with their assigned tasks and the
// status summary over that set. Admin only.
func (h *UserHandler) GetUserDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetUserDetails(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// DeleteUser removes a user and cascades to their tasks. Admin only.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User and associated tasks deleted successfully"})
}
