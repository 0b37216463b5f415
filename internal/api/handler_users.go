package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"geoadmin-control/internal/domain"
)

// CreateUserRequest is the body of POST /users. ProviderID is the local key
// of the provider.
type CreateUserRequest struct {
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	ProviderID string `json:"provider_id"`
}

// UpdateUserRequest is the body of PUT /users/{username}. Absent fields are
// left unchanged.
type UpdateUserRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Email      *string `json:"email"`
	ProviderID *string `json:"provider_id"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.users.List(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page, userToAPI))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userToAPI(u))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body CreateUserRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.users.Create(r.Context(), domain.CreateUserRequest(body))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userToAPI(u))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var body UpdateUserRequest
	if err := decodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), chi.URLParam(r, "username"), domain.UpdateUserRequest(body))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userToAPI(u))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "username")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
