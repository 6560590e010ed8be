package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wheelcast/backend/internal/cctx"
	"github.com/wheelcast/backend/internal/database/models"
	"github.com/wheelcast/backend/internal/router"
	"github.com/wheelcast/backend/internal/store"
)

var _ router.Controller = (*OwnersController)(nil)

// OwnersController is the admin-only account management surface.
type OwnersController struct {
	Owners  *store.OwnerStore
	Gateway *Gateway
}

type createOwnerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ownerResponse never carries the password hash.
type ownerResponse struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	WheelKey *string `json:"wheelKey"`
}

func ownerToResponse(o models.Owner) ownerResponse {
	return ownerResponse{
		ID:       o.ID,
		Username: o.Username,
		Role:     o.Role,
		WheelKey: o.WheelKey,
	}
}

func (c *OwnersController) handleList(w http.ResponseWriter, r *http.Request) {
	owners, err := c.Owners.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]ownerResponse, 0, len(owners))
	for _, o := range owners {
		out = append(out, ownerToResponse(o))
	}

	writeJSON(w, http.StatusOK, out)
}

func (c *OwnersController) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOwnerRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	owner, err := c.Owners.Create(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	zap.L().Info("owner created", zap.String("owner", owner.ID), zap.String("username", owner.Username))
	writeJSON(w, http.StatusOK, ownerToResponse(owner))
}

func (c *OwnersController) handleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _, _ := cctx.SessionFromContext(r.Context())
	targetID := mux.Vars(r)["id"]

	// Admins cannot delete themselves; otherwise the last admin could lock
	// everyone out of the management surface.
	if targetID == actorID {
		writeError(w, store.ErrForbidden)
		return
	}

	if err := c.Owners.Delete(r.Context(), targetID); err != nil {
		writeError(w, err)
		return
	}

	zap.L().Info("owner deleted", zap.String("owner", targetID), zap.String("actor", actorID))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (c *OwnersController) Register(router *mux.Router) {
	router.HandleFunc("/owners", c.Gateway.RequireAdmin(c.handleList)).Methods(http.MethodGet)
	router.HandleFunc("/owners", c.Gateway.RequireAdmin(c.handleCreate)).Methods(http.MethodPost)
	router.HandleFunc("/owners/{id}", c.Gateway.RequireAdmin(c.handleDelete)).Methods(http.MethodDelete)
}
