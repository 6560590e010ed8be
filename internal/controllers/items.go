package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wheelcast/backend/internal/cctx"
	"github.com/wheelcast/backend/internal/hub"
	"github.com/wheelcast/backend/internal/router"
	"github.com/wheelcast/backend/internal/store"
)

var _ router.Controller = (*ItemsController)(nil)

// Broadcaster fans one envelope out to an owner's room.
type Broadcaster interface {
	Broadcast(ownerID string, env hub.Envelope)
}

// ItemsController serves the weighted item CRUD surface plus key rotation.
// Every successful mutation broadcasts its sync event to the owner's room
// before the HTTP response is written; the per-owner lock held across commit
// and broadcast keeps broadcast order equal to commit order.
type ItemsController struct {
	Items   *store.ItemStore
	Owners  *store.OwnerStore
	Rooms   Broadcaster
	Gateway *Gateway
	Locks   *store.OwnerLocks
}

type itemRequest struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

type deleteResponse struct {
	Removed int64 `json:"removed"`
}

type rotateResponse struct {
	WheelKey string `json:"wheelKey"`
}

func (c *ItemsController) handleList(w http.ResponseWriter, r *http.Request) {
	ownerID, _, _ := cctx.SessionFromContext(r.Context())

	items, err := c.Items.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hub.ItemsFromModels(items))
}

func (c *ItemsController) handlePublicList(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing key"})
		return
	}

	owner, err := c.Owners.ResolveWheelKey(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := c.Items.List(r.Context(), owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hub.ItemsFromModels(items))
}

func (c *ItemsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, _, _ := cctx.SessionFromContext(r.Context())

	var req itemRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	unlock := c.Locks.Lock(ownerID)
	defer unlock()

	item, err := c.Items.Create(r.Context(), ownerID, req.Label, req.Weight)
	if err != nil {
		writeError(w, err)
		return
	}

	c.Rooms.Broadcast(ownerID, hub.ItemCreated(item))
	writeJSON(w, http.StatusOK, hub.ItemFromModel(item))
}

func (c *ItemsController) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ownerID, _, _ := cctx.SessionFromContext(r.Context())
	itemID := mux.Vars(r)["id"]

	var req itemRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	unlock := c.Locks.Lock(ownerID)
	defer unlock()

	item, err := c.Items.Update(r.Context(), ownerID, itemID, req.Label, req.Weight)
	if err != nil {
		writeError(w, err)
		return
	}

	c.Rooms.Broadcast(ownerID, hub.ItemUpdated(item))
	writeJSON(w, http.StatusOK, hub.ItemFromModel(item))
}

func (c *ItemsController) handleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, _, _ := cctx.SessionFromContext(r.Context())
	itemID := mux.Vars(r)["id"]

	unlock := c.Locks.Lock(ownerID)
	defer unlock()

	removed, err := c.Items.Delete(r.Context(), ownerID, itemID)
	if err != nil {
		writeError(w, err)
		return
	}

	if removed > 0 {
		c.Rooms.Broadcast(ownerID, hub.ItemDeleted(itemID))
	}

	writeJSON(w, http.StatusOK, deleteResponse{Removed: removed})
}

func (c *ItemsController) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	ownerID, _, _ := cctx.SessionFromContext(r.Context())

	// The new key goes to the caller only; rotation is never broadcast and
	// clients joined with the old key keep their membership.
	newKey, err := c.Owners.RotateWheelKey(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rotateResponse{WheelKey: newKey})
}

func (c *ItemsController) Register(router *mux.Router) {
	router.HandleFunc("/items/public", c.handlePublicList).Methods(http.MethodGet)
	router.HandleFunc("/items", c.Gateway.RequireOwner(c.handleList)).Methods(http.MethodGet)
	router.HandleFunc("/items", c.Gateway.RequireOwner(c.handleCreate)).Methods(http.MethodPost)
	router.HandleFunc("/items/{id}", c.Gateway.RequireOwner(c.handleUpdate)).Methods(http.MethodPut)
	router.HandleFunc("/items/{id}", c.Gateway.RequireOwner(c.handleDelete)).Methods(http.MethodDelete)
	router.HandleFunc("/capability/rotate", c.Gateway.RequireOwner(c.handleRotateKey)).Methods(http.MethodPost)
}
