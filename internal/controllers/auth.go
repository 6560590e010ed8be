package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wheelcast/backend/internal/cctx"
	"github.com/wheelcast/backend/internal/router"
	"github.com/wheelcast/backend/internal/session"
	"github.com/wheelcast/backend/internal/store"
)

var _ router.Controller = (*AuthController)(nil)

// AuthController owns session establishment and the current-owner profile
// endpoints.
type AuthController struct {
	Owners   *store.OwnerStore
	Sessions *session.Manager
	Gateway  *Gateway
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changeCredentialsRequest struct {
	NewUsername string `json:"newUsername"`
	NewPassword string `json:"newPassword"`
}

type profileResponse struct {
	ID       string  `json:"userId"`
	Username string  `json:"username"`
	WheelKey *string `json:"wheelKey"`
	Role     string  `json:"role"`
}

func (c *AuthController) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing username or password"})
		return
	}

	owner, err := c.Owners.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	cookie, err := c.Sessions.Issue(session.Claims{OwnerID: owner.ID, Role: owner.Role})
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, cookie)
	zap.L().Info("owner logged in", zap.String("owner", owner.ID))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (c *AuthController) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.Sessions.Clear())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (c *AuthController) handleMe(w http.ResponseWriter, r *http.Request) {
	ownerID, _, _ := cctx.SessionFromContext(r.Context())

	owner, err := c.Owners.FindByID(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:       owner.ID,
		Username: owner.Username,
		WheelKey: owner.WheelKey,
		Role:     owner.Role,
	})
}

func (c *AuthController) handleChangeCredentials(w http.ResponseWriter, r *http.Request) {
	ownerID, role, _ := cctx.SessionFromContext(r.Context())

	var req changeCredentialsRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	if err := c.Owners.UpdateCredentials(r.Context(), ownerID, req.NewUsername, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	// Identity is unchanged but the cookie is re-issued so its lifetime
	// restarts with the new credentials.
	cookie, err := c.Sessions.Issue(session.Claims{OwnerID: ownerID, Role: role})
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (c *AuthController) Register(router *mux.Router) {
	router.HandleFunc("/login", c.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/logout", c.Gateway.RequireOwner(c.handleLogout)).Methods(http.MethodPost)
	router.HandleFunc("/me", c.Gateway.RequireOwner(c.handleMe)).Methods(http.MethodGet)
	router.HandleFunc("/change-credentials", c.Gateway.RequireOwner(c.handleChangeCredentials)).Methods(http.MethodPost)
}
