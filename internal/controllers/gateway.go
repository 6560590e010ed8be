package controllers

import (
	"net/http"

	"github.com/wheelcast/backend/internal/cctx"
	"github.com/wheelcast/backend/internal/database/models"
	"github.com/wheelcast/backend/internal/session"
	"github.com/wheelcast/backend/internal/store"
)

// Gateway resolves session cookies into owner identities and guards routes.
// The owner is re-read from the store on every request so deleted accounts
// lose access immediately, not at cookie expiry.
type Gateway struct {
	Sessions *session.Manager
	Owners   *store.OwnerStore
}

func (g *Gateway) resolve(r *http.Request) (owner models.Owner, err error) {
	var claims session.Claims
	if claims, err = g.Sessions.Verify(r); err != nil {
		return
	}

	owner, err = g.Owners.FindByID(r.Context(), claims.OwnerID)
	return
}

// RequireOwner admits any authenticated owner and stores the identity on the
// request context.
func (g *Gateway) RequireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := g.resolve(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
			return
		}

		next(w, r.WithContext(cctx.WithSession(r.Context(), owner.ID, owner.Role)))
	}
}

// RequireAdmin admits only owners with the admin role.
func (g *Gateway) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := g.resolve(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})
			return
		}

		if owner.Role != models.RoleAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin access required"})
			return
		}

		next(w, r.WithContext(cctx.WithSession(r.Context(), owner.ID, owner.Role)))
	}
}
