package router

import (
	"github.com/gorilla/mux"
)

// Controller is implemented by every HTTP surface; main wires them onto the
// root router in one place.
type Controller interface {
	Register(router *mux.Router)
}
