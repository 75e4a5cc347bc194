// Package api assembles the versioned HTTP surface from the handler
// registrations in api/handlers.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"introchat/pkg/api/handlers"
	"introchat/pkg/auth"
)

// Handler builds the /v1 router. User-facing routes sit behind the signed
// user middleware; the signing and backend push endpoints are gated by
// role inside their handlers (the gateway middleware has already resolved
// the API-key role).
func Handler(d handlers.Deps) http.Handler {
	handlers.Configure(d)

	root := mux.NewRouter()

	v1 := root.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireSignedUser)
	handlers.RegisterThreads(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterWS(v1)
	handlers.RegisterBackend(v1)

	handlers.RegisterSigning(root)

	return root
}
